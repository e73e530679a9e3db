package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/spacesedan/sentigraph/internal/clients"
	"github.com/spacesedan/sentigraph/internal/models"
)

const ANALYSIS_RESULTS_TABLE_NAME = "AnalysisResults"

var dbClient *dynamodb.Client

func InitDynamoDB() {
	dbClient = clients.GetDynamoDBClient()
}

// BatchInsertAnalysisResults archives per-post outcomes, failed posts
// included. DynamoDB caps batch writes at 25 items, so the slice is chunked
// and unprocessed leftovers are retried with exponential backoff.
func BatchInsertAnalysisResults(ctx context.Context, results []models.PerPostResult) error {
	if dbClient == nil {
		dbClient = clients.GetDynamoDBClient()
	}

	const maxBatchSize = 25
	for i := 0; i < len(results); i += maxBatchSize {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := i + maxBatchSize
		if end > len(results) {
			end = len(results)
		}

		writeRequests := make([]types.WriteRequest, 0, end-i)
		for _, result := range results[i:end] {
			writeRequests = append(writeRequests, types.WriteRequest{
				PutRequest: &types.PutRequest{
					Item: ResultToDynamoDBItem(result),
				},
			})
		}

		out, err := dbClient.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				ANALYSIS_RESULTS_TABLE_NAME: writeRequests,
			},
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to batch write analysis results: %w", err)
		}

		retryCount := 0
		backoff := 500 * time.Millisecond
		for len(out.UnprocessedItems) > 0 && retryCount < 3 {
			time.Sleep(backoff)
			backoff *= 2

			slog.Warn("[DynamoDB] Retrying unprocessed analysis items...",
				slog.Int("attempt", retryCount+1),
				slog.Int("remaining", len(out.UnprocessedItems[ANALYSIS_RESULTS_TABLE_NAME])))

			out, err = dbClient.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: out.UnprocessedItems,
			})
			if err != nil {
				return fmt.Errorf("[DynamoDB] Failed to retry batch write: %w", err)
			}
			retryCount++
		}

		if len(out.UnprocessedItems) > 0 {
			slog.Error("[DynamoDB] Some analysis items were not written even after retries",
				slog.Int("remaining", len(out.UnprocessedItems[ANALYSIS_RESULTS_TABLE_NAME])))
		}
	}

	slog.Info("[DynamoDB] Archived analysis results", slog.Int("count", len(results)))
	return nil
}

// GetArchivedResults scans the full archive. Intended for small deployments
// and offline inspection, not for the hot path.
func GetArchivedResults(ctx context.Context) ([]models.PerPostResult, error) {
	if dbClient == nil {
		dbClient = clients.GetDynamoDBClient()
	}

	var results []models.PerPostResult
	paginator := dynamodb.NewScanPaginator(dbClient, &dynamodb.ScanInput{
		TableName: aws.String(ANALYSIS_RESULTS_TABLE_NAME),
	})

	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] Scan for analysis results failed: %w", err)
		}
		var page []models.PerPostResult
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal archive page", slog.String("error", err.Error()))
			return nil, err
		}
		results = append(results, page...)
	}

	slog.Info("[DynamoDB] Retrieved archived results", slog.Int("count", len(results)))
	return results, nil
}

func ResultToDynamoDBItem(result models.PerPostResult) map[string]types.AttributeValue {
	item := make(map[string]types.AttributeValue)

	item["post_id"] = &types.AttributeValueMemberS{Value: result.PostID}
	item["created_at"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())}

	if result.Platform != "" {
		item["platform"] = &types.AttributeValueMemberS{Value: result.Platform}
	}
	if result.Author != "" {
		item["author"] = &types.AttributeValueMemberS{Value: result.Author}
	}
	if result.Error != "" {
		item["error"] = &types.AttributeValueMemberS{Value: result.Error}
	}

	if result.Sentiment != nil {
		item["sentiment_score"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%f", result.Sentiment.Score)}
		item["sentiment_label"] = &types.AttributeValueMemberS{Value: result.Sentiment.Label}
	}

	if len(result.Entities) > 0 {
		entities := make([]types.AttributeValue, 0, len(result.Entities))
		for _, entity := range result.Entities {
			entities = append(entities, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				"name":         &types.AttributeValueMemberS{Value: entity.Name},
				"type":         &types.AttributeValueMemberS{Value: string(entity.Type)},
				"canonical_id": &types.AttributeValueMemberS{Value: entity.CanonicalID},
				"mentions":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", entity.Mentions)},
			}})
		}
		item["entities"] = &types.AttributeValueMemberL{Value: entities}
	}

	return item
}
