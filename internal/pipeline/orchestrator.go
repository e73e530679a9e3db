package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spacesedan/sentigraph/internal/extraction"
	"github.com/spacesedan/sentigraph/internal/graph"
	"github.com/spacesedan/sentigraph/internal/models"
	"github.com/spacesedan/sentigraph/internal/resolution"
	"github.com/spacesedan/sentigraph/internal/sentiment"
)

// ErrInvalidInput marks a malformed post field; recovered per post via the
// result's error string, never fatal to the batch.
var ErrInvalidInput = errors.New("invalid input")

const DEFAULT_RETRY_BACKOFF = 500 * time.Millisecond

// Orchestrator runs the post analysis stages in order: sentiment, entity
// extraction, entity resolution, graph writes. One bad post never aborts the
// batch; its failure is recorded and the batch moves on.
type Orchestrator struct {
	scorer    *sentiment.Scorer
	extractor extraction.Extractor
	resolver  *resolution.Resolver
	store     graph.Store

	retryBackoff time.Duration
}

func NewOrchestrator(scorer *sentiment.Scorer, extractor extraction.Extractor, resolver *resolution.Resolver, store graph.Store) *Orchestrator {
	return &Orchestrator{
		scorer:       scorer,
		extractor:    extractor,
		resolver:     resolver,
		store:        store,
		retryBackoff: DEFAULT_RETRY_BACKOFF,
	}
}

// AnalyzeBatch processes posts in input order and returns one result per
// post plus batch aggregates. An empty batch yields an empty result with
// zero stats; per-post failures are reported inside the result.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, posts []models.Post) (*models.BatchResult, error) {
	batch := &models.BatchResult{
		Results: make([]models.PerPostResult, 0, len(posts)),
		Stats:   models.BatchStats{TotalPosts: len(posts)},
	}
	writtenEdges := make(map[string]bool)

	for _, post := range posts {
		result := o.analyzePost(ctx, post, &batch.Stats, writtenEdges)
		if result.Error != "" {
			batch.Stats.Failed++
			slog.Warn("[Orchestrator] Post failed",
				slog.String("post_id", post.ID),
				slog.String("error", result.Error))
		}
		batch.Results = append(batch.Results, result)
	}

	slog.Info("[Orchestrator] Batch complete",
		slog.Int("total", batch.Stats.TotalPosts),
		slog.Int("failed", batch.Stats.Failed),
		slog.Int("new_entities", batch.Stats.NewEntities),
		slog.Int("new_edges", batch.Stats.NewEdges))

	return batch, nil
}

func (o *Orchestrator) analyzePost(ctx context.Context, post models.Post, stats *models.BatchStats, writtenEdges map[string]bool) models.PerPostResult {
	result := models.PerPostResult{
		PostID:   post.ID,
		Platform: post.Platform,
		Author:   post.Author,
	}

	if strings.TrimSpace(post.ID) == "" {
		result.Error = fmt.Errorf("%w: missing post id", ErrInvalidInput).Error()
		return result
	}

	// Every post node gets exactly one AUTHORED edge, so an author is as
	// mandatory as the ID.
	if strings.TrimSpace(post.AuthorKey()) == "" {
		result.Error = fmt.Errorf("%w: missing author", ErrInvalidInput).Error()
		return result
	}

	timestamp, err := postTimestamp(post)
	if err != nil {
		result.Error = fmt.Errorf("%w: timestamp %q: %v", ErrInvalidInput, post.Timestamp, err).Error()
		return result
	}

	score := o.scorer.Score(post.ID, post.Text)
	result.Sentiment = &score

	candidates := o.extractor.Extract(post.Text)
	result.Entities = o.resolver.Resolve(ctx, candidates, timestamp)

	if err := o.writePost(ctx, post, score, result.Entities, timestamp, stats, writtenEdges); err != nil {
		// Analysis already happened; only the persistence is lost.
		result.Error = fmt.Sprintf("graph write: %v", err)
		return result
	}

	switch score.Label {
	case models.SentimentPositive:
		stats.Positive++
	case models.SentimentNegative:
		stats.Negative++
	default:
		stats.Neutral++
	}

	return result
}

// writePost persists one analyzed post: author and post nodes, the AUTHORED
// edge, entity nodes with their MENTIONS edges, and pairwise CO_OCCURS_WITH
// between the post's distinct entities. Stops at the first write that still
// fails after a retry.
func (o *Orchestrator) writePost(ctx context.Context, post models.Post, score models.SentimentResult, resolved []models.ResolvedEntity, timestamp time.Time, stats *models.BatchStats, writtenEdges map[string]bool) error {
	postKey := "post:" + post.ID
	userKey := "user:" + post.AuthorKey()

	userNode := models.Node{
		Key:      userKey,
		Kind:     models.NodeUser,
		Label:    post.Author,
		Platform: post.Platform,
		Mentions: 1,
	}
	if err := o.upsertNodeWithRetry(ctx, userNode); err != nil {
		return err
	}

	postNode := models.Node{
		Key:            postKey,
		Kind:           models.NodePost,
		Label:          post.ID,
		Platform:       post.Platform,
		SentimentLabel: score.Label,
		SentimentScore: score.Score,
		LastSeen:       timestamp,
	}
	if err := o.upsertNodeWithRetry(ctx, postNode); err != nil {
		return err
	}

	authored := models.Edge{Type: models.EdgeAuthored, From: userKey, To: postKey, Weight: 1}
	if err := o.upsertEdgeWithRetry(ctx, authored, stats, writtenEdges); err != nil {
		return err
	}

	distinct := distinctEntities(resolved)
	for _, entity := range distinct {
		node := models.Node{
			Key:        "entity:" + entity.CanonicalID,
			Kind:       models.NodeEntity,
			Label:      entity.Name,
			EntityType: entity.Type,
			Mentions:   int64(entity.Mentions),
			LastSeen:   timestamp,
		}
		if err := o.upsertNodeWithRetry(ctx, node); err != nil {
			return err
		}

		if entity.Created {
			stats.NewEntities++
		} else {
			stats.ExistingEntities++
		}

		mentions := models.Edge{
			Type:   models.EdgeMentions,
			From:   postKey,
			To:     "entity:" + entity.CanonicalID,
			Weight: int64(entity.Mentions),
		}
		if err := o.upsertEdgeWithRetry(ctx, mentions, stats, writtenEdges); err != nil {
			return err
		}
	}

	for i := 0; i < len(distinct); i++ {
		for j := i + 1; j < len(distinct); j++ {
			coOccurs := models.Edge{
				Type:   models.EdgeCoOccurs,
				From:   "entity:" + distinct[i].CanonicalID,
				To:     "entity:" + distinct[j].CanonicalID,
				Weight: 1,
			}
			if err := o.upsertEdgeWithRetry(ctx, coOccurs, stats, writtenEdges); err != nil {
				return err
			}
		}
	}

	return nil
}

func (o *Orchestrator) upsertNodeWithRetry(ctx context.Context, node models.Node) error {
	err := o.store.UpsertNode(ctx, node)
	if !retryable(err) {
		return err
	}

	time.Sleep(o.retryBackoff)
	return o.store.UpsertNode(ctx, node)
}

func (o *Orchestrator) upsertEdgeWithRetry(ctx context.Context, edge models.Edge, stats *models.BatchStats, writtenEdges map[string]bool) error {
	err := o.store.UpsertEdge(ctx, edge)
	if retryable(err) {
		time.Sleep(o.retryBackoff)
		err = o.store.UpsertEdge(ctx, edge)
	}
	if err != nil {
		return err
	}

	key := batchEdgeKey(edge)
	if !writtenEdges[key] {
		writtenEdges[key] = true
		stats.NewEdges++
	}
	return nil
}

// retryable reports whether one more attempt is worth it. Anything other
// than the store's own transient signals fails immediately.
func retryable(err error) bool {
	return errors.Is(err, graph.ErrStoreUnavailable) || errors.Is(err, graph.ErrStoreConflict)
}

// distinctEntities collapses a post's resolutions by canonical identity,
// preserving first-seen order and summing in-text mentions.
func distinctEntities(resolved []models.ResolvedEntity) []models.ResolvedEntity {
	byID := make(map[string]int, len(resolved))
	distinct := make([]models.ResolvedEntity, 0, len(resolved))

	for _, entity := range resolved {
		if idx, ok := byID[entity.CanonicalID]; ok {
			distinct[idx].Mentions += entity.Mentions
			distinct[idx].Created = distinct[idx].Created || entity.Created
			continue
		}
		byID[entity.CanonicalID] = len(distinct)
		distinct = append(distinct, entity)
	}

	return distinct
}

func postTimestamp(post models.Post) (time.Time, error) {
	if strings.TrimSpace(post.Timestamp) == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, post.Timestamp)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Snapshot, Neighbors, Statistics and Clear expose the graph read side
// without leaking the backend to callers.

func (o *Orchestrator) Snapshot(ctx context.Context, filter graph.SnapshotFilter) (*models.GraphSnapshot, error) {
	return o.store.Snapshot(ctx, filter)
}

func (o *Orchestrator) Neighbors(ctx context.Context, nodeKey string) (*models.GraphSnapshot, error) {
	return o.store.Neighbors(ctx, nodeKey)
}

func (o *Orchestrator) Statistics(ctx context.Context) (*models.GraphStatistics, error) {
	return o.store.Statistics(ctx)
}

func (o *Orchestrator) Clear(ctx context.Context) error {
	return o.store.Clear(ctx)
}

// batchEdgeKey mirrors the store's identity rules so new-edge counting sees
// symmetric pairs as one edge.
func batchEdgeKey(edge models.Edge) string {
	from, to := edge.From, edge.To
	if edge.Type.Symmetric() && to < from {
		from, to = to, from
	}
	return string(edge.Type) + "|" + from + "|" + to
}
