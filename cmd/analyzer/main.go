package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/clients"
	"github.com/spacesedan/sentigraph/internal/db"
	"github.com/spacesedan/sentigraph/internal/extraction"
	"github.com/spacesedan/sentigraph/internal/graph"
	"github.com/spacesedan/sentigraph/internal/logging"
	"github.com/spacesedan/sentigraph/internal/models"
	"github.com/spacesedan/sentigraph/internal/pipeline"
	"github.com/spacesedan/sentigraph/internal/resolution"
	"github.com/spacesedan/sentigraph/internal/sentiment"
	"github.com/spacesedan/sentigraph/internal/utils"
)

func main() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	config.LoadEnv(env)
	logging.InitLogger()

	inputPath := flag.String("input", "", "path to a JSON array of posts (default: stdin)")
	statsOnly := flag.Bool("stats", false, "print graph statistics and exit")
	dumpArchive := flag.Bool("dump-archive", false, "print archived analysis results and exit")
	flag.Parse()

	settings := config.FromEnv()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *dumpArchive {
		dumpArchivedResults(ctx)
		return
	}

	store, err := graph.NewStore(ctx, settings)
	if err != nil {
		slog.Error("[Main] Failed to initialize graph backend",
			slog.String("backend", settings.GraphBackend),
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close(context.Background())

	var registry resolution.Registry
	if os.Getenv("DB_HOST") != "" {
		if err := db.InitDB(); err != nil {
			slog.Error("[Main] Failed to initialize Postgres",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.CloseDB()
		registry = db.NewEntityRegistry()
	}

	orchestrator := pipeline.NewOrchestrator(
		sentiment.NewScorer(settings),
		extraction.NewExtractor(),
		resolution.NewResolver(settings, registry),
		store,
	)

	if *statsOnly {
		printStatistics(ctx, orchestrator)
		return
	}

	posts, err := readPosts(*inputPath)
	if err != nil {
		slog.Error("[Main] Failed to read posts", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var dedupe *clients.ValkeyClient
	if os.Getenv("VALKEY_INIT_ADDRESS") != "" {
		dedupe = clients.InitValkey()
		defer clients.CloseValkey()
		posts = filterProcessed(ctx, dedupe, posts)
	}

	if len(posts) == 0 {
		slog.Info("[Main] Nothing to analyze")
		return
	}

	batch, err := orchestrator.AnalyzeBatch(ctx, posts)
	if err != nil {
		slog.Error("[Main] Batch failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if dedupe != nil {
		for _, result := range batch.Results {
			if result.Error != "" {
				continue
			}
			if err := dedupe.MarkProcessed(ctx, result.PostID); err != nil {
				slog.Warn("[Main] Failed to mark post processed",
					slog.String("post_id", result.PostID),
					slog.String("error", err.Error()))
			}
		}
	}

	if os.Getenv("ARCHIVE_RESULTS") == "true" {
		archiveResults(ctx, batch.Results)
	}

	if err := json.NewEncoder(os.Stdout).Encode(batch); err != nil {
		slog.Error("[Main] Failed to encode batch result", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func readPosts(path string) ([]models.Post, error) {
	var reader io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		reader = f
	}

	var posts []models.Post
	if err := json.NewDecoder(reader).Decode(&posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	return posts, nil
}

func filterProcessed(ctx context.Context, dedupe *clients.ValkeyClient, posts []models.Post) []models.Post {
	kept := posts[:0]
	skipped := 0
	for _, post := range posts {
		if post.ID != "" && dedupe.IsPostProcessed(ctx, post.ID) {
			skipped++
			continue
		}
		kept = append(kept, post)
	}
	if skipped > 0 {
		slog.Info("[Main] Skipped already-processed posts", slog.Int("count", skipped))
	}
	return kept
}

// archiveResults stages results through the batch buffer and flushes them to
// DynamoDB in one drain.
func archiveResults(ctx context.Context, results []models.PerPostResult) {
	db.InitDynamoDB()

	buffer := utils.NewBatchBuffer[models.PerPostResult]()
	buffer.AddAll(results)
	buffer.LogBatchProcessing("analysis_results")

	if err := db.BatchInsertAnalysisResults(ctx, buffer.GetAndClear()); err != nil {
		slog.Error("[Main] Failed to archive results", slog.String("error", err.Error()))
	}
}

func dumpArchivedResults(ctx context.Context) {
	db.InitDynamoDB()

	results, err := db.GetArchivedResults(ctx)
	if err != nil {
		slog.Error("[Main] Failed to read archive", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := json.NewEncoder(os.Stdout).Encode(results); err != nil {
		slog.Error("[Main] Failed to encode archive", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func printStatistics(ctx context.Context, orchestrator *pipeline.Orchestrator) {
	stats, err := orchestrator.Statistics(ctx)
	if err != nil {
		slog.Error("[Main] Failed to read statistics", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := json.NewEncoder(os.Stdout).Encode(stats); err != nil {
		slog.Error("[Main] Failed to encode statistics", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
