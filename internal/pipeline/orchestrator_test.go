package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/extraction"
	"github.com/spacesedan/sentigraph/internal/graph"
	"github.com/spacesedan/sentigraph/internal/models"
	"github.com/spacesedan/sentigraph/internal/resolution"
	"github.com/spacesedan/sentigraph/internal/sentiment"
)

func testSettings() config.Settings {
	return config.Settings{
		PositiveThreshold:   config.DEFAULT_POSITIVE_THRESHOLD,
		NegativeThreshold:   config.DEFAULT_NEGATIVE_THRESHOLD,
		SimilarityThreshold: config.DEFAULT_SIMILARITY_THRESHOLD,
		SnapshotLimit:       config.DEFAULT_SNAPSHOT_LIMIT,
		TopEntityLimit:      config.DEFAULT_TOP_ENTITY_LIMIT,
	}
}

func newTestOrchestrator(store graph.Store) *Orchestrator {
	settings := testSettings()
	o := NewOrchestrator(
		sentiment.NewScorer(settings),
		extraction.NewPatternExtractor(),
		resolution.NewResolver(settings, nil),
		store,
	)
	o.retryBackoff = time.Millisecond
	return o
}

func TestAnalyzeBatchBuildsGraph(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(testSettings())
	o := newTestOrchestrator(store)

	posts := []models.Post{
		{ID: "p1", Platform: "reddit", Author: "alice", Text: "Alice met Bob in Jakarta", Timestamp: "2025-06-01T10:00:00Z"},
		{ID: "p2", Platform: "reddit", Author: "alice", Text: "I love this amazing product, thank you Bob", Timestamp: "2025-06-01T11:00:00Z"},
	}

	batch, err := o.AnalyzeBatch(ctx, posts)
	if err != nil {
		t.Fatalf("analyze batch failed: %v", err)
	}
	if len(batch.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(batch.Results))
	}
	if batch.Stats.Failed != 0 {
		t.Fatalf("expected no failures, got %d", batch.Stats.Failed)
	}
	if got := batch.Stats.Positive + batch.Stats.Neutral + batch.Stats.Negative; got != 2 {
		t.Fatalf("expected histogram to cover both posts, got %d", got)
	}

	stats, err := o.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if got := stats.NodeCounts[models.NodeUser]; got != 1 {
		t.Fatalf("same author twice must be one user node, got %d", got)
	}
	if got := stats.NodeCounts[models.NodePost]; got != 2 {
		t.Fatalf("expected 2 post nodes, got %d", got)
	}
	if got := stats.EdgeCounts[models.EdgeAuthored]; got != 2 {
		t.Fatalf("expected 2 AUTHORED edges, got %d", got)
	}
	if stats.EdgeCounts[models.EdgeMentions] == 0 {
		t.Fatal("expected MENTIONS edges to be written")
	}
	// p1 has three distinct entities, so its co-occurrence triangle exists.
	if got := stats.EdgeCounts[models.EdgeCoOccurs]; got < 3 {
		t.Fatalf("expected at least 3 CO_OCCURS_WITH edges, got %d", got)
	}
}

func TestAnalyzeBatchEntityReuseAcrossPosts(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(testSettings())
	o := newTestOrchestrator(store)

	posts := []models.Post{
		{ID: "p1", Author: "u1", Text: "Bob visited Jakarta"},
		{ID: "p2", Author: "u2", Text: "Bob again"},
	}

	batch, err := o.AnalyzeBatch(ctx, posts)
	if err != nil {
		t.Fatalf("analyze batch failed: %v", err)
	}

	// Bob minted once by p1 and reused by p2.
	if batch.Stats.NewEntities != 2 {
		t.Fatalf("expected 2 minted entities (Bob, Jakarta), got %d", batch.Stats.NewEntities)
	}
	if batch.Stats.ExistingEntities != 1 {
		t.Fatalf("expected 1 reused entity, got %d", batch.Stats.ExistingEntities)
	}

	stats, err := o.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if got := stats.NodeCounts[models.NodeEntity]; got != 2 {
		t.Fatalf("expected 2 entity nodes, got %d", got)
	}
}

func TestAnalyzeBatchBadTimestampIsolated(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(testSettings())
	o := newTestOrchestrator(store)

	posts := []models.Post{
		{ID: "p1", Author: "alice", Text: "fine"},
		{ID: "p2", Author: "alice", Text: "broken", Timestamp: "yesterday at noon"},
		{ID: "p3", Author: "alice", Text: "also fine"},
	}

	batch, err := o.AnalyzeBatch(ctx, posts)
	if err != nil {
		t.Fatalf("analyze batch failed: %v", err)
	}
	if batch.Stats.Failed != 1 {
		t.Fatalf("expected exactly 1 failure, got %d", batch.Stats.Failed)
	}

	bad := batch.Results[1]
	if bad.Error == "" {
		t.Fatal("expected error on the bad post")
	}
	if bad.Sentiment != nil {
		t.Fatal("expected no sentiment for a post rejected before analysis")
	}
	if got := batch.Stats.Positive + batch.Stats.Neutral + batch.Stats.Negative; got != 2 {
		t.Fatalf("failed post must be excluded from histogram, got %d", got)
	}

	stats, err := o.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if got := stats.NodeCounts[models.NodePost]; got != 2 {
		t.Fatalf("expected only the 2 good posts in the graph, got %d", got)
	}
}

func TestAnalyzeBatchMissingID(t *testing.T) {
	ctx := context.Background()
	o := newTestOrchestrator(graph.NewMemoryStore(testSettings()))

	batch, err := o.AnalyzeBatch(ctx, []models.Post{{Author: "alice", Text: "no id"}})
	if err != nil {
		t.Fatalf("analyze batch failed: %v", err)
	}
	if batch.Stats.Failed != 1 {
		t.Fatalf("expected failure for missing id, got %d", batch.Stats.Failed)
	}
	if batch.Results[0].Error == "" {
		t.Fatal("expected per-post error")
	}
}

func TestAnalyzeBatchEmpty(t *testing.T) {
	o := newTestOrchestrator(graph.NewMemoryStore(testSettings()))

	batch, err := o.AnalyzeBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty batch must not be an error, got %v", err)
	}
	if len(batch.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(batch.Results))
	}
	if batch.Stats != (models.BatchStats{}) {
		t.Fatalf("expected zero stats, got %+v", batch.Stats)
	}
}

func TestAnalyzeBatchMissingAuthor(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(testSettings())
	o := newTestOrchestrator(store)

	batch, err := o.AnalyzeBatch(ctx, []models.Post{
		{ID: "p1", Text: "no author here"},
		{ID: "p2", Author: "alice", Text: "fine"},
	})
	if err != nil {
		t.Fatalf("analyze batch failed: %v", err)
	}
	if batch.Stats.Failed != 1 {
		t.Fatalf("expected 1 failure for the authorless post, got %d", batch.Stats.Failed)
	}
	if !strings.Contains(batch.Results[0].Error, "missing author") {
		t.Fatalf("expected missing-author error, got %q", batch.Results[0].Error)
	}

	// No orphan Post node: every stored post carries its AUTHORED edge.
	stats, err := o.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if stats.NodeCounts[models.NodePost] != stats.EdgeCounts[models.EdgeAuthored] {
		t.Fatalf("post nodes (%d) and AUTHORED edges (%d) out of step",
			stats.NodeCounts[models.NodePost], stats.EdgeCounts[models.EdgeAuthored])
	}
}

func TestStoreFailurePreservesAnalysis(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{}
	o := newTestOrchestrator(store)

	batch, err := o.AnalyzeBatch(ctx, []models.Post{
		{ID: "p1", Author: "alice", Text: "Alice met Bob"},
	})
	if err != nil {
		t.Fatalf("analyze batch failed: %v", err)
	}

	result := batch.Results[0]
	if result.Error == "" {
		t.Fatal("expected graph write error on the result")
	}
	if result.Sentiment == nil {
		t.Fatal("store failure must not discard the computed sentiment")
	}
	if len(result.Entities) == 0 {
		t.Fatal("store failure must not discard the resolved entities")
	}
	if batch.Stats.Failed != 1 {
		t.Fatalf("expected 1 failed post, got %d", batch.Stats.Failed)
	}

	// Exactly one retry per failing write: first upsert attempted twice.
	if store.nodeCalls != 2 {
		t.Fatalf("expected 2 upsert attempts (one retry), got %d", store.nodeCalls)
	}
}

func TestResubmitSameBatchIdempotent(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore(testSettings())
	o := newTestOrchestrator(store)

	posts := []models.Post{
		{ID: "p1", Author: "alice", Text: "Alice met Bob in Jakarta", Timestamp: "2025-06-01T10:00:00Z"},
	}

	if _, err := o.AnalyzeBatch(ctx, posts); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first, err := o.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}

	second, err := o.AnalyzeBatch(ctx, posts)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	after, err := o.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}

	for kind, count := range first.NodeCounts {
		if after.NodeCounts[kind] != count {
			t.Fatalf("node count for %s changed on resubmit: %d -> %d",
				kind, count, after.NodeCounts[kind])
		}
	}
	for typ, count := range first.EdgeCounts {
		if after.EdgeCounts[typ] != count {
			t.Fatalf("edge count for %s changed on resubmit: %d -> %d",
				typ, count, after.EdgeCounts[typ])
		}
	}
	if second.Stats.NewEntities != 0 {
		t.Fatalf("resubmit must not mint entities, got %d", second.Stats.NewEntities)
	}
}

// failingStore rejects every write with the transient sentinel so retry
// accounting can be observed.
type failingStore struct {
	nodeCalls int
	edgeCalls int
}

func (f *failingStore) UpsertNode(ctx context.Context, node models.Node) error {
	f.nodeCalls++
	return fmt.Errorf("%w: injected", graph.ErrStoreUnavailable)
}

func (f *failingStore) UpsertEdge(ctx context.Context, edge models.Edge) error {
	f.edgeCalls++
	return fmt.Errorf("%w: injected", graph.ErrStoreUnavailable)
}

func (f *failingStore) Snapshot(ctx context.Context, filter graph.SnapshotFilter) (*models.GraphSnapshot, error) {
	return &models.GraphSnapshot{}, nil
}

func (f *failingStore) Neighbors(ctx context.Context, nodeKey string) (*models.GraphSnapshot, error) {
	return &models.GraphSnapshot{}, nil
}

func (f *failingStore) Statistics(ctx context.Context) (*models.GraphStatistics, error) {
	return &models.GraphStatistics{}, nil
}

func (f *failingStore) Clear(ctx context.Context) error { return nil }

func (f *failingStore) Close(ctx context.Context) error { return nil }
