package graph

import (
	"context"
	"testing"
	"time"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/models"
)

func testSettings() config.Settings {
	return config.Settings{
		SnapshotLimit:  config.DEFAULT_SNAPSHOT_LIMIT,
		TopEntityLimit: config.DEFAULT_TOP_ENTITY_LIMIT,
	}
}

func TestUpsertNodeIdempotentIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testSettings())

	node := models.Node{
		Key:      "user:alice",
		Kind:     models.NodeUser,
		Label:    "alice",
		Mentions: 1,
	}

	if err := store.UpsertNode(ctx, node); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := store.UpsertNode(ctx, node); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	snapshot, err := store.Snapshot(ctx, SnapshotFilter{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(snapshot.Nodes) != 1 {
		t.Fatalf("expected 1 node after repeated upsert, got %d", len(snapshot.Nodes))
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if stats.NodeCounts[models.NodeUser] != 1 {
		t.Fatalf("expected 1 user node, got %d", stats.NodeCounts[models.NodeUser])
	}
}

func TestUpsertNodeAdditiveMentions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testSettings())

	node := models.Node{
		Key:      "entity:1",
		Kind:     models.NodeEntity,
		Label:    "Jakarta",
		Mentions: 2,
	}
	if err := store.UpsertNode(ctx, node); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	node.Mentions = 3
	if err := store.UpsertNode(ctx, node); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if len(stats.TopEntities) != 1 {
		t.Fatalf("expected 1 top entity, got %d", len(stats.TopEntities))
	}
	if got := stats.TopEntities[0].Mentions; got != 5 {
		t.Fatalf("expected mentions 2+3=5, got %d", got)
	}
}

func TestUpsertNodeMonotonicLastSeen(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testSettings())

	later := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	node := models.Node{Key: "entity:1", Kind: models.NodeEntity, Label: "Acme", LastSeen: later}
	if err := store.UpsertNode(ctx, node); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	node.LastSeen = earlier
	if err := store.UpsertNode(ctx, node); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	store.mu.RLock()
	got := store.nodes["entity:1"].LastSeen
	store.mu.RUnlock()
	if !got.Equal(later) {
		t.Fatalf("last seen regressed: got %v, want %v", got, later)
	}
}

func TestUpsertEdgeAdditiveWeight(t *testing.T) {
	ctx := context.Background()
	store := seedNodes(t, "post:1", "entity:1")

	edge := models.Edge{Type: models.EdgeMentions, From: "post:1", To: "entity:1", Weight: 1}
	for i := 0; i < 3; i++ {
		if err := store.UpsertEdge(ctx, edge); err != nil {
			t.Fatalf("upsert edge failed: %v", err)
		}
	}

	snapshot, err := store.Snapshot(ctx, SnapshotFilter{})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(snapshot.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(snapshot.Edges))
	}
	if got := snapshot.Edges[0].Weight; got != 3 {
		t.Fatalf("expected accumulated weight 3, got %d", got)
	}
}

func TestCoOccurrenceSymmetric(t *testing.T) {
	ctx := context.Background()
	store := seedNodes(t, "entity:a", "entity:b")

	// The same pair in both orders must land on a single edge.
	if err := store.UpsertEdge(ctx, models.Edge{Type: models.EdgeCoOccurs, From: "entity:b", To: "entity:a", Weight: 1}); err != nil {
		t.Fatalf("upsert edge failed: %v", err)
	}
	if err := store.UpsertEdge(ctx, models.Edge{Type: models.EdgeCoOccurs, From: "entity:a", To: "entity:b", Weight: 1}); err != nil {
		t.Fatalf("upsert edge failed: %v", err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if got := stats.EdgeCounts[models.EdgeCoOccurs]; got != 1 {
		t.Fatalf("expected symmetric pair to collapse to 1 edge, got %d", got)
	}

	fromA, err := store.Neighbors(ctx, "entity:a")
	if err != nil {
		t.Fatalf("neighbors failed: %v", err)
	}
	fromB, err := store.Neighbors(ctx, "entity:b")
	if err != nil {
		t.Fatalf("neighbors failed: %v", err)
	}
	if len(fromA.Edges) != 1 || len(fromB.Edges) != 1 {
		t.Fatalf("expected edge visible from both endpoints, got %d and %d",
			len(fromA.Edges), len(fromB.Edges))
	}
	if fromA.Edges[0].Weight != fromB.Edges[0].Weight {
		t.Fatalf("expected equal weight from both endpoints, got %d vs %d",
			fromA.Edges[0].Weight, fromB.Edges[0].Weight)
	}
}

func TestSnapshotLimitAndFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testSettings())

	nodes := []models.Node{
		{Key: "entity:1", Kind: models.NodeEntity, Label: "Alice", EntityType: models.EntityPerson},
		{Key: "entity:2", Kind: models.NodeEntity, Label: "Acme", EntityType: models.EntityOrganization},
		{Key: "entity:3", Kind: models.NodeEntity, Label: "Jakarta", EntityType: models.EntityLocation},
		{Key: "user:alice", Kind: models.NodeUser, Label: "alice"},
	}
	for _, n := range nodes {
		if err := store.UpsertNode(ctx, n); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	limited, err := store.Snapshot(ctx, SnapshotFilter{Limit: 2})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(limited.Nodes) != 2 {
		t.Fatalf("expected 2 nodes with limit 2, got %d", len(limited.Nodes))
	}

	people, err := store.Snapshot(ctx, SnapshotFilter{EntityType: models.EntityPerson})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(people.Nodes) != 1 || people.Nodes[0].Label != "Alice" {
		t.Fatalf("expected only the person entity, got %+v", people.Nodes)
	}
}

func TestSnapshotExcludesDanglingEdges(t *testing.T) {
	ctx := context.Background()
	store := seedNodes(t, "entity:1", "entity:2", "entity:3")

	if err := store.UpsertEdge(ctx, models.Edge{Type: models.EdgeCoOccurs, From: "entity:1", To: "entity:3", Weight: 1}); err != nil {
		t.Fatalf("upsert edge failed: %v", err)
	}

	// Limit 2 keeps entity:1 and entity:2; the edge to entity:3 must not leak.
	snapshot, err := store.Snapshot(ctx, SnapshotFilter{Limit: 2})
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if len(snapshot.Edges) != 0 {
		t.Fatalf("expected no edges among included nodes, got %+v", snapshot.Edges)
	}
}

func TestStatisticsSentimentHistogram(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testSettings())

	posts := []models.Node{
		{Key: "post:1", Kind: models.NodePost, SentimentLabel: models.SentimentPositive},
		{Key: "post:2", Kind: models.NodePost, SentimentLabel: models.SentimentPositive},
		{Key: "post:3", Kind: models.NodePost, SentimentLabel: models.SentimentNegative},
	}
	for _, n := range posts {
		if err := store.UpsertNode(ctx, n); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if stats.SentimentCounts[models.SentimentPositive] != 2 {
		t.Fatalf("expected 2 positive posts, got %d", stats.SentimentCounts[models.SentimentPositive])
	}
	if stats.SentimentCounts[models.SentimentNegative] != 1 {
		t.Fatalf("expected 1 negative post, got %d", stats.SentimentCounts[models.SentimentNegative])
	}
}

func TestClearResetsStore(t *testing.T) {
	ctx := context.Background()
	store := seedNodes(t, "entity:1", "entity:2")

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics failed: %v", err)
	}
	if len(stats.NodeCounts) != 0 || len(stats.EdgeCounts) != 0 {
		t.Fatalf("expected empty store after clear, got %+v", stats)
	}
}

func seedNodes(t *testing.T, keys ...string) *MemoryStore {
	t.Helper()
	store := NewMemoryStore(testSettings())
	for _, key := range keys {
		kind := models.NodeEntity
		if len(key) > 5 && key[:5] == "post:" {
			kind = models.NodePost
		}
		if err := store.UpsertNode(context.Background(), models.Node{Key: key, Kind: kind, Label: key}); err != nil {
			t.Fatalf("seed upsert failed: %v", err)
		}
	}
	return store
}
