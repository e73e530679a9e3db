package graph

import (
	"context"
	"sort"
	"sync"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/models"
)

// MemoryStore is the transient backend: one process, no persistence. A
// read-write mutex gives the per-key serializable merge semantics the
// contract demands under concurrent callers.
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]*models.Node
	edges    map[string]*models.Edge
	settings config.Settings
}

func NewMemoryStore(settings config.Settings) *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]*models.Node),
		edges:    make(map[string]*models.Edge),
		settings: settings,
	}
}

func (s *MemoryStore) UpsertNode(ctx context.Context, node models.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.nodes[node.Key]
	if !ok {
		n := node
		s.nodes[node.Key] = &n
		return nil
	}

	// Merge: counters add, timestamps never regress, fresh attributes win.
	existing.Mentions += node.Mentions
	if node.LastSeen.After(existing.LastSeen) {
		existing.LastSeen = node.LastSeen
	}
	if node.Label != "" {
		existing.Label = node.Label
	}
	if node.SentimentLabel != "" {
		existing.SentimentLabel = node.SentimentLabel
		existing.SentimentScore = node.SentimentScore
	}
	if node.Platform != "" {
		existing.Platform = node.Platform
	}
	if node.EntityType != "" {
		existing.EntityType = node.EntityType
	}

	return nil
}

func (s *MemoryStore) UpsertEdge(ctx context.Context, edge models.Edge) error {
	edge = normalizeEdge(edge)

	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey(edge)
	if existing, ok := s.edges[key]; ok {
		existing.Weight += edge.Weight
		return nil
	}

	e := edge
	s.edges[key] = &e
	return nil
}

func (s *MemoryStore) Snapshot(ctx context.Context, filter SnapshotFilter) (*models.GraphSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = s.settings.SnapshotLimit
	}

	keys := make([]string, 0, len(s.nodes))
	for key, node := range s.nodes {
		if filter.EntityType != "" &&
			(node.Kind != models.NodeEntity || node.EntityType != filter.EntityType) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}

	included := make(map[string]bool, len(keys))
	snapshot := &models.GraphSnapshot{}
	for _, key := range keys {
		included[key] = true
		snapshot.Nodes = append(snapshot.Nodes, snapshotNode(s.nodes[key]))
	}

	edgeKeys := make([]string, 0, len(s.edges))
	for key, edge := range s.edges {
		if included[edge.From] && included[edge.To] {
			edgeKeys = append(edgeKeys, key)
		}
	}
	sort.Strings(edgeKeys)
	for _, key := range edgeKeys {
		snapshot.Edges = append(snapshot.Edges, snapshotEdge(s.edges[key]))
	}

	return snapshot, nil
}

func (s *MemoryStore) Neighbors(ctx context.Context, nodeKey string) (*models.GraphSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &models.GraphSnapshot{}
	center, ok := s.nodes[nodeKey]
	if !ok {
		return snapshot, nil
	}
	snapshot.Nodes = append(snapshot.Nodes, snapshotNode(center))

	seen := map[string]bool{nodeKey: true}
	edgeKeys := make([]string, 0)
	for key, edge := range s.edges {
		if edge.From == nodeKey || edge.To == nodeKey {
			edgeKeys = append(edgeKeys, key)
		}
	}
	sort.Strings(edgeKeys)

	for _, key := range edgeKeys {
		edge := s.edges[key]
		other := edge.To
		if other == nodeKey {
			other = edge.From
		}
		if node, ok := s.nodes[other]; ok && !seen[other] {
			seen[other] = true
			snapshot.Nodes = append(snapshot.Nodes, snapshotNode(node))
		}
		snapshot.Edges = append(snapshot.Edges, snapshotEdge(edge))
	}

	return snapshot, nil
}

func (s *MemoryStore) Statistics(ctx context.Context) (*models.GraphStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.GraphStatistics{
		NodeCounts:      map[models.NodeKind]int64{},
		EdgeCounts:      map[models.EdgeType]int64{},
		SentimentCounts: map[string]int64{},
	}

	var entities []*models.Node
	for _, node := range s.nodes {
		stats.NodeCounts[node.Kind]++
		if node.Kind == models.NodePost && node.SentimentLabel != "" {
			stats.SentimentCounts[node.SentimentLabel]++
		}
		if node.Kind == models.NodeEntity {
			entities = append(entities, node)
		}
	}
	for _, edge := range s.edges {
		stats.EdgeCounts[edge.Type]++
	}

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].Mentions != entities[j].Mentions {
			return entities[i].Mentions > entities[j].Mentions
		}
		return entities[i].Key < entities[j].Key
	})
	limit := s.settings.TopEntityLimit
	if limit <= 0 {
		limit = config.DEFAULT_TOP_ENTITY_LIMIT
	}
	for i, node := range entities {
		if i >= limit {
			break
		}
		stats.TopEntities = append(stats.TopEntities, models.EntityCount{
			Key:      node.Key,
			Name:     node.Label,
			Mentions: node.Mentions,
		})
	}

	return stats, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[string]*models.Node)
	s.edges = make(map[string]*models.Edge)
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func snapshotNode(node *models.Node) models.SnapshotNode {
	return models.SnapshotNode{
		ID:    node.Key,
		Label: node.Label,
		Type:  string(node.Kind),
	}
}

func snapshotEdge(edge *models.Edge) models.SnapshotEdge {
	return models.SnapshotEdge{
		Source: edge.From,
		Target: edge.To,
		Label:  string(edge.Type),
		Weight: edge.Weight,
	}
}
