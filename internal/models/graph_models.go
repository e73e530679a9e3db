package models

import "time"

// NodeKind discriminates the graph's node union.
type NodeKind string

const (
	NodeUser   NodeKind = "user"
	NodePost   NodeKind = "post"
	NodeEntity NodeKind = "entity"
)

// EdgeType is the set of relationship types the graph holds.
type EdgeType string

const (
	EdgeAuthored EdgeType = "AUTHORED"       // User -> Post
	EdgeMentions EdgeType = "MENTIONS"       // Post -> Entity
	EdgeCoOccurs EdgeType = "CO_OCCURS_WITH" // Entity <-> Entity, undirected
)

// Node is one graph node keyed by kind plus natural key ("user:<id>",
// "post:<id>", "entity:<uuid>"). Merge semantics on upsert: Mentions is
// additive, LastSeen advances monotonically, the remaining attributes are
// set on create and refreshed when non-zero.
type Node struct {
	Key   string   `json:"key"`
	Kind  NodeKind `json:"kind"`
	Label string   `json:"label"` // display name

	// Post attributes.
	Platform       string  `json:"platform,omitempty"`
	SentimentLabel string  `json:"sentiment_label,omitempty"`
	SentimentScore float64 `json:"sentiment_score,omitempty"`

	// Entity attributes.
	EntityType EntityType `json:"entity_type,omitempty"`

	Mentions int64     `json:"mentions,omitempty"`
	LastSeen time.Time `json:"last_seen,omitempty"`
}

// Edge is one typed relationship. Weight is additive on upsert; re-adding an
// existing edge increments it instead of duplicating the edge.
type Edge struct {
	Type   EdgeType `json:"type"`
	From   string   `json:"from"`
	To     string   `json:"to"`
	Weight int64    `json:"weight"`
}

// Symmetric reports whether the edge type is undirected.
func (t EdgeType) Symmetric() bool { return t == EdgeCoOccurs }

// SnapshotNode and SnapshotEdge are the visualization-friendly projections
// returned by snapshot queries.
type SnapshotNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"` // user | post | entity
}

type SnapshotEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
	Weight int64  `json:"weight"`
}

// GraphSnapshot is a bounded view of the graph.
type GraphSnapshot struct {
	Nodes []SnapshotNode `json:"nodes"`
	Edges []SnapshotEdge `json:"edges"`
}

// EntityCount is one row of the top-entities ranking.
type EntityCount struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Mentions int64  `json:"mentions"`
}

// GraphStatistics summarizes the stored graph.
type GraphStatistics struct {
	NodeCounts      map[NodeKind]int64 `json:"node_counts_by_type"`
	EdgeCounts      map[EdgeType]int64 `json:"edge_counts_by_type"`
	SentimentCounts map[string]int64   `json:"sentiment_distribution"`
	TopEntities     []EntityCount      `json:"top_entities"`
}
