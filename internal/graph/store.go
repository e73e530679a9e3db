package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/models"
)

// Typed store failures. The orchestrator retries these once with backoff
// before recording them against the affected post; callers test with
// errors.Is.
var (
	// ErrStoreUnavailable covers connection and write failures against the
	// backend.
	ErrStoreUnavailable = errors.New("graph store unavailable")
	// ErrStoreConflict is a concurrent-merge conflict the backend could not
	// resolve on its own.
	ErrStoreConflict = errors.New("graph store conflict")
)

// SnapshotFilter bounds a visualization snapshot.
type SnapshotFilter struct {
	Limit      int               // max nodes; 0 means the configured default
	EntityType models.EntityType // when set, only entities of this type
}

// Store is the backend-agnostic graph contract. All mutations are
// idempotent under retry: counters merge additively, timestamps advance
// monotonically, and symmetric edges are normalized before keying so the
// store never holds (A,B) and (B,A) as distinct edges.
type Store interface {
	UpsertNode(ctx context.Context, node models.Node) error
	UpsertEdge(ctx context.Context, edge models.Edge) error
	Snapshot(ctx context.Context, filter SnapshotFilter) (*models.GraphSnapshot, error)
	Neighbors(ctx context.Context, nodeKey string) (*models.GraphSnapshot, error)
	Statistics(ctx context.Context) (*models.GraphStatistics, error)
	Clear(ctx context.Context) error
	Close(ctx context.Context) error
}

// NewStore builds the backend named by the settings. An unreachable
// persistent backend is a fatal configuration error here, not a per-call
// one.
func NewStore(ctx context.Context, settings config.Settings) (Store, error) {
	switch settings.GraphBackend {
	case config.BACKEND_MEMORY:
		return NewMemoryStore(settings), nil
	case config.BACKEND_NEO4J:
		return NewNeo4jStore(ctx, settings)
	default:
		return nil, fmt.Errorf("unknown graph backend %q", settings.GraphBackend)
	}
}

// normalizeEdge orders the endpoints of symmetric edge types so (A,B) and
// (B,A) share one key.
func normalizeEdge(edge models.Edge) models.Edge {
	if edge.Type.Symmetric() && edge.To < edge.From {
		edge.From, edge.To = edge.To, edge.From
	}
	if edge.Weight < 1 {
		edge.Weight = 1
	}
	return edge
}

func edgeKey(edge models.Edge) string {
	return string(edge.Type) + "|" + edge.From + "|" + edge.To
}
