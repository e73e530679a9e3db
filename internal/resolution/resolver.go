package resolution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/models"
)

// Resolver owns the canonical entity registry and its alias index. Matching
// is exact-alias first, then fuzzy against canonical names of the same type,
// then minting a new entity. Resolution is monotonic: once two surface forms
// share an identity they always will. Post processing order decides which
// name wins as canonical when merges are ambiguous; that order dependence is
// deliberate and covered by tests.
type Resolver struct {
	mu         sync.Mutex
	entities   map[string]*models.Entity // canonical ID -> entity
	aliasIndex map[string]string         // normalized alias -> canonical ID
	threshold  float64
	registry   Registry
}

// Registry persists canonical entities across runs. Optional; a nil registry
// keeps the index purely in-process.
type Registry interface {
	LoadAll(ctx context.Context) ([]*models.Entity, error)
	Upsert(ctx context.Context, entity *models.Entity) error
}

func NewResolver(settings config.Settings, registry Registry) *Resolver {
	r := &Resolver{
		entities:   make(map[string]*models.Entity),
		aliasIndex: make(map[string]string),
		threshold:  settings.SimilarityThreshold,
		registry:   registry,
	}

	if registry != nil {
		if err := r.warmFromRegistry(); err != nil {
			slog.Warn("[Resolver] Failed to load persisted entities, starting empty",
				slog.String("error", err.Error()))
		}
	}

	return r
}

func (r *Resolver) warmFromRegistry() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	persisted, err := r.registry.LoadAll(ctx)
	if err != nil {
		return err
	}

	for _, e := range persisted {
		r.entities[e.ID] = e
		r.aliasIndex[Normalize(e.Name)] = e.ID
		for _, alias := range e.Aliases {
			r.aliasIndex[alias] = e.ID
		}
	}

	slog.Info("[Resolver] Loaded persisted entities", slog.Int("count", len(persisted)))
	return nil
}

// Resolve maps each candidate to a canonical identity, creating entities as
// needed. Candidates are processed in input order; the alias index mutates
// sequentially, so a candidate can match an entity minted earlier in the
// same call. Resolution itself is pure in-memory work; registry persistence
// happens afterwards, outside the lock, so a slow database never stalls
// matching.
func (r *Resolver) Resolve(ctx context.Context, candidates []models.CandidateEntity, at time.Time) []models.ResolvedEntity {
	resolved, dirty := r.resolveAll(candidates, at)

	if r.registry != nil {
		for i := range dirty {
			if err := r.registry.Upsert(ctx, &dirty[i]); err != nil {
				slog.Warn("[Resolver] Failed to persist entity",
					slog.String("entity_id", dirty[i].ID),
					slog.String("error", err.Error()))
			}
		}
	}

	return resolved
}

// resolveAll does the in-memory matching under the lock and returns value
// snapshots of every entity it touched, one per canonical identity, for the
// caller to persist after the lock is released.
func (r *Resolver) resolveAll(candidates []models.CandidateEntity, at time.Time) ([]models.ResolvedEntity, []models.Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolved := make([]models.ResolvedEntity, 0, len(candidates))
	dirtyIndex := make(map[string]int)
	var dirty []models.Entity

	for _, c := range candidates {
		key := Normalize(c.Text)
		if key == "" {
			continue
		}

		entity, created := r.resolveOne(c, key, at)
		mentions := c.Mentions
		if mentions < 1 {
			mentions = 1
		}
		resolved = append(resolved, models.ResolvedEntity{
			Name:        entity.Name,
			Type:        entity.Type,
			CanonicalID: entity.ID,
			Mentions:    mentions,
			Created:     created,
		})

		snapshot := *entity
		snapshot.Aliases = append([]string(nil), entity.Aliases...)
		if idx, ok := dirtyIndex[entity.ID]; ok {
			dirty[idx] = snapshot
		} else {
			dirtyIndex[entity.ID] = len(dirty)
			dirty = append(dirty, snapshot)
		}
	}

	return resolved, dirty
}

func (r *Resolver) resolveOne(c models.CandidateEntity, key string, at time.Time) (*models.Entity, bool) {
	mentions := c.Mentions
	if mentions < 1 {
		mentions = 1
	}

	// Exact alias match.
	if id, ok := r.aliasIndex[key]; ok {
		entity := r.entities[id]
		r.touch(entity, key, mentions, at)
		return entity, false
	}

	// Fuzzy match against canonical names of the same type.
	if match := r.bestFuzzyMatch(key, c.Type); match != nil {
		r.aliasIndex[key] = match.ID
		r.touch(match, key, mentions, at)
		return match, false
	}

	// No match: mint a new canonical entity.
	entity := &models.Entity{
		ID:        uuid.NewString(),
		Name:      c.Text,
		Type:      c.Type,
		Mentions:  mentions,
		FirstSeen: at,
		LastSeen:  at,
		Aliases:   []string{key},
	}
	r.entities[entity.ID] = entity
	r.aliasIndex[key] = entity.ID

	return entity, true
}

// bestFuzzyMatch returns the same-type entity whose canonical name scores
// above the threshold, breaking ties by similarity, then prior mention count,
// then name, so results are deterministic.
func (r *Resolver) bestFuzzyMatch(key string, typ models.EntityType) *models.Entity {
	var best *models.Entity
	bestScore := 0.0

	for _, entity := range r.entities {
		if entity.Type != typ {
			continue
		}
		score := Similarity(key, Normalize(entity.Name))
		if score < r.threshold {
			continue
		}
		if best == nil || score > bestScore ||
			(score == bestScore && entity.Mentions > best.Mentions) ||
			(score == bestScore && entity.Mentions == best.Mentions && entity.Name < best.Name) {
			best = entity
			bestScore = score
		}
	}

	if best != nil {
		slog.Debug("[Resolver] Fuzzy-merged surface form",
			slog.String("surface", key),
			slog.String("canonical", best.Name),
			slog.Float64("similarity", bestScore))
	}

	return best
}

func (r *Resolver) touch(entity *models.Entity, alias string, mentions int, at time.Time) {
	entity.Mentions += mentions
	if at.After(entity.LastSeen) {
		entity.LastSeen = at
	}
	if entity.FirstSeen.IsZero() || at.Before(entity.FirstSeen) {
		entity.FirstSeen = at
	}
	for _, known := range entity.Aliases {
		if known == alias {
			return
		}
	}
	entity.Aliases = append(entity.Aliases, alias)
}

// Known returns the number of canonical entities currently in the registry.
func (r *Resolver) Known() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entities)
}
