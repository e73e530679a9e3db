package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spacesedan/sentigraph/internal/models"
)

// EntityRegistry persists the resolver's canonical entity registry so
// identities survive process restarts.
type EntityRegistry struct{}

func NewEntityRegistry() *EntityRegistry { return &EntityRegistry{} }

// LoadAll returns every persisted entity with its alias set.
func (r *EntityRegistry) LoadAll(ctx context.Context) ([]*models.Entity, error) {
	if DB == nil {
		return nil, nil
	}

	rows, err := DB.Query(ctx, `
        SELECT id, name, entity_type, mentions, first_seen, last_seen FROM entities
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	byID := map[string]*models.Entity{}
	var entities []*models.Entity
	for rows.Next() {
		var e models.Entity
		var typ string
		if err := rows.Scan(&e.ID, &e.Name, &typ, &e.Mentions, &e.FirstSeen, &e.LastSeen); err != nil {
			slog.Warn("[EntityRegistry] Failed to scan entity row", slog.String("error", err.Error()))
			continue
		}
		e.Type = models.EntityType(typ)
		byID[e.ID] = &e
		entities = append(entities, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasRows, err := DB.Query(ctx, `SELECT entity_id, alias FROM entity_aliases`)
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer aliasRows.Close()

	for aliasRows.Next() {
		var entityID, alias string
		if err := aliasRows.Scan(&entityID, &alias); err != nil {
			continue
		}
		if e, ok := byID[entityID]; ok {
			e.Aliases = append(e.Aliases, alias)
		}
	}

	return entities, aliasRows.Err()
}

// Upsert writes one entity and its aliases. Counter and timestamp merges
// happen at the SQL level so concurrent writers never lose updates.
func (r *EntityRegistry) Upsert(ctx context.Context, entity *models.Entity) error {
	if DB == nil {
		return nil
	}

	_, err := DB.Exec(ctx, `
        INSERT INTO entities (id, name, entity_type, mentions, first_seen, last_seen)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (id) DO UPDATE SET
            mentions = GREATEST(entities.mentions, EXCLUDED.mentions),
            first_seen = LEAST(entities.first_seen, EXCLUDED.first_seen),
            last_seen = GREATEST(entities.last_seen, EXCLUDED.last_seen)
    `, entity.ID, entity.Name, string(entity.Type), entity.Mentions, entity.FirstSeen, entity.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}

	for _, alias := range entity.Aliases {
		if _, err := DB.Exec(ctx, `
            INSERT INTO entity_aliases (entity_id, alias) VALUES ($1, $2)
            ON CONFLICT (entity_id, alias) DO NOTHING
        `, entity.ID, alias); err != nil {
			return fmt.Errorf("failed to upsert alias: %w", err)
		}
	}

	return nil
}
