package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/models"
)

// Neo4jStore is the persistent backend. MERGE keeps upserts idempotent and
// counter merges additive; Cypher stays behind this type so the rest of the
// pipeline only ever sees the Store contract.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	settings config.Settings
}

func NewNeo4jStore(ctx context.Context, settings config.Settings) (*Neo4jStore, error) {
	uri := strings.TrimSpace(os.Getenv("NEO4J_URI"))
	if uri == "" {
		uri = "bolt://localhost:7687"
	}
	user := strings.TrimSpace(os.Getenv("NEO4J_USER"))
	if user == "" {
		user = "neo4j"
	}
	password := strings.TrimSpace(os.Getenv("NEO4J_PASSWORD"))
	database := strings.TrimSpace(os.Getenv("NEO4J_DATABASE"))

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("[Neo4jGraph] init driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("[Neo4jGraph] verify connectivity: %w", err)
	}

	s := &Neo4jStore{driver: driver, database: database, settings: settings}
	s.initConstraints(ctx)

	slog.Info("[Neo4jGraph] Connected", slog.String("uri", uri))
	return s, nil
}

// initConstraints creates unique-id constraints per label. Best-effort; may
// fail for restricted users.
func (s *Neo4jStore) initConstraints(ctx context.Context) {
	constraints := []string{
		`CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
		`CREATE CONSTRAINT post_id_unique IF NOT EXISTS FOR (p:Post) REQUIRE p.id IS UNIQUE`,
		`CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
	}

	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, constraint := range constraints {
		if res, err := session.Run(ctx, constraint, nil); err != nil {
			slog.Warn("[Neo4jGraph] Schema init failed (continuing)",
				slog.String("error", err.Error()))
		} else {
			_, _ = res.Consume(ctx)
		}
	}
}

func (s *Neo4jStore) newSession(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func (s *Neo4jStore) UpsertNode(ctx context.Context, node models.Node) error {
	var query string
	params := map[string]any{
		"id":       node.Key,
		"label":    node.Label,
		"mentions": node.Mentions,
	}

	switch node.Kind {
	case models.NodeUser:
		query = `
MERGE (u:User {id: $id})
ON CREATE SET u.name = $label, u.mentions = $mentions
ON MATCH SET u.name = $label, u.mentions = coalesce(u.mentions, 0) + $mentions
`
	case models.NodePost:
		query = `
MERGE (p:Post {id: $id})
SET p.platform = $platform, p.sentiment = $sentiment, p.score = $score,
    p.timestamp = CASE
        WHEN p.timestamp IS NULL OR $timestamp > p.timestamp THEN $timestamp
        ELSE p.timestamp END
`
		params["platform"] = node.Platform
		params["sentiment"] = node.SentimentLabel
		params["score"] = node.SentimentScore
		params["timestamp"] = formatTime(node.LastSeen)
	case models.NodeEntity:
		query = `
MERGE (e:Entity {id: $id})
ON CREATE SET e.name = $label, e.entity_type = $entity_type,
    e.mentions = $mentions, e.last_seen = $last_seen
ON MATCH SET e.mentions = coalesce(e.mentions, 0) + $mentions,
    e.last_seen = CASE
        WHEN e.last_seen IS NULL OR $last_seen > e.last_seen THEN $last_seen
        ELSE e.last_seen END
`
		params["entity_type"] = string(node.EntityType)
		params["last_seen"] = formatTime(node.LastSeen)
	default:
		return fmt.Errorf("unknown node kind %q", node.Kind)
	}

	return s.write(ctx, query, params)
}

func (s *Neo4jStore) UpsertEdge(ctx context.Context, edge models.Edge) error {
	edge = normalizeEdge(edge)

	// Relationship types cannot be parameterized in Cypher.
	var query string
	switch edge.Type {
	case models.EdgeAuthored:
		query = mergeEdgeQuery("AUTHORED")
	case models.EdgeMentions:
		query = mergeEdgeQuery("MENTIONS")
	case models.EdgeCoOccurs:
		query = mergeEdgeQuery("CO_OCCURS_WITH")
	default:
		return fmt.Errorf("unknown edge type %q", edge.Type)
	}

	return s.write(ctx, query, map[string]any{
		"from":   edge.From,
		"to":     edge.To,
		"weight": edge.Weight,
	})
}

func mergeEdgeQuery(relType string) string {
	return fmt.Sprintf(`
MATCH (a {id: $from})
MATCH (b {id: $to})
MERGE (a)-[r:%s]->(b)
ON CREATE SET r.weight = $weight
ON MATCH SET r.weight = r.weight + $weight
`, relType)
}

func (s *Neo4jStore) write(ctx context.Context, query string, params map[string]any) error {
	session := s.newSession(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})

	return classifyStoreError(err)
}

func (s *Neo4jStore) Snapshot(ctx context.Context, filter SnapshotFilter) (*models.GraphSnapshot, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = s.settings.SnapshotLimit
	}

	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	nodeQuery := `
MATCH (n)
RETURN n.id AS id, coalesce(n.name, n.id) AS label, labels(n)[0] AS kind
ORDER BY id LIMIT $limit
`
	params := map[string]any{"limit": limit}
	if filter.EntityType != "" {
		nodeQuery = `
MATCH (n:Entity {entity_type: $entity_type})
RETURN n.id AS id, coalesce(n.name, n.id) AS label, labels(n)[0] AS kind
ORDER BY id LIMIT $limit
`
		params["entity_type"] = string(filter.EntityType)
	}

	snapshot := &models.GraphSnapshot{}
	ids := make([]string, 0, limit)

	result, err := session.Run(ctx, nodeQuery, params)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	for result.Next(ctx) {
		record := result.Record()
		id, _ := record.Get("id")
		label, _ := record.Get("label")
		kind, _ := record.Get("kind")
		snapshot.Nodes = append(snapshot.Nodes, models.SnapshotNode{
			ID:    asString(id),
			Label: asString(label),
			Type:  strings.ToLower(asString(kind)),
		})
		ids = append(ids, asString(id))
	}
	if err := result.Err(); err != nil {
		return nil, classifyStoreError(err)
	}

	edgeResult, err := session.Run(ctx, `
MATCH (a)-[r]->(b)
WHERE a.id IN $ids AND b.id IN $ids
RETURN a.id AS source, b.id AS target, type(r) AS label, coalesce(r.weight, 1) AS weight
`, map[string]any{"ids": ids})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	for edgeResult.Next(ctx) {
		record := edgeResult.Record()
		source, _ := record.Get("source")
		target, _ := record.Get("target")
		label, _ := record.Get("label")
		weight, _ := record.Get("weight")
		snapshot.Edges = append(snapshot.Edges, models.SnapshotEdge{
			Source: asString(source),
			Target: asString(target),
			Label:  asString(label),
			Weight: asInt64(weight),
		})
	}
	if err := edgeResult.Err(); err != nil {
		return nil, classifyStoreError(err)
	}

	return snapshot, nil
}

func (s *Neo4jStore) Neighbors(ctx context.Context, nodeKey string) (*models.GraphSnapshot, error) {
	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	snapshot := &models.GraphSnapshot{}

	result, err := session.Run(ctx, `
MATCH (n {id: $id})
OPTIONAL MATCH (n)-[r]-(m)
RETURN n.id AS center_id, coalesce(n.name, n.id) AS center_label, labels(n)[0] AS center_kind,
       m.id AS id, coalesce(m.name, m.id) AS label, labels(m)[0] AS kind,
       type(r) AS rel_type, coalesce(r.weight, 1) AS weight,
       CASE WHEN startNode(r).id = $id THEN true ELSE false END AS outgoing
`, map[string]any{"id": nodeKey})
	if err != nil {
		return nil, classifyStoreError(err)
	}

	seen := map[string]bool{}
	for result.Next(ctx) {
		record := result.Record()

		centerID, _ := record.Get("center_id")
		if id := asString(centerID); id != "" && !seen[id] {
			seen[id] = true
			centerLabel, _ := record.Get("center_label")
			centerKind, _ := record.Get("center_kind")
			snapshot.Nodes = append(snapshot.Nodes, models.SnapshotNode{
				ID:    id,
				Label: asString(centerLabel),
				Type:  strings.ToLower(asString(centerKind)),
			})
		}

		neighborID, _ := record.Get("id")
		id := asString(neighborID)
		if id == "" {
			continue
		}
		if !seen[id] {
			seen[id] = true
			label, _ := record.Get("label")
			kind, _ := record.Get("kind")
			snapshot.Nodes = append(snapshot.Nodes, models.SnapshotNode{
				ID:    id,
				Label: asString(label),
				Type:  strings.ToLower(asString(kind)),
			})
		}

		relType, _ := record.Get("rel_type")
		weight, _ := record.Get("weight")
		outgoing, _ := record.Get("outgoing")
		edge := models.SnapshotEdge{
			Source: nodeKey,
			Target: id,
			Label:  asString(relType),
			Weight: asInt64(weight),
		}
		if out, ok := outgoing.(bool); ok && !out {
			edge.Source, edge.Target = edge.Target, edge.Source
		}
		snapshot.Edges = append(snapshot.Edges, edge)
	}
	if err := result.Err(); err != nil {
		return nil, classifyStoreError(err)
	}

	return snapshot, nil
}

func (s *Neo4jStore) Statistics(ctx context.Context) (*models.GraphStatistics, error) {
	session := s.newSession(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	stats := &models.GraphStatistics{
		NodeCounts:      map[models.NodeKind]int64{},
		EdgeCounts:      map[models.EdgeType]int64{},
		SentimentCounts: map[string]int64{},
	}

	result, err := session.Run(ctx, `
MATCH (n) RETURN labels(n)[0] AS kind, count(n) AS count
`, nil)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	for result.Next(ctx) {
		record := result.Record()
		kind, _ := record.Get("kind")
		count, _ := record.Get("count")
		stats.NodeCounts[models.NodeKind(strings.ToLower(asString(kind)))] = asInt64(count)
	}
	if err := result.Err(); err != nil {
		return nil, classifyStoreError(err)
	}

	result, err = session.Run(ctx, `
MATCH ()-[r]->() RETURN type(r) AS type, count(r) AS count
`, nil)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	for result.Next(ctx) {
		record := result.Record()
		typ, _ := record.Get("type")
		count, _ := record.Get("count")
		stats.EdgeCounts[models.EdgeType(asString(typ))] = asInt64(count)
	}
	if err := result.Err(); err != nil {
		return nil, classifyStoreError(err)
	}

	result, err = session.Run(ctx, `
MATCH (p:Post) WHERE p.sentiment IS NOT NULL
RETURN p.sentiment AS label, count(p) AS count
`, nil)
	if err != nil {
		return nil, classifyStoreError(err)
	}
	for result.Next(ctx) {
		record := result.Record()
		label, _ := record.Get("label")
		count, _ := record.Get("count")
		stats.SentimentCounts[asString(label)] = asInt64(count)
	}
	if err := result.Err(); err != nil {
		return nil, classifyStoreError(err)
	}

	result, err = session.Run(ctx, `
MATCH (e:Entity)
RETURN e.id AS id, e.name AS name, coalesce(e.mentions, 0) AS mentions
ORDER BY mentions DESC, id LIMIT $limit
`, map[string]any{"limit": s.settings.TopEntityLimit})
	if err != nil {
		return nil, classifyStoreError(err)
	}
	for result.Next(ctx) {
		record := result.Record()
		id, _ := record.Get("id")
		name, _ := record.Get("name")
		mentions, _ := record.Get("mentions")
		stats.TopEntities = append(stats.TopEntities, models.EntityCount{
			Key:      asString(id),
			Name:     asString(name),
			Mentions: asInt64(mentions),
		})
	}
	if err := result.Err(); err != nil {
		return nil, classifyStoreError(err)
	}

	return stats, nil
}

func (s *Neo4jStore) Clear(ctx context.Context) error {
	return s.write(ctx, `MATCH (n) DETACH DELETE n`, nil)
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// classifyStoreError maps driver failures onto the store's typed errors.
func classifyStoreError(err error) error {
	if err == nil {
		return nil
	}
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) && ne.Classification() == "TransientError" {
		return fmt.Errorf("%w: %s", ErrStoreConflict, ne.Msg)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// timestampLayout keeps the fractional seconds fixed-width so the Cypher
// string comparisons in the upsert queries order chronologically. RFC3339Nano
// drops trailing zeros, which breaks lexicographic ordering on sub-second
// values.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
