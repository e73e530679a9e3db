package models

import "time"

// SentimentResult carries the polarity score for one post along with the
// label derived from the configured thresholds.
type SentimentResult struct {
	PostID   string  `json:"post_id"`
	Score    float64 `json:"score"` // VADER compound, in [-1, 1]
	Label    string  `json:"label"` // positive | neutral | negative
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// EntityType classifies a candidate or canonical entity.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
	EntityMisc         EntityType = "misc"
)

// CandidateEntity is one extracted mention, transient within a single
// extraction call. Mentions counts how many identical surface forms were
// found in the same text; the span covers the first occurrence.
type CandidateEntity struct {
	Text       string     `json:"text"`
	Type       EntityType `json:"type"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Source     string     `json:"source"` // model | pattern
	Confidence float64    `json:"confidence"`
	Mentions   int        `json:"mentions"`
}

// ResolvedEntity pairs a candidate mention with its canonical identity.
type ResolvedEntity struct {
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	CanonicalID string     `json:"canonical_id"`
	Mentions    int        `json:"mentions"` // occurrences in the source text
	Created     bool       `json:"-"`        // true when this resolution minted the entity
}

// PerPostResult is the outcome of analyzing one post. When Error is set the
// analysis fields may still be populated: a failed graph write does not
// discard the sentiment and entities already computed.
type PerPostResult struct {
	PostID    string           `json:"post_id"`
	Platform  string           `json:"platform,omitempty"`
	Author    string           `json:"author,omitempty"`
	Sentiment *SentimentResult `json:"sentiment,omitempty"`
	Entities  []ResolvedEntity `json:"entities,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// BatchStats aggregates one AnalyzeBatch call. Failed posts are excluded
// from the sentiment histogram.
type BatchStats struct {
	TotalPosts       int `json:"total_posts"`
	Positive         int `json:"positive"`
	Neutral          int `json:"neutral"`
	Negative         int `json:"negative"`
	Failed           int `json:"failed"`
	NewEntities      int `json:"new_entities"`
	ExistingEntities int `json:"existing_entities"`
	NewEdges         int `json:"new_edges"`
}

// BatchResult is what AnalyzeBatch returns to the caller.
type BatchResult struct {
	Results []PerPostResult `json:"results"`
	Stats   BatchStats      `json:"stats"`
}

// Entity is a canonical real-world referent resolved from one or more
// surface-form mentions. Mutated on every subsequent match, never deleted
// within a run.
type Entity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"` // canonical display name
	Type      EntityType `json:"type"`
	Mentions  int        `json:"mentions"`
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	Aliases   []string   `json:"aliases"` // known surface forms, normalized
}
