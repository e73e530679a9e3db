package extraction

import (
	"log/slog"

	"github.com/spacesedan/sentigraph/internal/models"
)

// Extractor maps raw text to candidate entities, in first-occurrence order.
// Empty text yields an empty slice, never an error.
type Extractor interface {
	Extract(text string) []models.CandidateEntity
	Source() string
}

// NewExtractor probes the transformer model once and picks an extractor for
// the remainder of the process lifetime. Falling back is a logged mode
// switch, not an error: a per-call retry would mix extraction quality within
// one run.
func NewExtractor() Extractor {
	primary, err := newModelExtractor()
	if err != nil {
		slog.Warn("[Extractor] NER model unavailable, using pattern fallback",
			slog.String("error", err.Error()))
		return NewPatternExtractor()
	}

	slog.Info("[Extractor] Using transformer NER model")
	return primary
}

// mergeDuplicates collapses identical surface forms within one text into a
// single candidate carrying the span count as a mention hint. First
// occurrence wins the span and the ordering slot.
func mergeDuplicates(candidates []models.CandidateEntity) []models.CandidateEntity {
	merged := make([]models.CandidateEntity, 0, len(candidates))
	index := make(map[string]int, len(candidates))

	for _, c := range candidates {
		if i, ok := index[c.Text]; ok {
			merged[i].Mentions++
			continue
		}
		c.Mentions = 1
		index[c.Text] = len(merged)
		merged = append(merged, c)
	}

	return merged
}
