package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/spacesedan/sentigraph/internal/models"
)

var (
	mentionPattern = regexp.MustCompile(`@\w+`)
	hashtagPattern = regexp.MustCompile(`#\w+`)
	emailPattern   = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)
	urlRefPattern  = regexp.MustCompile(`https?://\S+`)
	capitalizedRun = regexp.MustCompile(`(?:[A-Z][a-zA-Z]+)(?:\s+[A-Z][a-zA-Z]+)*`)
)

// Words that start sentences constantly and are never entities on their own.
var capitalizedStopwords = map[string]bool{
	"A": true, "An": true, "And": true, "But": true, "By": true, "For": true,
	"He": true, "Her": true, "His": true, "I": true, "If": true, "In": true,
	"It": true, "Its": true, "My": true, "No": true, "Not": true, "Of": true,
	"On": true, "Or": true, "Our": true, "She": true, "So": true, "The": true,
	"They": true, "This": true, "To": true, "We": true, "What": true,
	"When": true, "Why": true, "You": true, "Your": true,
}

var organizationMarkers = map[string]bool{
	"Inc": true, "Corp": true, "Corporation": true, "Ltd": true, "LLC": true,
	"Company": true, "Group": true, "University": true, "Institute": true,
	"Bank": true, "Labs": true, "Agency": true, "Ministry": true,
}

var locationMarkers = map[string]bool{
	"City": true, "County": true, "Island": true, "Republic": true,
	"Jakarta": true, "London": true, "Paris": true, "Tokyo": true,
	"Berlin": true, "Singapore": true, "Sydney": true, "Nairobi": true,
	"Moscow": true, "Beijing": true, "Delhi": true, "Cairo": true,
}

// PatternExtractor is the degraded-mode extractor: @-mentions, hashtags,
// URLs, emails and capitalized-token runs with small keyword lists for type
// hints. Lower recall than the model, but dependency-free and deterministic.
type PatternExtractor struct{}

func NewPatternExtractor() *PatternExtractor { return &PatternExtractor{} }

func (p *PatternExtractor) Source() string { return "pattern" }

func (p *PatternExtractor) Extract(text string) []models.CandidateEntity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var candidates []models.CandidateEntity
	claimed := make([]bool, len(text))

	collect := func(pattern *regexp.Regexp, typ models.EntityType, trim func(string) string) {
		for _, loc := range pattern.FindAllStringIndex(text, -1) {
			if spanClaimed(claimed, loc[0], loc[1]) {
				continue
			}
			surface := text[loc[0]:loc[1]]
			if trim != nil {
				surface = trim(surface)
			}
			if surface == "" {
				continue
			}
			claimSpan(claimed, loc[0], loc[1])
			candidates = append(candidates, models.CandidateEntity{
				Text:       surface,
				Type:       typ,
				Start:      loc[0],
				End:        loc[1],
				Source:     p.Source(),
				Confidence: patternConfidence,
			})
		}
	}

	// Unambiguous markers first so capitalized runs cannot swallow them.
	collect(urlRefPattern, models.EntityMisc, strings.TrimSpace)
	collect(emailPattern, models.EntityMisc, nil)
	collect(mentionPattern, models.EntityPerson, nil)
	collect(hashtagPattern, models.EntityMisc, nil)

	for _, loc := range capitalizedRun.FindAllStringIndex(text, -1) {
		if spanClaimed(claimed, loc[0], loc[1]) {
			continue
		}
		surface := text[loc[0]:loc[1]]
		tokens := strings.Fields(surface)
		tokens = dropLeadingStopwords(tokens)
		if len(tokens) == 0 {
			continue
		}
		surface = strings.Join(tokens, " ")
		start := loc[0] + strings.Index(text[loc[0]:loc[1]], tokens[0])
		claimSpan(claimed, loc[0], loc[1])
		candidates = append(candidates, models.CandidateEntity{
			Text:       surface,
			Type:       classifyRun(tokens),
			Start:      start,
			End:        start + len(surface),
			Source:     p.Source(),
			Confidence: patternConfidence,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Start < candidates[j].Start
	})

	return mergeDuplicates(candidates)
}

const patternConfidence = 0.5

func classifyRun(tokens []string) models.EntityType {
	for _, tok := range tokens {
		if organizationMarkers[tok] {
			return models.EntityOrganization
		}
	}
	for _, tok := range tokens {
		if locationMarkers[tok] {
			return models.EntityLocation
		}
	}
	return models.EntityPerson
}

func dropLeadingStopwords(tokens []string) []string {
	for len(tokens) > 0 && capitalizedStopwords[tokens[0]] {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && capitalizedStopwords[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}

func spanClaimed(claimed []bool, start, end int) bool {
	for i := start; i < end && i < len(claimed); i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

func claimSpan(claimed []bool, start, end int) {
	for i := start; i < end && i < len(claimed); i++ {
		claimed[i] = true
	}
}
