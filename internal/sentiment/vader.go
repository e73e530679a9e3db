package sentiment

import (
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/models"
)

var analyzer = govader.NewSentimentIntensityAnalyzer()

var (
	linkPattern = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	urlPattern  = regexp.MustCompile(`https?://\S+|www\.\S+`)
)

// Scorer maps raw text to a polarity score and label. Pure; the label is a
// deterministic function of the compound score under the configured cutoffs.
type Scorer struct {
	positiveThreshold float64
	negativeThreshold float64
}

func NewScorer(settings config.Settings) *Scorer {
	return &Scorer{
		positiveThreshold: settings.PositiveThreshold,
		negativeThreshold: settings.NegativeThreshold,
	}
}

func RemoveLinks(input string) string {
	input = linkPattern.ReplaceAllString(input, "$1") // Keep only the text
	return urlPattern.ReplaceAllString(input, "")
}

func ConvertMarkdownToText(input string) string {
	output := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plainText := strings.Join(strings.Fields(string(output)), " ")

	return RemoveLinks(plainText)
}

// Score analyzes one post body. Empty or whitespace-only text yields a
// neutral zero result instead of an error.
func (s *Scorer) Score(postID, text string) models.SentimentResult {
	plainText := ConvertMarkdownToText(text)
	if strings.TrimSpace(plainText) == "" {
		return models.SentimentResult{PostID: postID, Label: models.SentimentNeutral}
	}

	scores := analyzer.PolarityScores(plainText)

	return models.SentimentResult{
		PostID:   postID,
		Score:    scores.Compound,
		Label:    s.Label(scores.Compound),
		Positive: scores.Positive,
		Neutral:  scores.Neutral,
		Negative: scores.Negative,
	}
}

// Label derives the categorical label from a compound score.
func (s *Scorer) Label(score float64) string {
	switch {
	case score >= s.positiveThreshold:
		return models.SentimentPositive
	case score <= s.negativeThreshold:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
