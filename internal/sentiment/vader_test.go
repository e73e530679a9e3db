package sentiment

import (
	"strings"
	"testing"

	"github.com/spacesedan/sentigraph/config"
	"github.com/spacesedan/sentigraph/internal/models"
)

func testScorer() *Scorer {
	return NewScorer(config.Settings{
		PositiveThreshold: config.DEFAULT_POSITIVE_THRESHOLD,
		NegativeThreshold: config.DEFAULT_NEGATIVE_THRESHOLD,
	})
}

func TestLabelThresholds(t *testing.T) {
	s := testScorer()

	tests := []struct {
		name  string
		score float64
		want  string
	}{
		{name: "clearly positive", score: 0.8, want: models.SentimentPositive},
		{name: "boundary positive", score: 0.05, want: models.SentimentPositive},
		{name: "neutral high", score: 0.049, want: models.SentimentNeutral},
		{name: "zero", score: 0, want: models.SentimentNeutral},
		{name: "neutral low", score: -0.049, want: models.SentimentNeutral},
		{name: "boundary negative", score: -0.05, want: models.SentimentNegative},
		{name: "clearly negative", score: -0.9, want: models.SentimentNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Label(tt.score); got != tt.want {
				t.Fatalf("Label(%v) = %q, want %q", tt.score, got, tt.want)
			}
		})
	}
}

func TestScoreDeterministic(t *testing.T) {
	s := testScorer()

	first := s.Score("p1", "I absolutely love this, it is wonderful!")
	second := s.Score("p1", "I absolutely love this, it is wonderful!")

	if first != second {
		t.Fatalf("scoring the same text twice diverged: %+v vs %+v", first, second)
	}
	if first.Label != models.SentimentPositive {
		t.Fatalf("expected positive label, got %q (score %v)", first.Label, first.Score)
	}
}

func TestScoreNegativeText(t *testing.T) {
	s := testScorer()

	res := s.Score("p2", "This is terrible, I hate it so much.")
	if res.Label != models.SentimentNegative {
		t.Fatalf("expected negative label, got %q (score %v)", res.Label, res.Score)
	}
}

func TestScoreEmptyText(t *testing.T) {
	s := testScorer()

	for _, text := range []string{"", "   ", "\n\t"} {
		res := s.Score("p3", text)
		if res.Label != models.SentimentNeutral || res.Score != 0 {
			t.Fatalf("empty text %q should yield neutral zero, got %+v", text, res)
		}
	}
}

func TestConvertMarkdownToText(t *testing.T) {
	got := ConvertMarkdownToText("**Great** news from [Acme](https://acme.example)! https://t.co/xyz")
	if got == "" {
		t.Fatal("expected stripped text, got empty string")
	}
	for _, banned := range []string{"**", "https://", "]("} {
		if strings.Contains(got, banned) {
			t.Fatalf("converted text %q still contains %q", got, banned)
		}
	}
}
