package resolution

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		surface string
		want    string
	}{
		{name: "lowercases", surface: "Jakarta", want: "jakarta"},
		{name: "strips article", surface: "The White House", want: "white house"},
		{name: "strips sigils", surface: "@alice", want: "alice"},
		{name: "strips hashtag", surface: "#GoLang", want: "golang"},
		{name: "trims punctuation", surface: "Acme, Inc.", want: "acme, inc"},
		{name: "collapses whitespace", surface: "  Acme   Corp ", want: "acme corp"},
		{name: "article only", surface: "The", want: ""},
		{name: "empty", surface: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.surface); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.surface, got, tt.want)
			}
		})
	}
}

func TestLevenshteinRatio(t *testing.T) {
	if got := levenshteinRatio("kitten", "kitten"); got != 1 {
		t.Fatalf("identical strings should score 1, got %v", got)
	}
	if got := levenshteinRatio("", ""); got != 1 {
		t.Fatalf("two empty strings should score 1, got %v", got)
	}

	got := levenshteinRatio("barack obama", "barak obama")
	if got < 0.9 {
		t.Fatalf("near-identical names should score high, got %v", got)
	}

	far := levenshteinRatio("jakarta", "microsoft")
	if far > 0.4 {
		t.Fatalf("unrelated names should score low, got %v", far)
	}
}

func TestTokenJaccard(t *testing.T) {
	if got := tokenJaccard("acme corp", "corp acme"); got != 1 {
		t.Fatalf("reordered tokens should score 1, got %v", got)
	}
	if got := tokenJaccard("acme corp", "acme"); got != 0.5 {
		t.Fatalf("half-overlap should score 0.5, got %v", got)
	}
	if got := tokenJaccard("alpha", "beta"); got != 0 {
		t.Fatalf("disjoint tokens should score 0, got %v", got)
	}
}

func TestSimilarityTakesBest(t *testing.T) {
	// Token overlap is perfect here while edit distance is poor.
	if got := Similarity("acme corp", "corp acme"); got != 1 {
		t.Fatalf("expected token overlap to win, got %v", got)
	}
}
