package resolution

import (
	"strings"
	"unicode"
)

var leadingArticles = map[string]bool{"the": true, "a": true, "an": true}

// Normalize reduces a surface form to its index key: lowercase, surrounding
// punctuation (including @/# sigils) stripped, leading articles removed,
// internal whitespace collapsed. Two surface forms with the same normalized
// key always resolve to the same canonical entity within a run.
func Normalize(surface string) string {
	s := strings.ToLower(strings.TrimSpace(surface))
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})

	fields := strings.Fields(s)
	for len(fields) > 0 && leadingArticles[fields[0]] {
		fields = fields[1:]
	}

	return strings.Join(fields, " ")
}

// levenshteinRatio converts edit distance to a similarity in [0, 1].
func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

func levenshtein(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	matrix := make([][]int, len(s1)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(s2)+1)
	}
	for i := 0; i <= len(s1); i++ {
		matrix[i][0] = i
	}
	for j := 0; j <= len(s2); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			m := matrix[i-1][j] + 1 // deletion
			if ins := matrix[i][j-1] + 1; ins < m {
				m = ins
			}
			if sub := matrix[i-1][j-1] + cost; sub < m {
				m = sub
			}
			matrix[i][j] = m
		}
	}

	return matrix[len(s1)][len(s2)]
}

// tokenJaccard measures word-set overlap, which catches reorderings and
// partial names that character edits miss ("acme corp" vs "corp acme").
func tokenJaccard(a, b string) float64 {
	aSet := tokenSet(a)
	bSet := tokenSet(b)
	if len(aSet) == 0 && len(bSet) == 0 {
		return 1
	}
	if len(aSet) == 0 || len(bSet) == 0 {
		return 0
	}

	intersection := 0
	for tok := range aSet {
		if bSet[tok] {
			intersection++
		}
	}
	union := len(aSet) + len(bSet) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}

// Similarity is the match score between two normalized names: the better of
// edit-distance ratio and token overlap.
func Similarity(a, b string) float64 {
	lev := levenshteinRatio(a, b)
	jac := tokenJaccard(a, b)
	if jac > lev {
		return jac
	}
	return lev
}
