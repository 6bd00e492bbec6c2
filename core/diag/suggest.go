package diag

import (
	"fmt"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxSuggestDistance bounds how different a candidate may be before it stops
// being a useful "did you mean".
const maxSuggestDistance = 3

// Suggest returns the candidate closest to target, or "" when nothing is
// plausibly a misspelling of it.
func Suggest(target string, candidates []string) string {
	if target == "" || len(candidates) == 0 {
		return ""
	}

	// Subsequence matches first ("totl" -> "total"), case-insensitive.
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		if ranks[0].Distance <= maxSuggestDistance {
			return ranks[0].Target
		}
	}

	// Then plain edit distance for transpositions ("ENDFI" -> "ENDIF"),
	// allowing at most half the target to change.
	limit := min(len(target)/2, maxSuggestDistance)
	best, bestDist := "", limit+1
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(fold(target), fold(c))
		if d < bestDist || (d == bestDist && c < best) {
			best, bestDist = c, d
		}
	}
	if bestDist <= limit {
		return best
	}

	return ""
}

// DidYouMean formats a hint for Suggest's result, or "" when there is none.
func DidYouMean(target string, candidates []string) string {
	if s := Suggest(target, candidates); s != "" && s != target {
		return fmt.Sprintf("did you mean '%s'?", s)
	}
	return ""
}

func fold(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
