package mapping

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Veraticus/invoice-readiness/internal/schema"
)

// Scorer rates how likely a source column name refers to a canonical target.
// It returns a confidence in [0,1]; 1 means the normalized names are equal.
type Scorer func(target, source string) float64

// Scorer names accepted by ScorerByName.
const (
	ScorerContainment = "containment"
	ScorerLevenshtein = "levenshtein"
	ScorerTokens      = "tokens"
)

// ScorerByName resolves a configured scorer name. An empty name selects the
// containment scorer.
func ScorerByName(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ScorerContainment:
		return ContainmentScorer, nil
	case ScorerLevenshtein:
		return LevenshteinScorer, nil
	case ScorerTokens:
		return TokenOverlapScorer, nil
	default:
		return nil, fmt.Errorf("unknown similarity scorer %q (valid: containment, levenshtein, tokens)", name)
	}
}

// ContainmentScorer is the default heuristic. The first applicable rule wins:
// identical names score 1.0, containment either way 0.9, a shared prefix 0.8,
// otherwise the length ratio when the shorter occurs inside the longer, else 0.
// The last two rules cannot fire once containment has been ruled out; they
// remain so the precedence stays complete if the containment rule changes.
func ContainmentScorer(target, source string) float64 {
	a := schema.Normalize(target)
	b := schema.Normalize(source)
	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return 0.8
	}

	longer, shorter := a, b
	if len(b) > len(a) {
		longer, shorter = b, a
	}
	if strings.Contains(longer, shorter) {
		return float64(len(shorter)) / float64(len(longer))
	}

	return 0
}

// LevenshteinScorer scores by normalized edit distance:
// 1 - distance / max(len(a), len(b)).
func LevenshteinScorer(target, source string) float64 {
	a := schema.Normalize(target)
	b := schema.Normalize(source)
	if a == "" || b == "" {
		return 0
	}

	maxLen := max(len([]rune(a)), len([]rune(b)))
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// TokenOverlapScorer scores by the Jaccard overlap of name tokens, splitting
// on separators, path punctuation and camelCase boundaries. Equal normalized
// names still score 1.0.
func TokenOverlapScorer(target, source string) float64 {
	if a, b := schema.Normalize(target), schema.Normalize(source); a == "" || b == "" {
		return 0
	} else if a == b {
		return 1.0
	}

	ta := tokenSet(target)
	tb := tokenSet(source)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for tok := range ta {
		if tb[tok] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

// tokenSet splits an identifier into lower-case tokens.
// "lines[].unit_price" -> {lines, unit, price}; "issueDate" -> {issue, date}.
func tokenSet(s string) map[string]bool {
	tokens := make(map[string]bool)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			tokens[strings.ToLower(current.String())] = true
			current.Reset()
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			flush()
		}
		current.WriteRune(r)
	}
	flush()

	return tokens
}

// levenshtein computes the edit distance between two strings using two rows.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(ra)]
}
