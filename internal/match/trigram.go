// Package match provides deterministic fuzzy matching of product names using
// character-trigram similarity. It is intentionally small and dependency-free:
//
//   - No logging in the library (callers decide how/what to log)
//   - Unicode-aware normalization (case and accent folding) before comparison
//   - Deterministic scoring and sorting (stable order for ties)
//   - Jaccard similarity over trigram sets: score = |A ∩ B| / |A ∪ B|
//
// The scoring mirrors what a trigram-indexed SQL similarity operator would
// return, which keeps ranking behavior portable across database backends.
package match

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Candidate is one match against a reference name.
type Candidate struct {
	// ID identifies the candidate in the caller's store.
	ID string
	// Name is the candidate's display name as stored.
	Name string
	// Score is the trigram similarity against the query, in [0, 1].
	Score float64
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips accents, and collapses runs of
// non-alphanumeric runes into single spaces.
func Normalize(s string) string {
	folded, _, err := transform.String(foldAccents, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		} else {
			space = true
		}
	}
	return b.String()
}

// trigrams returns the set of padded character trigrams of a normalized
// string. Padding with leading/trailing spaces weights word boundaries the
// way trigram indexes do.
func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(s) {
		padded := "  " + word + " "
		rs := []rune(padded)
		for i := 0; i+3 <= len(rs); i++ {
			set[string(rs[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity computes the trigram Jaccard similarity of two names after
// normalization. Two empty or fully non-alphanumeric strings score 0.
func Similarity(a, b string) float64 {
	ta := trigrams(Normalize(a))
	tb := trigrams(Normalize(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// TopMatches scores query against every candidate and returns up to limit
// candidates whose similarity strictly exceeds threshold, best first. Ties
// keep the input order.
func TopMatches(query string, candidates []Candidate, threshold float64, limit int) []Candidate {
	scored := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if s := Similarity(query, c.Name); s > threshold {
			c.Score = s
			scored = append(scored, c)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
