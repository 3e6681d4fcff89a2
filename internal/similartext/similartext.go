// Package similartext turns a "column not found" dead end into a
// suggestion: given the names that do exist and the one the user typed,
// it finds the closest matches by Levenshtein distance and renders them
// as a ", maybe you mean X?" suffix for schema error messages.
package similartext

import (
	"fmt"
	"sort"
	"strings"
)

// DistanceBiggerThanSrc bounds how far a suggestion may be from the
// source, relative to the source's length. A candidate further away than
// this fraction is noise, not a typo.
const DistanceBiggerThanSrc = 0.5

// distance is the Levenshtein edit distance between a and b, computed
// with a two-row table.
func distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// Find returns a ", maybe you mean A or B?" suffix listing the names
// closest to src, or the empty string when src is empty, names is empty,
// or even the best candidate is too far from src to be a plausible typo.
func Find(names []string, src string) string {
	if len(src) == 0 || len(names) == 0 {
		return ""
	}

	minDist := -1
	var matches []string
	for _, name := range names {
		d := distance(strings.ToLower(name), strings.ToLower(src))
		if minDist == -1 || d < minDist {
			minDist = d
			matches = matches[:0]
		}
		if d == minDist {
			matches = append(matches, name)
		}
	}

	if float64(minDist) > DistanceBiggerThanSrc*float64(len(src)) {
		return ""
	}

	sort.Strings(matches)
	return fmt.Sprintf(", maybe you mean %s?", strings.Join(matches, " or "))
}

// FindFromKeys is Find over a map's keys, for callers holding a schema
// or table registry keyed by name.
func FindFromKeys[V any](m map[string]V, src string) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return Find(names, src)
}
