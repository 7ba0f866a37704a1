package chat

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// similarityCutoff is the documented threshold for the fuzzy rule.
const similarityCutoff = 0.6

// minSubstringLen keeps short fragments ("Al") from matching several
// contacts via containment; short queries stay unresolved rather than guess.
const minSubstringLen = 3

// ResolveContact maps a free-text name to the best matching known contact.
// Rules run in strict priority order and the first match wins:
//
//  1. exact case-insensitive equality
//  2. normalized edit-distance similarity >= 0.6, best-scoring candidate
//  3. bidirectional substring containment, only for len(candidate) >= 3
//
// A miss is not an error: the candidate comes back unchanged with ok=false
// and callers proceed with the literal text, deferring to the automation
// backend's own search.
func ResolveContact(candidate string, known []Contact) (Contact, bool) {
	name := strings.TrimSpace(candidate)
	if name == "" || len(known) == 0 {
		return Contact{DisplayName: name}, false
	}
	lower := strings.ToLower(name)

	for _, c := range known {
		if strings.ToLower(c.DisplayName) == lower {
			return c, true
		}
	}

	best := -1
	bestScore := 0.0
	for i, c := range known {
		score := similarity(lower, strings.ToLower(c.DisplayName))
		if score >= similarityCutoff && score > bestScore {
			best = i
			bestScore = score
		}
	}
	if best >= 0 {
		return known[best], true
	}

	if len(lower) >= minSubstringLen {
		for _, c := range known {
			contactLower := strings.ToLower(c.DisplayName)
			if strings.Contains(contactLower, lower) || strings.Contains(lower, contactLower) {
				return c, true
			}
		}
	}

	return Contact{DisplayName: name}, false
}

// similarity is 1 - dist/maxLen over case-folded runes, so 1.0 is equality
// and 0.0 shares nothing.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
