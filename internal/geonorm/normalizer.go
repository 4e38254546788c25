// Package geonorm canonicalizes free-form location strings using alias
// tables and Sørensen–Dice fuzzy matching (spec §4.H).
package geonorm

import (
	"regexp"
	"strings"
)

// Canonical is a resolved location: its canonical name plus, when known,
// coordinates or a bucket id a caller can delegate a geo search to.
type Canonical struct {
	Name     string
	Lat      float64
	Lng      float64
	HasCoord bool
	BucketID string
}

// fuzzyThreshold is the Sørensen–Dice similarity cutoff for a fuzzy match
// (spec §4.H, §9: "a magic constant ... spec preserves it but flags it as a
// tunable").
const fuzzyThreshold = 0.8

// Normalizer resolves input strings to Canonical records.
type Normalizer struct {
	// canonical maps a normalized canonical key to its record.
	canonical map[string]Canonical
	// alias maps a normalized alias key to a canonical key.
	alias map[string]string
}

// New builds a Normalizer from built-in major-city data, built-in
// US/International aliases, and user-supplied mappings. User mappings
// override built-ins on key collision (spec §4.H).
func New(userMappings map[string]Canonical, userAliases map[string]string) *Normalizer {
	n := &Normalizer{
		canonical: map[string]Canonical{},
		alias:     map[string]string{},
	}
	for _, c := range builtinMajorCities {
		n.canonical[normalizeKey(c.Name)] = c
	}
	for alias, canonical := range builtinAliases {
		n.alias[normalizeKey(alias)] = normalizeKey(canonical)
	}
	for name, c := range userMappings {
		n.canonical[normalizeKey(name)] = c
	}
	for alias, canonical := range userAliases {
		n.alias[normalizeKey(alias)] = normalizeKey(canonical)
	}
	return n
}

var nonWordRe = regexp.MustCompile(`[^\w]+`)

// normalizeKey case-folds, strips non-word characters, and collapses spaces.
func normalizeKey(s string) string {
	lower := strings.ToLower(s)
	stripped := nonWordRe.ReplaceAllString(lower, " ")
	return strings.Join(strings.Fields(stripped), " ")
}

// Normalize resolves input to its canonical record, per spec §4.H:
// direct lookup, then alias lookup, then Dice fuzzy match (>= 0.8) against
// canonical names and aliases, then falling back to the input as its own
// canonical — never an error; absence of a mapping is not a failure.
func (n *Normalizer) Normalize(input string) Canonical {
	key := normalizeKey(input)
	if key == "" {
		return Canonical{Name: input}
	}

	if c, ok := n.canonical[key]; ok {
		return c
	}
	if canonicalKey, ok := n.alias[key]; ok {
		if c, ok := n.canonical[canonicalKey]; ok {
			return c
		}
	}

	if best, ok := n.fuzzyMatch(key); ok {
		return best
	}

	return Canonical{Name: input}
}

func (n *Normalizer) fuzzyMatch(key string) (Canonical, bool) {
	var best Canonical
	bestScore := 0.0
	found := false

	for canonKey, c := range n.canonical {
		if s := diceCoefficient(key, canonKey); s >= fuzzyThreshold && s > bestScore {
			best, bestScore, found = c, s, true
		}
	}
	for aliasKey, canonKey := range n.alias {
		if s := diceCoefficient(key, aliasKey); s >= fuzzyThreshold && s > bestScore {
			if c, ok := n.canonical[canonKey]; ok {
				best, bestScore, found = c, s, true
			}
		}
	}
	return best, found
}
