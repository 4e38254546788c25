// Package ranker computes per-record relevance scores and extracts
// highlighted fragments for full-text search results (spec §4.G). It never
// mutates the source record.
package ranker

import (
	"strings"
	"unicode"
)

// Config controls scoring and highlighting for one search call.
type Config struct {
	// ScoringFields is the searchable-field set §4.G's coverage score
	// normalizes by (terms × fields). Defaults to HighlightFields when unset,
	// which is correct as long as the two sets coincide; pass it explicitly
	// when a table highlights a narrower set of fields than it indexes.
	ScoringFields   []string
	HighlightFields []string
	PreTag          string // default "<mark>"
	PostTag         string // default "</mark>"
	FragmentCount   int    // default 1
	FragmentSize    int    // default 150
	MinScore        float64
}

func (c Config) withDefaults() Config {
	if c.PreTag == "" {
		c.PreTag = "<mark>"
	}
	if c.PostTag == "" {
		c.PostTag = "</mark>"
	}
	if c.FragmentCount <= 0 {
		c.FragmentCount = 1
	}
	if c.FragmentSize <= 0 {
		c.FragmentSize = 150
	}
	if c.ScoringFields == nil {
		c.ScoringFields = c.HighlightFields
	}
	return c
}

// Fragment is one highlighted excerpt from a field.
type Fragment struct {
	Field string
	Text  string // contains PreTag/PostTag around matches
}

// Scored pairs a record with its relevance score and highlight fragments.
type Scored struct {
	Record     map[string]any
	Score      float64
	Fragments  []Fragment
}

// Score computes the coverage-metric relevance score for one record against
// the search terms: for each term, +1 per matched field substring, +0.5
// bonus if matched at a word boundary, normalized by (terms × fields)
// (spec §4.G).
func Score(record map[string]any, terms []string, fields []string) float64 {
	if len(terms) == 0 || len(fields) == 0 {
		return 0
	}
	var total float64
	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		for _, field := range fields {
			text, ok := fieldText(record, field)
			if !ok {
				continue
			}
			lowerText := strings.ToLower(text)
			if !strings.Contains(lowerText, lowerTerm) {
				continue
			}
			total += 1
			if matchesAtWordBoundary(lowerText, lowerTerm) {
				total += 0.5
			}
		}
	}
	return total / float64(len(terms)*len(fields))
}

// RankAndFilter scores every record, drops those below cfg.MinScore, and
// attaches highlight fragments, all without mutating the inputs (spec
// §4.G: "Do not mutate the source record").
func RankAndFilter(records []map[string]any, terms []string, cfg Config) []Scored {
	cfg = cfg.withDefaults()

	out := make([]Scored, 0, len(records))
	for _, rec := range records {
		score := Score(rec, terms, cfg.ScoringFields)
		if score < cfg.MinScore {
			continue
		}
		out = append(out, Scored{
			Record:    rec,
			Score:     score,
			Fragments: highlightRecord(rec, terms, cfg),
		})
	}
	return out
}

func fieldText(record map[string]any, field string) (string, bool) {
	v, ok := record[field]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func matchesAtWordBoundary(text, term string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], term)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(term)
		leftOK := start == 0 || isBoundaryRune(rune(text[start-1]))
		rightOK := end == len(text) || isBoundaryRune(rune(text[end]))
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
		if idx >= len(text) {
			return false
		}
	}
}

func isBoundaryRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
