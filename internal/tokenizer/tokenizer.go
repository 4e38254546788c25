// Package tokenizer turns field text into an ordered sequence of terms for
// the inverted index (spec §4.E). Three variants are supported: simple,
// stemming (Porter, English), and n-gram.
package tokenizer

import "strings"

// Variant selects the tokenization strategy for a table.
type Variant string

const (
	VariantSimple   Variant = "simple"
	VariantStemming Variant = "stemming"
	VariantNGram    Variant = "n-gram"
)

// Token is one emitted unit: the term text, its position (token index within
// the field, not a byte offset), and the source field it came from.
type Token struct {
	Term     string
	Position int
	Field    string
}

// Config holds per-table tokenizer settings.
type Config struct {
	Variant       Variant
	MinWordLength int
	StopWords     map[string]struct{}
	CaseSensitive bool
	NGramSize     int // only used when Variant == VariantNGram, default 3
}

// DefaultStopWords is a small, commonly-used English stop-word set used when
// a table's config doesn't supply its own.
var DefaultStopWords = buildStopWordSet([]string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "were", "will", "with",
})

func buildStopWordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// Tokenizer is a configured tokenizer bound to one table's settings.
type Tokenizer struct {
	cfg Config
}

// New returns a Tokenizer applying sensible defaults for unset fields.
func New(cfg Config) *Tokenizer {
	if cfg.MinWordLength <= 0 {
		cfg.MinWordLength = 2
	}
	if cfg.StopWords == nil {
		cfg.StopWords = DefaultStopWords
	}
	if cfg.NGramSize <= 0 {
		cfg.NGramSize = 3
	}
	if cfg.Variant == "" {
		cfg.Variant = VariantSimple
	}
	return &Tokenizer{cfg: cfg}
}

// Tokenize splits text into delimiter-bounded words, case-folds, drops
// stop-words and short tokens, and (for the stemming variant) reduces each
// surviving word to its stem. Non-alphanumeric characters are delimiters;
// consecutive delimiters collapse to one boundary.
func (tz *Tokenizer) Tokenize(field, text string) []Token {
	words := splitWords(text)
	var out []Token
	pos := 0
	switch tz.cfg.Variant {
	case VariantNGram:
		for _, w := range words {
			folded := tz.fold(w)
			if _, stop := tz.cfg.StopWords[folded]; stop {
				continue
			}
			for _, gram := range ngrams(folded, tz.cfg.NGramSize) {
				if len(gram) < tz.cfg.MinWordLength {
					continue
				}
				out = append(out, Token{Term: gram, Position: pos, Field: field})
				pos++
			}
		}
	default:
		for _, w := range words {
			folded := tz.fold(w)
			if len(folded) < tz.cfg.MinWordLength {
				continue
			}
			if _, stop := tz.cfg.StopWords[folded]; stop {
				continue
			}
			term := folded
			if tz.cfg.Variant == VariantStemming {
				term = stemPorter(folded)
			}
			out = append(out, Token{Term: term, Position: pos, Field: field})
			pos++
		}
	}
	return out
}

// TokenizeRecord tokenizes every configured field of a record, preserving
// the source field on each token (spec §4.E: "a helper tokenizes an entire
// record across a configured field list").
func (tz *Tokenizer) TokenizeRecord(record map[string]any, fields []string) []Token {
	var out []Token
	for _, field := range fields {
		val, ok := record[field]
		if !ok || val == nil {
			continue
		}
		text, ok := val.(string)
		if !ok {
			continue
		}
		out = append(out, tz.Tokenize(field, text)...)
	}
	return out
}

func (tz *Tokenizer) fold(w string) string {
	if tz.cfg.CaseSensitive {
		return w
	}
	return strings.ToLower(w)
}

// splitWords delimits on any non-alphanumeric rune, collapsing runs of
// delimiters so empty words never appear.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		return !isAlnum
	})
}

func ngrams(s string, n int) []string {
	if len(s) < n {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	out := make([]string, 0, len(s)-n+1)
	for i := 0; i+n <= len(s); i++ {
		out = append(out, s[i:i+n])
	}
	return out
}
