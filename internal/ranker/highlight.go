package ranker

import "strings"

// highlightRecord produces up to cfg.FragmentCount fragments of at most
// cfg.FragmentSize characters per configured field, wrapping every
// word-boundary term match with cfg.PreTag/PostTag.
func highlightRecord(record map[string]any, terms []string, cfg Config) []Fragment {
	var frags []Fragment
	for _, field := range cfg.HighlightFields {
		text, ok := fieldText(record, field)
		if !ok {
			continue
		}
		matches := findMatches(text, terms)
		if len(matches) == 0 {
			continue
		}
		centers := pickFragmentCenters(matches, cfg.FragmentCount)
		for _, center := range centers {
			frags = append(frags, Fragment{
				Field: field,
				Text:  buildFragment(text, matches, center, cfg),
			})
		}
	}
	return frags
}

type matchSpan struct{ start, end int }

// findMatches locates every word-boundary occurrence of any term in text,
// case-insensitively.
func findMatches(text string, terms []string) []matchSpan {
	lower := strings.ToLower(text)
	var spans []matchSpan
	for _, term := range terms {
		lt := strings.ToLower(term)
		if lt == "" {
			continue
		}
		idx := 0
		for {
			pos := strings.Index(lower[idx:], lt)
			if pos < 0 {
				break
			}
			start := idx + pos
			end := start + len(lt)
			leftOK := start == 0 || isBoundaryRune(rune(lower[start-1]))
			rightOK := end == len(lower) || isBoundaryRune(rune(lower[end]))
			if leftOK && rightOK {
				spans = append(spans, matchSpan{start, end})
			}
			idx = start + 1
			if idx >= len(lower) {
				break
			}
		}
	}
	sortSpans(spans)
	return spans
}

func sortSpans(spans []matchSpan) {
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j-1].start > spans[j].start; j-- {
			spans[j-1], spans[j] = spans[j], spans[j-1]
		}
	}
}

// pickFragmentCenters selects up to n match spans, evenly spread across the
// match list, to center fragments on.
func pickFragmentCenters(matches []matchSpan, n int) []matchSpan {
	if len(matches) <= n {
		return matches
	}
	out := make([]matchSpan, 0, n)
	step := float64(len(matches)) / float64(n)
	for i := 0; i < n; i++ {
		out = append(out, matches[int(float64(i)*step)])
	}
	return out
}

// buildFragment extracts a <=size window of text centered on center, wraps
// every match span that falls inside the window with pre/post tags.
func buildFragment(text string, matches []matchSpan, center matchSpan, cfg Config) string {
	mid := (center.start + center.end) / 2
	half := cfg.FragmentSize / 2
	start := mid - half
	if start < 0 {
		start = 0
	}
	end := start + cfg.FragmentSize
	if end > len(text) {
		end = len(text)
		start = end - cfg.FragmentSize
		if start < 0 {
			start = 0
		}
	}

	var b strings.Builder
	cursor := start
	for _, m := range matches {
		if m.start < start || m.end > end {
			continue
		}
		b.WriteString(text[cursor:m.start])
		b.WriteString(cfg.PreTag)
		b.WriteString(text[m.start:m.end])
		b.WriteString(cfg.PostTag)
		cursor = m.end
	}
	b.WriteString(text[cursor:end])

	prefix := ""
	if start > 0 {
		prefix = "…"
	}
	suffix := ""
	if end < len(text) {
		suffix = "…"
	}
	return prefix + b.String() + suffix
}
