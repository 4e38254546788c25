package tokenizer

import "strings"

// stemPorter implements the classic Porter stemming algorithm for English
// (Porter, 1980). No suitable third-party stemming library appears anywhere
// in the reference corpus, so this is a direct, self-contained
// implementation (see DESIGN.md).
func stemPorter(word string) string {
	w := word
	if len(w) <= 2 {
		return w
	}

	w = step1a(w)
	w = step1b(w)
	w = step1c(w)
	w = step2(w)
	w = step3(w)
	w = step4(w)
	w = step5a(w)
	w = step5b(w)
	return w
}

func isVowel(w string, i int) bool {
	switch w[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	case 'y':
		return i == 0 || !isVowel(w, i-1)
	}
	return false
}

// measure counts the number of VC sequences in w (the Porter "m").
func measure(w string) int {
	m := 0
	i := 0
	n := len(w)
	// skip leading consonants
	for i < n && !isVowel(w, i) {
		i++
	}
	for i < n {
		for i < n && isVowel(w, i) {
			i++
		}
		if i >= n {
			break
		}
		for i < n && !isVowel(w, i) {
			i++
		}
		m++
	}
	return m
}

func containsVowel(w string) bool {
	for i := range w {
		if isVowel(w, i) {
			return true
		}
	}
	return false
}

func endsDoubleConsonant(w string) bool {
	n := len(w)
	if n < 2 {
		return false
	}
	a, b := w[n-1], w[n-2]
	if a != b {
		return false
	}
	return !isVowel(w, n-1)
}

// endsCVC reports the *o condition: ends consonant-vowel-consonant where the
// final consonant is not w, x, or y.
func endsCVC(w string) bool {
	n := len(w)
	if n < 3 {
		return false
	}
	if isVowel(w, n-3) || !isVowel(w, n-2) || isVowel(w, n-1) {
		return false
	}
	switch w[n-1] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

func replaceSuffix(w, suffix, repl string, minMeasure int) (string, bool) {
	if !strings.HasSuffix(w, suffix) {
		return w, false
	}
	stem := strings.TrimSuffix(w, suffix)
	if measure(stem) < minMeasure {
		return w, false
	}
	return stem + repl, true
}

func step1a(w string) string {
	switch {
	case strings.HasSuffix(w, "sses"):
		return strings.TrimSuffix(w, "sses") + "ss"
	case strings.HasSuffix(w, "ies"):
		return strings.TrimSuffix(w, "ies") + "i"
	case strings.HasSuffix(w, "ss"):
		return w
	case strings.HasSuffix(w, "s"):
		return strings.TrimSuffix(w, "s")
	}
	return w
}

func step1b(w string) string {
	if stem, ok := trySuffix(w, "eed"); ok {
		if measure(stem) > 0 {
			return stem + "ee"
		}
		return w
	}
	if stem, ok := trySuffix(w, "ed"); ok && containsVowel(stem) {
		return step1bCleanup(stem)
	}
	if stem, ok := trySuffix(w, "ing"); ok && containsVowel(stem) {
		return step1bCleanup(stem)
	}
	return w
}

func trySuffix(w, suffix string) (string, bool) {
	if !strings.HasSuffix(w, suffix) {
		return "", false
	}
	return strings.TrimSuffix(w, suffix), true
}

func step1bCleanup(stem string) string {
	switch {
	case strings.HasSuffix(stem, "at"), strings.HasSuffix(stem, "bl"), strings.HasSuffix(stem, "iz"):
		return stem + "e"
	case endsDoubleConsonant(stem) && !strings.HasSuffix(stem, "l") && !strings.HasSuffix(stem, "s") && !strings.HasSuffix(stem, "z"):
		return stem[:len(stem)-1]
	case measure(stem) == 1 && endsCVC(stem):
		return stem + "e"
	}
	return stem
}

func step1c(w string) string {
	if strings.HasSuffix(w, "y") && len(w) > 1 {
		stem := strings.TrimSuffix(w, "y")
		if containsVowel(stem) {
			return stem + "i"
		}
	}
	return w
}

var step2Suffixes = []struct{ suf, repl string }{
	{"ational", "ate"}, {"tional", "tion"}, {"enci", "ence"}, {"anci", "ance"},
	{"izer", "ize"}, {"abli", "able"}, {"alli", "al"}, {"entli", "ent"},
	{"eli", "e"}, {"ousli", "ous"}, {"ization", "ize"}, {"ation", "ate"},
	{"ator", "ate"}, {"alism", "al"}, {"iveness", "ive"}, {"fulness", "ful"},
	{"ousness", "ous"}, {"aliti", "al"}, {"iviti", "ive"}, {"biliti", "ble"},
}

func step2(w string) string {
	for _, s := range step2Suffixes {
		if out, ok := replaceSuffix(w, s.suf, s.repl, 1); ok {
			return out
		}
	}
	return w
}

var step3Suffixes = []struct{ suf, repl string }{
	{"icate", "ic"}, {"ative", ""}, {"alize", "al"}, {"iciti", "ic"},
	{"ical", "ic"}, {"ful", ""}, {"ness", ""},
}

func step3(w string) string {
	for _, s := range step3Suffixes {
		if out, ok := replaceSuffix(w, s.suf, s.repl, 1); ok {
			return out
		}
	}
	return w
}

var step4Suffixes = []string{
	"al", "ance", "ence", "er", "ic", "able", "ible", "ant", "ement", "ment",
	"ent", "ou", "ism", "ate", "iti", "ous", "ive", "ize",
}

func step4(w string) string {
	for _, suf := range step4Suffixes {
		if !strings.HasSuffix(w, suf) {
			continue
		}
		stem := strings.TrimSuffix(w, suf)
		if suf == "ion" || suf == "sion" || suf == "tion" {
			if !(strings.HasSuffix(stem, "s") || strings.HasSuffix(stem, "t")) {
				continue
			}
		}
		if measure(stem) > 1 {
			return stem
		}
	}
	if strings.HasSuffix(w, "sion") || strings.HasSuffix(w, "tion") {
		stem := strings.TrimSuffix(w, "ion")
		if measure(stem) > 1 {
			return stem
		}
	}
	return w
}

func step5a(w string) string {
	if strings.HasSuffix(w, "e") {
		stem := strings.TrimSuffix(w, "e")
		m := measure(stem)
		if m > 1 || (m == 1 && !endsCVC(stem)) {
			return stem
		}
	}
	return w
}

func step5b(w string) string {
	if strings.HasSuffix(w, "ll") && measure(w) > 1 {
		return w[:len(w)-1]
	}
	return w
}
