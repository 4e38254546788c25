package geonorm

// diceCoefficient computes the Sørensen–Dice similarity of two strings using
// character bigrams. similarity(x,x) == 1 for |x| >= 2, and the function is
// symmetric (spec §8 invariant 9).
func diceCoefficient(a, b string) float64 {
	if a == b {
		if len(a) >= 2 {
			return 1
		}
		// Degenerate single-character/empty identical strings: no bigrams
		// exist to compare, so similarity is defined as 1 only for equal
		// non-trivial strings; treat the trivial equal case as a match too.
		if len(a) > 0 {
			return 1
		}
		return 0
	}

	bigramsA := bigramCounts(a)
	bigramsB := bigramCounts(b)
	if len(bigramsA) == 0 || len(bigramsB) == 0 {
		return 0
	}

	overlap := 0
	for bg, countA := range bigramsA {
		if countB, ok := bigramsB[bg]; ok {
			overlap += min(countA, countB)
		}
	}

	totalA := sumCounts(bigramsA)
	totalB := sumCounts(bigramsB)
	return 2.0 * float64(overlap) / float64(totalA+totalB)
}

func bigramCounts(s string) map[string]int {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	counts := make(map[string]int, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		counts[string(runes[i:i+2])]++
	}
	return counts
}

func sumCounts(m map[string]int) int {
	total := 0
	for _, c := range m {
		total += c
	}
	return total
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
