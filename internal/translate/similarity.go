package translate

import "strings"

// similarity is the Jaccard word-overlap of two strings, in [0, 1]. Used to
// skip re-translating near-identical consecutive transcripts.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	wordsA := fieldSet(a)
	wordsB := fieldSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func fieldSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(strings.TrimSpace(s))) {
		set[w] = struct{}{}
	}
	return set
}
