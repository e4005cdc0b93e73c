package normalize

import (
	"sort"
	"strings"
)

// fuzzyThreshold is the similarity ratio above which two strings are
// treated as the same value during merge-time deduplication.
const fuzzyThreshold = 0.85

// ratio computes a Ratcliff/Obershelp similarity ratio between two strings,
// in [0, 1]. Mirrors difflib.SequenceMatcher.ratio(): twice the number of
// matching characters found by recursively taking the longest common
// contiguous block, divided by the combined length of both strings.
func ratio(a, b string) float64 {
	if a == b {
		if a == "" {
			return 1
		}
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	matches := matchingChars(ra, rb)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matches) / float64(total)
}

func matchingChars(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingChars(a[:i], b[:j])
	total += matchingChars(a[i+size:], b[j+size:])
	return total
}

// longestMatch finds the longest contiguous run shared between a and b,
// returning its start index in each and its length.
func longestMatch(a, b []rune) (ai, bi, size int) {
	// Index b's rune positions for O(len(a)*avg) matching.
	bPositions := make(map[rune][]int, len(b))
	for idx, r := range b {
		bPositions[r] = append(bPositions[r], idx)
	}

	bestI, bestJ, bestSize := 0, 0, 0
	// j2len[j] = length of the run ending at b[j-1] matching a run ending at a[i-1].
	j2len := map[int]int{}
	for i, r := range a {
		newJ2Len := map[int]int{}
		for _, j := range bPositions[r] {
			k := j2len[j-1] + 1
			newJ2Len[j] = k
			if k > bestSize {
				bestI, bestJ, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2Len
	}
	return bestI, bestJ, bestSize
}

// fuzzyEqual reports whether two strings are equal under case-insensitive
// exact match or a similarity ratio at or above threshold.
func fuzzyEqual(s1, s2 string, threshold float64) bool {
	a := strings.ToLower(strings.TrimSpace(s1))
	b := strings.ToLower(strings.TrimSpace(s2))
	if a == b {
		return true
	}
	return ratio(a, b) >= threshold
}

// dedupeFuzzy removes near-duplicate strings (case-insensitive exact match
// or ratio >= fuzzyThreshold), keeping the first occurrence, then returns
// the survivors sorted.
func dedupeFuzzy(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seenExact := map[string]bool{}
	var seenItems []string
	var out []string

	for _, item := range items {
		lower := strings.ToLower(strings.TrimSpace(item))
		if seenExact[lower] {
			continue
		}
		dup := false
		for _, seen := range seenItems {
			if fuzzyEqual(item, seen, fuzzyThreshold) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		out = append(out, item)
		seenExact[lower] = true
		seenItems = append(seenItems, item)
	}

	sort.Strings(out)
	return out
}
