package usecase

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Package-level compiled regex pattern for performance
var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// Scaling applied to the secondary ratios in WeightedRatio
const (
	tokenRatioScale     = 0.95
	partialScale        = 0.9
	longPartialScale    = 0.6
	partialLengthRatio  = 1.5 // length ratio above which partial matching kicks in
	longPartialLenRatio = 8.0
)

// Scorer returns a similarity score in [0,100] between a query and a title
type Scorer func(query, title string) int

// WeightedRatio scores two strings from 0 to 100 using edit-distance ratios.
// It takes the best of the plain ratio and token-order-insensitive ratios,
// each scaled down so the plain ratio wins ties. When the lengths differ a
// lot the token ratios compare best substrings, so a short query sharing
// whole tokens with a long title still scores high.
func WeightedRatio(a, b string) int {
	p1 := processForScoring(a)
	p2 := processForScoring(b)
	if p1 == "" || p2 == "" {
		return 0
	}

	base := ratio(p1, p2)
	l1, l2 := float64(len([]rune(p1))), float64(len([]rune(p2)))
	lenRatio := math.Max(l1, l2) / math.Min(l1, l2)

	if lenRatio < partialLengthRatio {
		tsort := tokenSortRatio(p1, p2) * tokenRatioScale
		tset := tokenSetRatio(p1, p2) * tokenRatioScale
		return roundScore(math.Max(base, math.Max(tsort, tset)))
	}

	scale := partialScale
	if lenRatio > longPartialLenRatio {
		scale = longPartialScale
	}
	partial := partialRatio(p1, p2) * scale
	tsort := partialTokenSortRatio(p1, p2) * tokenRatioScale * scale
	tset := partialTokenSetRatio(p1, p2) * tokenRatioScale * scale
	return roundScore(math.Max(math.Max(base, partial), math.Max(tsort, tset)))
}

func roundScore(v float64) int {
	return int(math.Round(v))
}

// processForScoring lowercases, replaces punctuation with spaces and collapses whitespace
func processForScoring(s string) string {
	return collapseSpaces(punctuationRegex.ReplaceAllString(strings.ToLower(s), " "))
}

// ratio is 100 * (1 - indel distance / combined length)
func ratio(a, b string) float64 {
	r1, r2 := []rune(a), []rune(b)
	total := len(r1) + len(r2)
	if total == 0 {
		return 100
	}
	dist := editDistance(r1, r2, 2)
	return 100 * float64(total-dist) / float64(total)
}

// partialRatio is the best ratio of the shorter string against equal-length windows of the longer
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	best := 0.0
	for start := 0; start+len(short) <= len(long); start++ {
		window := string(long[start : start+len(short)])
		if r := ratio(string(short), window); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(strings.Fields(a)), sortedTokens(strings.Fields(b)))
}

func partialTokenSortRatio(a, b string) float64 {
	return partialRatio(sortedTokens(strings.Fields(a)), sortedTokens(strings.Fields(b)))
}

func tokenSetRatio(a, b string) float64 {
	return compareTokenSets(a, b, ratio)
}

func partialTokenSetRatio(a, b string) float64 {
	return compareTokenSets(a, b, partialRatio)
}

// compareTokenSets compares the shared tokens against each side's full token set
func compareTokenSets(a, b string, compare func(string, string) float64) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var common, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}

	base := sortedTokens(common)
	combinedA := strings.TrimSpace(base + " " + sortedTokens(onlyA))
	combinedB := strings.TrimSpace(base + " " + sortedTokens(onlyB))

	best := compare(combinedA, combinedB)
	if base != "" {
		best = math.Max(best, math.Max(compare(base, combinedA), compare(base, combinedB)))
	}
	return best
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

func sortedTokens(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Strings(sorted)
	return strings.Join(sorted, " ")
}

// editDistance calculates the edit distance between two rune slices.
// substitutionCost 1 gives Levenshtein distance; 2 gives insert/delete-only distance.
func editDistance(r1, r2 []rune, substitutionCost int) int {
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Use two rows instead of full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = substitutionCost
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
