package catalog

import (
	"math"
	"strings"

	"nutrition-core/internal/macros"
)

// Matching thresholds.
const (
	// CloseMatchThreshold is the minimum combined score for accepting a
	// fuzzy catalog match instead of creating a new record.
	CloseMatchThreshold = 0.85

	// MacroTolerancePercent is the per-field difference under which two
	// macro values are treated as equivalent.
	MacroTolerancePercent = 15.0

	nameWeight  = 0.6
	macroWeight = 0.4
)

// NormalizeName lowercases a food name, trims it, and collapses interior
// whitespace, producing the key used for deduplication and exact matching.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
}

// NameSimilarity scores two names in [0, 1] using Levenshtein distance over
// their normalized forms. Identical normalized names score exactly 1.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == nb {
		return 1.0
	}
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(na, nb))/float64(maxLen)
}

// MacroSimilarity scores two macro profiles in [0, 1] as the mean of four
// per-field scores (calories, protein, carbs, fats). Fields that are both
// zero, or that differ by at most MacroTolerancePercent, score 1; larger
// differences score 1 - min(1, percentDiff/100).
func MacroSimilarity(a, b macros.Macros) float64 {
	fields := [][2]float64{
		{a.Calories, b.Calories},
		{a.Protein, b.Protein},
		{a.Carbs, b.Carbs},
		{a.Fats, b.Fats},
	}

	var total float64
	for _, pair := range fields {
		total += fieldSimilarity(pair[0], pair[1])
	}
	return total / float64(len(fields))
}

func fieldSimilarity(v1, v2 float64) float64 {
	if v1 == 0 && v2 == 0 {
		return 1.0
	}
	max := math.Max(v1, v2)
	if max == 0 {
		return 1.0
	}
	pctDiff := math.Abs(v1-v2) / max * 100
	if pctDiff < 0 {
		pctDiff = 0
	}
	if pctDiff <= MacroTolerancePercent {
		return 1.0
	}
	return 1.0 - math.Min(1, pctDiff/100)
}

// CombinedScore weighs name similarity against macro similarity for fuzzy
// match acceptance.
func CombinedScore(nameSim, macroSim float64) float64 {
	return nameWeight*nameSim + macroWeight*macroSim
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len(b); j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = minInt(
				matrix[i-1][j]+1,
				matrix[i][j-1]+1,
				matrix[i-1][j-1]+cost,
			)
		}
	}
	return matrix[len(a)][len(b)]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
