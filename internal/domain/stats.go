package domain

import (
	"math"
	"slices"
)

// RatioCap is the sentinel SafeRatio returns for a zero denominator.
const RatioCap = 1e9

// SafeRatio divides a by b without ever producing Inf or NaN.
//
//	b == 0, a > 0 → RatioCap
//	b == 0, a == 0 → 0
func SafeRatio(a, b float64) float64 {
	if b == 0 {
		if a == 0 {
			return 0
		}
		return RatioCap
	}
	return math.Min(a/b, RatioCap)
}

// Percentile returns the q-th percentile (0-100) using linear interpolation
// between closest ranks. values is sorted in place. Empty input yields NaN.
func Percentile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	slices.Sort(values)
	if n == 1 {
		return values[0]
	}
	q = math.Max(0, math.Min(100, q))
	pos := q / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return values[lo] + (values[hi]-values[lo])*frac
}

// Mean devuelve la media aritmética, 0 si no hay valores.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
