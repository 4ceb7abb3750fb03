// Package stats collects the shared numeric routines used across the
// pipeline: correlation measures, rank tests, multiple-testing correction
// and peak-shape helpers. Every routine defines an explicit value for its
// degenerate cases so no NaN ever leaves this package.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Pearson returns the Pearson correlation of x and y. Zero-variance input on
// either side yields 0 rather than NaN.
func Pearson(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	if isConstant(x) || isConstant(y) {
		return 0
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// SlidingCorrelation computes the mean Pearson correlation over sliding
// windows of length w. Windows in which either vector is constant contribute
// 0, matching the global degenerate-case convention. A window longer than
// the vectors falls back to the global correlation.
func SlidingCorrelation(x, y []float64, w int) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	if w < 2 || w >= len(x) {
		return Pearson(x, y)
	}
	n := len(x) - w + 1
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += Pearson(x[i:i+w], y[i:i+w])
	}
	return sum / float64(n)
}

// Overlap returns the fraction of positions where both vectors exceed the
// noise floor.
func Overlap(x, y []float64, floor float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	count := 0
	for i := range x {
		if x[i] > floor && y[i] > floor {
			count++
		}
	}
	return float64(count) / float64(len(x))
}

// MeanAbsDiff returns the mean absolute elementwise difference.
func MeanAbsDiff(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}
	sum := 0.0
	for i := range x {
		sum += math.Abs(x[i] - y[i])
	}
	return sum / float64(len(x))
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// Variance returns the unbiased sample variance, 0 for fewer than two
// values.
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.Variance(values, nil)
}

// FWHM estimates the full width at half maximum of a peak-shaped vector, in
// fraction units. A flat or empty vector has width 0.
func FWHM(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	apex := 0
	peak := values[0]
	for i, v := range values {
		if v > peak {
			peak = v
			apex = i
		}
	}
	if peak <= 0 {
		return 0
	}
	half := peak / 2

	// Walk out from the apex to the half-maximum crossings, interpolating
	// between fractions.
	left := float64(0)
	for i := apex; i >= 0; i-- {
		if values[i] < half {
			left = float64(i) + (half-values[i])/(values[i+1]-values[i])
			break
		}
	}
	right := float64(len(values) - 1)
	for i := apex; i < len(values); i++ {
		if values[i] < half {
			right = float64(i) - (half-values[i])/(values[i-1]-values[i])
			break
		}
	}
	if right < left {
		return 0
	}
	return right - left
}

func isConstant(values []float64) bool {
	if len(values) == 0 {
		return true
	}
	first := values[0]
	for _, v := range values {
		if v != first {
			return false
		}
	}
	return true
}
