package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// MannWhitneyU performs a two-sided Mann-Whitney U rank test comparing two
// samples, using the normal approximation with tie correction. Degenerate
// inputs (either sample smaller than 2, or all values identical across both
// samples) yield p = 1 by definition rather than an arithmetic fault.
func MannWhitneyU(a, b []float64) float64 {
	n1, n2 := len(a), len(b)
	if n1 < 2 || n2 < 2 {
		return 1
	}

	type obs struct {
		value float64
		group int
	}
	all := make([]obs, 0, n1+n2)
	for _, v := range a {
		all = append(all, obs{v, 0})
	}
	for _, v := range b {
		all = append(all, obs{v, 1})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].value < all[j].value })

	// Midranks with tie bookkeeping.
	n := len(all)
	ranks := make([]float64, n)
	tieTerm := 0.0
	for i := 0; i < n; {
		j := i
		for j < n && all[j].value == all[i].value {
			j++
		}
		mid := float64(i+j+1) / 2 // 1-based midrank
		for k := i; k < j; k++ {
			ranks[k] = mid
		}
		t := float64(j - i)
		if t > 1 {
			tieTerm += t*t*t - t
		}
		i = j
	}

	r1 := 0.0
	for i, o := range all {
		if o.group == 0 {
			r1 += ranks[i]
		}
	}

	fn1, fn2 := float64(n1), float64(n2)
	u1 := r1 - fn1*(fn1+1)/2
	u := math.Min(u1, fn1*fn2-u1)

	mu := fn1 * fn2 / 2
	fn := fn1 + fn2
	sigma2 := fn1 * fn2 / 12 * ((fn + 1) - tieTerm/(fn*(fn-1)))
	if sigma2 <= 0 {
		// every observation tied: no evidence of a difference
		return 1
	}

	// Continuity correction toward the mean.
	z := (u - mu + 0.5) / math.Sqrt(sigma2)
	norm := distuv.Normal{Mu: 0, Sigma: 1}
	p := 2 * norm.CDF(z)
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// BenjaminiHochberg adjusts raw p-values for multiple testing. The returned
// slice is index-aligned with the input; adjusted values are monotone
// non-decreasing in raw-p rank and capped at 1.
func BenjaminiHochberg(pvalues []float64) []float64 {
	m := len(pvalues)
	if m == 0 {
		return nil
	}

	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return pvalues[order[i]] < pvalues[order[j]] })

	adjusted := make([]float64, m)
	running := 1.0
	for rank := m - 1; rank >= 0; rank-- {
		idx := order[rank]
		v := pvalues[idx] * float64(m) / float64(rank+1)
		if v < running {
			running = v
		}
		adjusted[idx] = running
	}
	return adjusted
}
