// Package differential compares complex candidates between two conditions.
// Candidates are matched across conditions by membership overlap, matched
// pairs are tested for abundance change, and complexes seen in only one
// condition are reported as exclusive.
package differential

import (
	"math"
	"sort"

	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/stats"
)

// eps floors intensities before the log transform so empty signals stay
// finite.
const eps = 1e-17

// Config holds the analyzer parameters.
type Config struct {
	MinJaccard float64 `json:"min_jaccard" yaml:"min_jaccard"`
	Alpha      float64 `json:"alpha" yaml:"alpha"`
}

// DefaultConfig returns the analyzer defaults.
func DefaultConfig() Config {
	return Config{MinJaccard: 0.5, Alpha: 0.05}
}

// SignalFunc returns the aggregate member signal per replicate for a member
// set in one condition.
type SignalFunc func(condition string, members []string) []float64

// Analyzer performs the two-condition comparison.
type Analyzer struct {
	cfg     Config
	signals SignalFunc
}

// New validates the configuration and returns an analyzer.
func New(cfg Config, signals SignalFunc) (*Analyzer, error) {
	if cfg.MinJaccard < 0 || cfg.MinJaccard > 1 {
		return nil, models.NewConfigurationError("min_jaccard", "must be in [0, 1], got %v", cfg.MinJaccard)
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		return nil, models.NewConfigurationError("alpha", "must be in (0, 1), got %v", cfg.Alpha)
	}
	if signals == nil {
		return nil, models.NewConfigurationError("signals", "signal source is required")
	}
	return &Analyzer{cfg: cfg, signals: signals}, nil
}

// Compare matches candidates between conditions and produces one call per
// matched pair plus one exclusive call per unmatched candidate. Matched
// calls carry BH-adjusted p-values; results are sorted by complex ID with
// exclusives after matches.
func (a *Analyzer) Compare(condA, condB string, candsA, candsB []*models.ComplexCandidate) ([]*models.DifferentialCall, error) {
	matches := matchCandidates(candsA, candsB, a.cfg.MinJaccard)

	matchedA := make(map[string]bool)
	matchedB := make(map[string]bool)

	var calls []*models.DifferentialCall
	var pvalues []float64
	for _, m := range matches {
		matchedA[m.a.ID] = true
		matchedB[m.b.ID] = true

		sigA := a.signals(condA, m.a.Members)
		sigB := a.signals(condB, m.b.Members)

		call := &models.DifferentialCall{
			ComplexID:  m.a.ID,
			ConditionA: condA,
			ConditionB: condB,
			Jaccard:    m.jaccard,
			Log2FC:     log2FoldChange(sigB, sigA),
			PValue:     abundancePValue(sigA, sigB),
			BayesProb:  stats.BayesDifferentialProb(logTransform(sigA), logTransform(sigB)),
			MatchedID:  m.b.ID,
		}
		calls = append(calls, call)
		pvalues = append(pvalues, call.PValue)
	}

	adjusted := stats.BenjaminiHochberg(pvalues)
	for i, call := range calls {
		call.AdjPValue = adjusted[i]
		call.Direction = direction(call.Log2FC, call.AdjPValue, a.cfg.Alpha)
	}

	for _, c := range candsA {
		if !matchedA[c.ID] {
			calls = append(calls, exclusiveCall(c, condA, condB, condA))
		}
	}
	for _, c := range candsB {
		if !matchedB[c.ID] {
			calls = append(calls, exclusiveCall(c, condA, condB, condB))
		}
	}

	sort.SliceStable(calls, func(i, j int) bool {
		if calls[i].Exclusive != calls[j].Exclusive {
			return !calls[i].Exclusive
		}
		return calls[i].ComplexID < calls[j].ComplexID
	})
	return calls, nil
}

func exclusiveCall(c *models.ComplexCandidate, condA, condB, exclusiveTo string) *models.DifferentialCall {
	return &models.DifferentialCall{
		ComplexID:   c.ID,
		ConditionA:  condA,
		ConditionB:  condB,
		PValue:      1,
		AdjPValue:   1,
		Direction:   models.DirectionNone,
		Exclusive:   true,
		ExclusiveTo: exclusiveTo,
	}
}

type match struct {
	a, b    *models.ComplexCandidate
	jaccard float64
}

// matchCandidates greedily pairs candidates by descending Jaccard overlap.
// Ties break lexicographically on (A-side ID, B-side ID). Each candidate
// matches at most once.
func matchCandidates(candsA, candsB []*models.ComplexCandidate, minJaccard float64) []match {
	var all []match
	for _, ca := range candsA {
		setA := ca.MemberSet()
		for _, cb := range candsB {
			j := jaccard(setA, cb.MemberSet())
			if j >= minJaccard {
				all = append(all, match{a: ca, b: cb, jaccard: j})
			}
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].jaccard != all[j].jaccard {
			return all[i].jaccard > all[j].jaccard
		}
		if all[i].a.ID != all[j].a.ID {
			return all[i].a.ID < all[j].a.ID
		}
		return all[i].b.ID < all[j].b.ID
	})

	usedA := make(map[string]bool)
	usedB := make(map[string]bool)
	var result []match
	for _, m := range all {
		if usedA[m.a.ID] || usedB[m.b.ID] {
			continue
		}
		usedA[m.a.ID] = true
		usedB[m.b.ID] = true
		result = append(result, m)
	}
	return result
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for m := range a {
		if _, ok := b[m]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// log2FoldChange is log2(mean(treat)/mean(base)) with both means floored
// at eps.
func log2FoldChange(treat, base []float64) float64 {
	mt := math.Max(stats.Mean(treat), eps)
	mb := math.Max(stats.Mean(base), eps)
	return math.Log2(mt / mb)
}

// abundancePValue runs the rank test over replicate aggregates. Degenerate
// inputs (under two replicates a side, or all values tied) give p = 1
// inside the test itself.
func abundancePValue(sigA, sigB []float64) float64 {
	return stats.MannWhitneyU(sigA, sigB)
}

func logTransform(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Log2(math.Max(v, eps))
	}
	return out
}

func direction(log2fc, adjP, alpha float64) models.Direction {
	if adjP > alpha {
		return models.DirectionNone
	}
	switch {
	case log2fc > 0:
		return models.DirectionUp
	case log2fc < 0:
		return models.DirectionDown
	default:
		return models.DirectionNone
	}
}
