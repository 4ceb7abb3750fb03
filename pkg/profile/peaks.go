package profile

import (
	"sort"

	"github.com/complexome/prophet/pkg/models"
)

// DetectPeaks annotates a profile with its apex candidates: strict local
// maxima above the noise floor, with plateau tolerance (a flat run counts
// once, at its first index). The returned profile is a copy; the input is
// not mutated.
func DetectPeaks(p *models.ElutionProfile, floor float64) *models.ElutionProfile {
	out := p.Clone()
	out.Peaks = nil

	v := out.Intensity
	n := len(v)
	for i := 0; i < n; i++ {
		if v[i] <= floor {
			continue
		}
		// skip non-initial positions of a plateau
		if i > 0 && v[i] == v[i-1] {
			continue
		}
		// must rise from the left (or start the axis)
		if i > 0 && v[i-1] > v[i] {
			continue
		}
		// must fall after the plateau ends (or end the axis)
		j := i
		for j+1 < n && v[j+1] == v[i] {
			j++
		}
		if j+1 < n && v[j+1] > v[i] {
			continue
		}
		out.Peaks = append(out.Peaks, i)
	}
	return out
}

// Signal is a per-protein quantitative summary for one replicate, consumed
// by the differential analyzer.
type Signal struct {
	ProteinID string
	Replicate int
	Total     float64 // summed intensity across fractions
	Apex      float64 // intensity at the apex fraction
	ApexIndex int
}

// Signals returns the quantitative signal for every protein in every
// replicate of a condition, ordered by (replicate, protein).
func (s *Store) Signals(condition string) []Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.conditions[condition]
	if !ok {
		return nil
	}

	reps := make([]int, 0, len(data.replicates))
	for r := range data.replicates {
		reps = append(reps, r)
	}
	sort.Ints(reps)

	var out []Signal
	for _, rep := range reps {
		profiles := data.replicates[rep]
		ids := make([]string, 0, len(profiles))
		for id := range profiles {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			p := profiles[id]
			total := 0.0
			for _, v := range p.Intensity {
				total += v
			}
			apex := p.Apex()
			out = append(out, Signal{
				ProteinID: id,
				Replicate: rep,
				Total:     total,
				Apex:      p.Intensity[apex],
				ApexIndex: apex,
			})
		}
	}
	return out
}

// MemberSignals aggregates the summed intensity of a member set per
// replicate: one value per replicate, in replicate order. This is the
// aggregate signal the differential fold-change and rank test operate on.
func (s *Store) MemberSignals(condition string, members []string) []float64 {
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[m] = struct{}{}
	}

	sums := make(map[int]float64)
	for _, sig := range s.Signals(condition) {
		if _, ok := memberSet[sig.ProteinID]; ok {
			sums[sig.Replicate] += sig.Total
		}
	}

	var out []float64
	for _, rep := range s.Replicates(condition) {
		out = append(out, sums[rep])
	}
	return out
}

// MedianMemberSignals is the median-aggregate variant of MemberSignals:
// per replicate, the median of the member totals instead of their sum.
// Less sensitive to a single dominant member.
func (s *Store) MedianMemberSignals(condition string, members []string) []float64 {
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[m] = struct{}{}
	}

	totals := make(map[int][]float64)
	for _, sig := range s.Signals(condition) {
		if _, ok := memberSet[sig.ProteinID]; ok {
			totals[sig.Replicate] = append(totals[sig.Replicate], sig.Total)
		}
	}

	var out []float64
	for _, rep := range s.Replicates(condition) {
		out = append(out, median(totals[rep]))
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
