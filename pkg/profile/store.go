// Package profile implements the elution profile store: loading and
// validating per-protein intensity traces, normalizing them for
// cross-protein comparison, and exposing the quantitative signals the
// differential analyzer consumes.
package profile

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/complexome/prophet/pkg/models"
)

// Row is one elution-profile table row handed in by the ingestion boundary.
type Row struct {
	ProteinID string
	Condition string
	Replicate int
	Intensity []float64
}

// Store holds immutable elution profiles grouped by condition. A profile for
// the same protein in multiple replicates is stored per replicate; the
// condition-level view averages replicates fraction-wise.
type Store struct {
	mu         sync.RWMutex
	conditions map[string]*conditionData
}

type conditionData struct {
	fractions int
	// replicate -> protein -> profile
	replicates map[int]map[string]*models.ElutionProfile
}

// NewStore creates an empty profile store.
func NewStore() *Store {
	return &Store{conditions: make(map[string]*conditionData)}
}

// Load validates and stores the rows of one condition. It fails with a
// DataError on the first malformed row (mismatched fraction axis, negative
// intensity, empty axis) and leaves other conditions untouched. Missing
// fractions must arrive as explicit zeros; Load never reindexes the axis.
func (s *Store) Load(condition string, rows []Row) error {
	if len(rows) == 0 {
		return models.NewDataError(condition, "no profile rows")
	}

	fractions := len(rows[0].Intensity)
	if fractions == 0 {
		return models.NewDataError(condition, "empty fraction axis for protein %q", rows[0].ProteinID)
	}

	data := &conditionData{
		fractions:  fractions,
		replicates: make(map[int]map[string]*models.ElutionProfile),
	}
	for _, row := range rows {
		if len(row.Intensity) != fractions {
			return models.NewDataError(condition, "fraction axis mismatch for protein %q: %d vs %d",
				row.ProteinID, len(row.Intensity), fractions)
		}
		for i, v := range row.Intensity {
			if v < 0 {
				return models.NewDataError(condition, "negative intensity for protein %q at fraction %d", row.ProteinID, i)
			}
		}
		rep, ok := data.replicates[row.Replicate]
		if !ok {
			rep = make(map[string]*models.ElutionProfile)
			data.replicates[row.Replicate] = rep
		}
		if _, dup := rep[row.ProteinID]; dup {
			return models.NewDataError(condition, "duplicate profile for protein %q replicate %d", row.ProteinID, row.Replicate)
		}
		rep[row.ProteinID] = &models.ElutionProfile{
			ProteinID: row.ProteinID,
			Condition: condition,
			Replicate: row.Replicate,
			Intensity: append([]float64(nil), row.Intensity...),
		}
	}

	s.mu.Lock()
	s.conditions[condition] = data
	s.mu.Unlock()
	return nil
}

// Conditions lists the loaded condition names, sorted.
func (s *Store) Conditions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.conditions))
	for c := range s.conditions {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Replicates lists the replicate numbers loaded for a condition, sorted.
func (s *Store) Replicates(condition string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.conditions[condition]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(data.replicates))
	for r := range data.replicates {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// Fractions returns the fraction-axis length for a condition, 0 if unknown.
func (s *Store) Fractions(condition string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if data, ok := s.conditions[condition]; ok {
		return data.fractions
	}
	return 0
}

// Profiles returns the condition-level profile per protein: replicate traces
// averaged fraction-wise. The returned profiles are fresh copies; mutating
// them does not touch the store.
func (s *Store) Profiles(condition string) map[string]*models.ElutionProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.conditions[condition]
	if !ok {
		return nil
	}

	sums := make(map[string][]float64)
	counts := make(map[string]int)
	for _, rep := range data.replicates {
		for id, p := range rep {
			if _, ok := sums[id]; !ok {
				sums[id] = make([]float64, data.fractions)
			}
			floats.Add(sums[id], p.Intensity)
			counts[id]++
		}
	}

	out := make(map[string]*models.ElutionProfile, len(sums))
	for id, sum := range sums {
		avg := make([]float64, len(sum))
		copy(avg, sum)
		floats.Scale(1/float64(counts[id]), avg)
		out[id] = &models.ElutionProfile{
			ProteinID: id,
			Condition: condition,
			Intensity: avg,
		}
	}
	return out
}

// ReplicateProfile returns a copy of one stored replicate profile, or nil.
func (s *Store) ReplicateProfile(condition string, replicate int, proteinID string) *models.ElutionProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.conditions[condition]
	if !ok {
		return nil
	}
	rep, ok := data.replicates[replicate]
	if !ok {
		return nil
	}
	p, ok := rep[proteinID]
	if !ok {
		return nil
	}
	return p.Clone()
}

// Normalize rescales a profile under the given scheme, returning a new
// profile. An all-zero profile normalizes to all-zero for every scheme; no
// scheme ever divides by zero.
func Normalize(p *models.ElutionProfile, scheme models.NormScheme) *models.ElutionProfile {
	out := p.Clone()
	out.Normalized = scheme

	var denom float64
	switch scheme {
	case models.NormTotal:
		denom = floats.Sum(out.Intensity)
	case models.NormMax:
		denom = floats.Max(out.Intensity)
	default:
		return out
	}
	if denom <= 0 {
		return out
	}
	floats.Scale(1/denom, out.Intensity)
	return out
}

// NormalizeAll normalizes every profile in a condition map consistently.
func NormalizeAll(profiles map[string]*models.ElutionProfile, scheme models.NormScheme) map[string]*models.ElutionProfile {
	out := make(map[string]*models.ElutionProfile, len(profiles))
	for id, p := range profiles {
		out[id] = Normalize(p, scheme)
	}
	return out
}
