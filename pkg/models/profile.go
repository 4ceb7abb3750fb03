package models

import (
	"sort"
	"strings"
)

// NormScheme selects how elution profiles are normalized within a condition
type NormScheme string

const (
	NormTotal NormScheme = "total"
	NormMax   NormScheme = "max"
	NormNone  NormScheme = "none"
)

// ElutionProfile holds one protein's intensity trace across ordered fractions
// for a single condition and replicate. Profiles are immutable once stored:
// normalization produces a new profile rather than mutating in place.
type ElutionProfile struct {
	ProteinID  string     `json:"protein_id"`
	Condition  string     `json:"condition"`
	Replicate  int        `json:"replicate"`
	Intensity  []float64  `json:"intensity"`
	Peaks      []int      `json:"peaks,omitempty"` // apex fraction indices, ascending
	Normalized NormScheme `json:"normalized,omitempty"`
}

// Fractions returns the number of fractions on the profile axis.
func (p *ElutionProfile) Fractions() int {
	return len(p.Intensity)
}

// IsZero reports whether every fraction intensity is zero.
func (p *ElutionProfile) IsZero() bool {
	for _, v := range p.Intensity {
		if v != 0 {
			return false
		}
	}
	return true
}

// Apex returns the index of the maximum-intensity fraction. For an all-zero
// profile the apex is defined as 0.
func (p *ElutionProfile) Apex() int {
	apex := 0
	best := 0.0
	for i, v := range p.Intensity {
		if v > best {
			best = v
			apex = i
		}
	}
	return apex
}

// Clone returns a deep copy of the profile.
func (p *ElutionProfile) Clone() *ElutionProfile {
	cp := *p
	cp.Intensity = append([]float64(nil), p.Intensity...)
	cp.Peaks = append([]int(nil), p.Peaks...)
	return &cp
}

// PairKey identifies an unordered protein pair. A and B are kept in
// lexicographic order so (a,b) and (b,a) map to the same key.
type PairKey struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewPairKey builds the canonical key for two protein IDs.
func NewPairKey(a, b string) PairKey {
	if b < a {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}

// String returns the canonical "A|B" form of the key.
func (k PairKey) String() string {
	return k.A + "|" + k.B
}

// Feature names, in the fixed order used by feature vectors end to end.
const (
	FeaturePearson     = "pearson"
	FeatureSlidingCor  = "sliding_cor"
	FeaturePeakShift   = "peak_shift"
	FeatureOverlap     = "overlap"
	FeatureMeanAbsDiff = "mean_abs_diff"
	FeatureWidth       = "width"
)

// FeatureNames returns the canonical feature ordering shared by the
// extractor and the classifier.
func FeatureNames() []string {
	return []string{
		FeaturePearson,
		FeatureSlidingCor,
		FeaturePeakShift,
		FeatureOverlap,
		FeatureMeanAbsDiff,
		FeatureWidth,
	}
}

// PairFeatureVector holds the named numeric features computed for one
// unordered protein pair.
type PairFeatureVector struct {
	Pair     PairKey            `json:"pair"`
	Features map[string]float64 `json:"features"`
}

// Values returns the feature values in canonical order.
func (v *PairFeatureVector) Values() []float64 {
	names := FeatureNames()
	out := make([]float64, len(names))
	for i, n := range names {
		out[i] = v.Features[n]
	}
	return out
}

// InteractionScore is the classifier verdict for one pair.
type InteractionScore struct {
	Pair        PairKey `json:"pair"`
	Probability float64 `json:"probability"`
	Threshold   float64 `json:"threshold"`
}

// Interacting reports whether the probability clears the applied threshold.
func (s InteractionScore) Interacting() bool {
	return s.Probability >= s.Threshold
}

// ConfidenceLabel buckets a cohesion score into a coarse confidence tier.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

// LabelForCohesion maps a cohesion score to its confidence tier.
func LabelForCohesion(cohesion float64) ConfidenceLabel {
	switch {
	case cohesion >= 0.75:
		return ConfidenceHigh
	case cohesion >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ComplexCandidate is a called protein complex in one condition. Membership
// has set semantics; Members is kept sorted. Candidates are immutable once
// scored.
type ComplexCandidate struct {
	ID            string             `json:"id"`
	Condition     string             `json:"condition"`
	Members       []string           `json:"members"`
	Cohesion      float64            `json:"cohesion"`
	Confidence    ConfidenceLabel    `json:"confidence"`
	Stoichiometry map[string]float64 `json:"stoichiometry,omitempty"`
}

// NewComplexCandidate builds a candidate with sorted members and a
// deterministic ID derived from the membership.
func NewComplexCandidate(condition string, members []string, cohesion float64) *ComplexCandidate {
	sorted := append([]string(nil), members...)
	sort.Strings(sorted)
	return &ComplexCandidate{
		ID:         strings.Join(sorted, "#"),
		Condition:  condition,
		Members:    sorted,
		Cohesion:   cohesion,
		Confidence: LabelForCohesion(cohesion),
	}
}

// MemberSet returns membership as a set.
func (c *ComplexCandidate) MemberSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		set[m] = struct{}{}
	}
	return set
}

// Size returns the number of members.
func (c *ComplexCandidate) Size() int {
	return len(c.Members)
}

// Direction of a differential call.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionNone Direction = "none"
)

// DifferentialCall compares one matched (or exclusive) complex between two
// conditions.
type DifferentialCall struct {
	ComplexID   string    `json:"complex_id"`
	ConditionA  string    `json:"condition_a"`
	ConditionB  string    `json:"condition_b"`
	Jaccard     float64   `json:"jaccard"`
	Log2FC      float64   `json:"log2_fc"`
	PValue      float64   `json:"p_value"`
	AdjPValue   float64   `json:"adj_p_value"`
	Direction   Direction `json:"direction"`
	Exclusive   bool      `json:"exclusive"`
	ExclusiveTo string    `json:"exclusive_to,omitempty"` // condition the complex is exclusive to
	BayesProb   float64   `json:"bayes_prob"`
	MatchedID   string    `json:"matched_id,omitempty"` // counterpart complex ID in the other condition
}
