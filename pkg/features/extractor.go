// Package features computes pairwise co-elution features for candidate
// protein pairs. Feature definitions are symmetric, so extraction order
// within a pair never matters, and every degenerate input (all-zero
// profiles, flat traces) maps to a defined value instead of NaN.
package features

import (
	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/stats"
)

// Config holds the extractor parameters.
type Config struct {
	NoiseFloor float64 // intensity below which a fraction counts as noise
	Window     int     // sliding-correlation window length, in fractions
}

// DefaultConfig returns the extractor defaults.
func DefaultConfig() Config {
	return Config{
		NoiseFloor: 0,
		Window:     10,
	}
}

// Extractor computes PairFeatureVectors over a fixed profile map.
type Extractor struct {
	cfg      Config
	profiles map[string]*models.ElutionProfile
}

// NewExtractor creates an extractor over the (already normalized) profiles
// of one condition. The profile map is treated as immutable.
func NewExtractor(profiles map[string]*models.ElutionProfile, cfg Config) *Extractor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	return &Extractor{cfg: cfg, profiles: profiles}
}

// Extract computes the feature vector for one unordered pair. Unknown
// proteins yield the degenerate all-zero-similarity vector, keeping the
// classifier input well-defined.
func (e *Extractor) Extract(pair models.PairKey) *models.PairFeatureVector {
	a, okA := e.profiles[pair.A]
	b, okB := e.profiles[pair.B]
	if !okA || !okB {
		return degenerate(pair)
	}
	return e.extract(pair, a, b)
}

func (e *Extractor) extract(pair models.PairKey, a, b *models.ElutionProfile) *models.PairFeatureVector {
	if a.IsZero() || b.IsZero() {
		v := degenerate(pair)
		v.Features[models.FeatureMeanAbsDiff] = stats.MeanAbsDiff(a.Intensity, b.Intensity)
		return v
	}

	n := a.Fractions()
	shift := float64(abs(a.Apex()-b.Apex())) / float64(n)

	widthA := stats.FWHM(a.Intensity)
	widthB := stats.FWHM(b.Intensity)
	width := (widthA + widthB) / 2 / float64(n)

	return &models.PairFeatureVector{
		Pair: pair,
		Features: map[string]float64{
			models.FeaturePearson:     stats.Pearson(a.Intensity, b.Intensity),
			models.FeatureSlidingCor:  stats.SlidingCorrelation(a.Intensity, b.Intensity, e.cfg.Window),
			models.FeaturePeakShift:   shift,
			models.FeatureOverlap:     stats.Overlap(a.Intensity, b.Intensity, e.cfg.NoiseFloor),
			models.FeatureMeanAbsDiff: stats.MeanAbsDiff(a.Intensity, b.Intensity),
			models.FeatureWidth:       width,
		},
	}
}

// degenerate is the well-defined vector for pairs involving an empty or
// unknown profile: similarity features 0, peak shift at its defined maximum.
func degenerate(pair models.PairKey) *models.PairFeatureVector {
	return &models.PairFeatureVector{
		Pair: pair,
		Features: map[string]float64{
			models.FeaturePearson:     0,
			models.FeatureSlidingCor:  0,
			models.FeaturePeakShift:   1,
			models.FeatureOverlap:     0,
			models.FeatureMeanAbsDiff: 0,
			models.FeatureWidth:       0,
		},
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
