package features

import (
	"context"
	"math"
	"testing"

	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/queue"
)

func profileMap(intensities map[string][]float64) map[string]*models.ElutionProfile {
	out := make(map[string]*models.ElutionProfile, len(intensities))
	for id, in := range intensities {
		out[id] = &models.ElutionProfile{ProteinID: id, Intensity: in}
	}
	return out
}

func TestExtractIdenticalProfiles(t *testing.T) {
	profiles := profileMap(map[string][]float64{
		"P1": {0, 5, 10, 5, 0},
		"P2": {0, 5, 10, 5, 0},
	})
	ex := NewExtractor(profiles, Config{Window: 3})

	v := ex.Extract(models.NewPairKey("P1", "P2"))

	if got := v.Features[models.FeaturePearson]; math.Abs(got-1.0) > 1e-9 {
		t.Errorf("pearson = %v, want 1.0", got)
	}
	if got := v.Features[models.FeaturePeakShift]; got != 0 {
		t.Errorf("peak_shift = %v, want 0", got)
	}
	if got := v.Features[models.FeatureOverlap]; math.Abs(got-0.6) > 1e-9 {
		t.Errorf("overlap = %v, want 0.6", got)
	}
	if got := v.Features[models.FeatureMeanAbsDiff]; got != 0 {
		t.Errorf("mean_abs_diff = %v, want 0", got)
	}
}

func TestExtractCommutative(t *testing.T) {
	profiles := profileMap(map[string][]float64{
		"P1": {0, 2, 9, 4, 1},
		"P2": {1, 8, 3, 0, 0},
	})
	ex := NewExtractor(profiles, DefaultConfig())

	// NewPairKey canonicalizes, so both orderings yield the same key.
	fwd := ex.Extract(models.NewPairKey("P1", "P2"))
	rev := ex.Extract(models.NewPairKey("P2", "P1"))

	for _, name := range models.FeatureNames() {
		if fwd.Features[name] != rev.Features[name] {
			t.Errorf("%s: %v != %v", name, fwd.Features[name], rev.Features[name])
		}
	}
}

func TestExtractNeverNaN(t *testing.T) {
	profiles := profileMap(map[string][]float64{
		"flat": {3, 3, 3, 3},
		"zero": {0, 0, 0, 0},
		"peak": {0, 1, 5, 1},
	})
	ex := NewExtractor(profiles, DefaultConfig())

	for _, pair := range []models.PairKey{
		models.NewPairKey("flat", "zero"),
		models.NewPairKey("flat", "peak"),
		models.NewPairKey("zero", "peak"),
	} {
		v := ex.Extract(pair)
		for name, val := range v.Features {
			if math.IsNaN(val) || math.IsInf(val, 0) {
				t.Errorf("pair %v feature %s = %v", pair, name, val)
			}
		}
	}
}

func TestExtractAllZeroDegenerate(t *testing.T) {
	profiles := profileMap(map[string][]float64{
		"zero": {0, 0, 0, 0},
		"peak": {0, 1, 5, 1},
	})
	ex := NewExtractor(profiles, DefaultConfig())

	v := ex.Extract(models.NewPairKey("zero", "peak"))
	if got := v.Features[models.FeaturePearson]; got != 0 {
		t.Errorf("pearson = %v, want 0", got)
	}
	if got := v.Features[models.FeaturePeakShift]; got != 1 {
		t.Errorf("peak_shift = %v, want 1", got)
	}
	if got := v.Features[models.FeatureWidth]; got != 0 {
		t.Errorf("width = %v, want 0", got)
	}
}

func TestCandidatePairs(t *testing.T) {
	profiles := profileMap(map[string][]float64{
		"P1": {0, 5, 5, 0},
		"P2": {0, 4, 0, 0},
		"P3": {0, 0, 0, 9}, // never co-detected with P1 or P2
	})

	pairs := CandidatePairs(profiles, 0)
	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1: %v", len(pairs), pairs)
	}
	if pairs[0] != models.NewPairKey("P1", "P2") {
		t.Errorf("pair = %v, want P1/P2", pairs[0])
	}
}

func TestPoolDeterministicAcrossWorkerCounts(t *testing.T) {
	intensities := map[string][]float64{
		"P1": {0, 2, 9, 4, 1},
		"P2": {1, 8, 3, 1, 0},
		"P3": {0, 1, 7, 6, 2},
		"P4": {2, 5, 5, 2, 1},
		"P5": {0, 0, 3, 8, 4},
	}
	profiles := profileMap(intensities)
	pairs := CandidatePairs(profiles, 0)
	ex := NewExtractor(profiles, DefaultConfig())

	var reference []*models.PairFeatureVector
	for _, workers := range []int{1, 2, 4} {
		q := queue.New()
		for _, b := range Batch("ctrl", pairs, 2) {
			if err := q.Enqueue(b); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
		got, err := NewPool(ex, workers).Run(context.Background(), q)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if reference == nil {
			reference = got
			continue
		}
		if len(got) != len(reference) {
			t.Fatalf("workers=%d: %d vectors, want %d", workers, len(got), len(reference))
		}
		for i := range got {
			if got[i].Pair != reference[i].Pair {
				t.Errorf("workers=%d index %d: pair %v, want %v", workers, i, got[i].Pair, reference[i].Pair)
			}
			for _, name := range models.FeatureNames() {
				if got[i].Features[name] != reference[i].Features[name] {
					t.Errorf("workers=%d pair %v feature %s differs", workers, got[i].Pair, name)
				}
			}
		}
	}
}
