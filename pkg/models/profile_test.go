package models

import (
	"errors"
	"testing"
)

func TestNewPairKeyCanonical(t *testing.T) {
	k1 := NewPairKey("P2", "P1")
	k2 := NewPairKey("P1", "P2")
	if k1 != k2 {
		t.Errorf("expected canonical keys to match: %v vs %v", k1, k2)
	}
	if k1.A != "P1" || k1.B != "P2" {
		t.Errorf("expected lexicographic order, got %v", k1)
	}
}

func TestProfileApex(t *testing.T) {
	tests := []struct {
		name      string
		intensity []float64
		want      int
	}{
		{"single peak", []float64{0, 5, 10, 5, 0}, 2},
		{"all zero", []float64{0, 0, 0}, 0},
		{"peak at end", []float64{1, 2, 9}, 2},
		{"ties keep first", []float64{3, 3, 3}, 0},
	}

	for _, tt := range tests {
		p := &ElutionProfile{ProteinID: "P1", Intensity: tt.intensity}
		if got := p.Apex(); got != tt.want {
			t.Errorf("%s: apex = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestComplexCandidateID(t *testing.T) {
	c1 := NewComplexCandidate("ctrl", []string{"B", "A", "C"}, 0.9)
	c2 := NewComplexCandidate("ctrl", []string{"C", "B", "A"}, 0.9)
	if c1.ID != c2.ID {
		t.Errorf("IDs should not depend on member order: %s vs %s", c1.ID, c2.ID)
	}
	if c1.ID != "A#B#C" {
		t.Errorf("unexpected ID: %s", c1.ID)
	}
	if c1.Confidence != ConfidenceHigh {
		t.Errorf("cohesion 0.9 should be high confidence, got %s", c1.Confidence)
	}
}

func TestLabelForCohesion(t *testing.T) {
	if LabelForCohesion(0.75) != ConfidenceHigh {
		t.Error("0.75 should be high")
	}
	if LabelForCohesion(0.5) != ConfidenceMedium {
		t.Error("0.5 should be medium")
	}
	if LabelForCohesion(0.49) != ConfidenceLow {
		t.Error("0.49 should be low")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	var err error = NewDataError("ctrl", "axis mismatch: %d vs %d", 5, 6)

	var de *DataError
	if !errors.As(err, &de) {
		t.Fatal("expected DataError to match errors.As")
	}
	if de.Condition != "ctrl" {
		t.Errorf("unexpected condition: %s", de.Condition)
	}

	var ie *InsufficientDataError
	if errors.As(err, &ie) {
		t.Error("DataError should not match InsufficientDataError")
	}

	cfg := NewConfigurationError("min_cohesion", "must be in [0,1], got %f", -0.5)
	if cfg.Parameter != "min_cohesion" {
		t.Errorf("unexpected parameter: %s", cfg.Parameter)
	}
}
