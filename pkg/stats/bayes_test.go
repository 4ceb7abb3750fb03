package stats

import "testing"

func TestBayesDifferentialProbSeparatedSamples(t *testing.T) {
	a := []float64{1.0, 1.1, 0.9, 1.05}
	b := []float64{8.0, 8.2, 7.9, 8.1}

	p := BayesDifferentialProb(a, b)
	if p < 0.9 {
		t.Errorf("p = %v for well-separated samples, want > 0.9", p)
	}
}

func TestBayesDifferentialProbSimilarSamples(t *testing.T) {
	a := []float64{1.0, 1.1, 0.9, 1.05}
	b := []float64{1.02, 0.95, 1.08, 1.0}

	p := BayesDifferentialProb(a, b)
	if p > 0.5 {
		t.Errorf("p = %v for near-identical samples, want <= 0.5", p)
	}
}

func TestBayesDifferentialProbEmptyInput(t *testing.T) {
	if p := BayesDifferentialProb(nil, []float64{1, 2}); p != 0.5 {
		t.Errorf("p = %v for empty input, want 0.5", p)
	}
}
