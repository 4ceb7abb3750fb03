package classifier

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/complexome/prophet/pkg/features"
	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/profile"
)

// separableData builds a labelled set where positives cluster high on every
// feature and negatives low, with a fixed margin.
func separableData(n int) ([][]float64, []string) {
	names := models.FeatureNames()
	X := make([][]float64, 0, 2*n)
	y := make([]string, 0, 2*n)
	for i := 0; i < n; i++ {
		jitter := float64(i%5) * 0.01
		pos := make([]float64, len(names))
		neg := make([]float64, len(names))
		for j := range names {
			pos[j] = 0.8 + jitter
			neg[j] = 0.1 + jitter
		}
		X = append(X, pos)
		y = append(y, ClassInteracting)
		X = append(X, neg)
		y = append(y, ClassRandom)
	}
	return X, y
}

func TestDecisionTreeSeparable(t *testing.T) {
	X, y := separableData(20)
	tree := NewDecisionTree(5, 2, 1)
	if err := tree.Fit(X, y, models.FeatureNames()); err != nil {
		t.Fatalf("fit: %v", err)
	}

	pred, conf, err := tree.Predict(X[0])
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred != ClassInteracting {
		t.Errorf("predicted %q, want %q", pred, ClassInteracting)
	}
	if conf < 0.99 {
		t.Errorf("confidence = %v, want ~1", conf)
	}
}

func TestDecisionTreeProbaSumsToOne(t *testing.T) {
	X, y := separableData(10)
	tree := NewDecisionTree(5, 2, 1)
	if err := tree.Fit(X, y, models.FeatureNames()); err != nil {
		t.Fatalf("fit: %v", err)
	}

	for _, x := range X {
		proba, err := tree.PredictProba(x)
		if err != nil {
			t.Fatalf("predict proba: %v", err)
		}
		sum := 0.0
		for _, p := range proba {
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("probabilities sum to %v", sum)
		}
	}
}

func TestRandomForestDeterministicWithSeed(t *testing.T) {
	X, y := separableData(15)

	score := func() []float64 {
		rf := NewRandomForest(20, 5, 2, 1, 7)
		if err := rf.Fit(X, y, models.FeatureNames()); err != nil {
			t.Fatalf("fit: %v", err)
		}
		out := make([]float64, len(X))
		for i, x := range X {
			proba, err := rf.PredictProba(x)
			if err != nil {
				t.Fatalf("predict: %v", err)
			}
			out[i] = proba[ClassInteracting]
		}
		return out
	}

	first := score()
	second := score()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d: %v != %v with same seed", i, first[i], second[i])
		}
	}
}

func TestRandomForestSaveLoad(t *testing.T) {
	X, y := separableData(10)
	rf := NewRandomForest(10, 5, 2, 1, 3)
	if err := rf.Fit(X, y, models.FeatureNames()); err != nil {
		t.Fatalf("fit: %v", err)
	}

	path := filepath.Join(t.TempDir(), "forest.json")
	if err := rf.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := &RandomForest{}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, x := range X {
		want, err := rf.PredictProba(x)
		if err != nil {
			t.Fatalf("predict original: %v", err)
		}
		got, err := loaded.PredictProba(x)
		if err != nil {
			t.Fatalf("predict loaded: %v", err)
		}
		if got[ClassInteracting] != want[ClassInteracting] {
			t.Errorf("loaded model diverges: %v != %v", got, want)
		}
	}
}

func TestTrainerInsufficientClassSamples(t *testing.T) {
	names := models.FeatureNames()
	X := [][]float64{
		{0.9, 0.9, 0.1, 0.9, 0.1, 0.2},
		{0.1, 0.1, 0.9, 0.1, 0.8, 0.2},
		{0.2, 0.1, 0.8, 0.2, 0.7, 0.3},
	}
	y := []string{ClassInteracting, ClassRandom, ClassRandom}

	trainer := NewTrainer(DefaultTrainingConfig())
	_, err := trainer.Train(X, y, names)
	if err == nil {
		t.Fatal("expected error for undersized class")
	}
	var insufficient *models.InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Errorf("error type = %T, want *models.InsufficientDataError", err)
	}
}

func TestTrainerRejectsUnknownLabels(t *testing.T) {
	X, _ := separableData(20)
	y := make([]string, len(X))
	for i := range y {
		if i%2 == 0 {
			y[i] = "pos"
		} else {
			y[i] = "neg"
		}
	}

	trainer := NewTrainer(DefaultTrainingConfig())
	_, err := trainer.Train(X, y, models.FeatureNames())
	if err == nil {
		t.Fatal("expected error for unknown label vocabulary")
	}
	var confErr *models.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Errorf("error type = %T, want *models.ConfigurationError", err)
	}
}

func TestTrainerCalibratesSeparableData(t *testing.T) {
	X, y := separableData(20)

	cfg := DefaultTrainingConfig()
	cfg.NumTrees = 20
	cfg.TargetFDR = 0.1
	trainer := NewTrainer(cfg)

	result, err := trainer.Train(X, y, models.FeatureNames())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if result.EstimatedFDR > cfg.TargetFDR {
		t.Errorf("estimated FDR = %v, want <= %v", result.EstimatedFDR, cfg.TargetFDR)
	}
	if result.ValidateMetrics.Accuracy < 0.9 {
		t.Errorf("validation accuracy = %v on separable data", result.ValidateMetrics.Accuracy)
	}
	t.Logf("threshold=%v fdr=%v", result.Threshold, result.EstimatedFDR)
}

func TestScorerRejectsBadThreshold(t *testing.T) {
	X, y := separableData(10)
	rf := NewRandomForest(10, 5, 2, 1, 3)
	if err := rf.Fit(X, y, models.FeatureNames()); err != nil {
		t.Fatalf("fit: %v", err)
	}

	_, err := NewScorer(rf, 1.5)
	var cfgErr *models.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("error type = %T, want *models.ConfigurationError", err)
	}
}

func TestScorerPreservesOrder(t *testing.T) {
	X, y := separableData(10)
	rf := NewRandomForest(10, 5, 2, 1, 3)
	if err := rf.Fit(X, y, models.FeatureNames()); err != nil {
		t.Fatalf("fit: %v", err)
	}
	scorer, err := NewScorer(rf, 0.5)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}

	names := models.FeatureNames()
	vectors := []*models.PairFeatureVector{
		vectorFor("P1", "P2", names, 0.85),
		vectorFor("P3", "P4", names, 0.12),
	}
	scores, err := scorer.Score(vectors)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("got %d scores", len(scores))
	}
	if scores[0].Pair != vectors[0].Pair || scores[1].Pair != vectors[1].Pair {
		t.Errorf("order not preserved: %v", scores)
	}
	if !scores[0].Interacting() {
		t.Errorf("high-similarity pair scored %v, want above threshold", scores[0].Probability)
	}
	if scores[1].Interacting() {
		t.Errorf("low-similarity pair scored %v, want below threshold", scores[1].Probability)
	}
}

func vectorFor(a, b string, names []string, value float64) *models.PairFeatureVector {
	features := make(map[string]float64, len(names))
	for _, name := range names {
		features[name] = value
	}
	return &models.PairFeatureVector{Pair: models.NewPairKey(a, b), Features: features}
}

// TestForestOrdersCoelutionAboveDisjointPeaks runs two protein pairs from raw
// traces through normalization, feature extraction, and a trained forest.
// Identical co-eluting profiles must come out at least as likely to interact
// as a pair whose elution peaks never overlap.
func TestForestOrdersCoelutionAboveDisjointPeaks(t *testing.T) {
	shared := []float64{0, 5, 10, 5, 0}
	profiles := map[string]*models.ElutionProfile{
		"P1": {ProteinID: "P1", Condition: "Ctrl", Replicate: 1, Intensity: shared},
		"P2": {ProteinID: "P2", Condition: "Ctrl", Replicate: 1, Intensity: shared},
		"P3": {ProteinID: "P3", Condition: "Ctrl", Replicate: 1, Intensity: []float64{10, 0, 0, 0, 0}},
		"P4": {ProteinID: "P4", Condition: "Ctrl", Replicate: 1, Intensity: []float64{0, 0, 0, 0, 10}},
	}
	normalized := profile.NormalizeAll(profiles, models.NormTotal)
	extractor := features.NewExtractor(normalized, features.DefaultConfig())
	coeluting := extractor.Extract(models.NewPairKey("P1", "P2")).Values()
	disjoint := extractor.Extract(models.NewPairKey("P3", "P4")).Values()

	var X [][]float64
	var y []string
	for i := 0; i < 40; i++ {
		jitter := float64(i%7) * 0.01
		X = append(X, []float64{0.9 - jitter, 0.85 - jitter, 0.02 + jitter/2, 0.8, 0.05, 0.2})
		y = append(y, ClassInteracting)
		X = append(X, []float64{0.1 + jitter, 0.05 + jitter, 0.5 - jitter, 0.1, 0.4, 0.3})
		y = append(y, ClassRandom)
	}
	forest := NewRandomForest(25, 6, 2, 1, 7)
	if err := forest.Fit(X, y, models.FeatureNames()); err != nil {
		t.Fatalf("fit: %v", err)
	}

	probaCo, err := forest.PredictProba(coeluting)
	if err != nil {
		t.Fatalf("predict co-eluting pair: %v", err)
	}
	probaDis, err := forest.PredictProba(disjoint)
	if err != nil {
		t.Fatalf("predict disjoint pair: %v", err)
	}
	if probaCo[ClassInteracting] < 0.5 {
		t.Errorf("co-eluting pair proba = %v, want >= 0.5", probaCo[ClassInteracting])
	}
	if probaCo[ClassInteracting] < probaDis[ClassInteracting] {
		t.Errorf("co-eluting pair proba %v below disjoint-peak pair proba %v",
			probaCo[ClassInteracting], probaDis[ClassInteracting])
	}
}

func BenchmarkRandomForestFit(b *testing.B) {
	X, y := separableData(100)
	names := models.FeatureNames()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		forest := NewRandomForest(25, 8, 2, 1, 42)
		if err := forest.Fit(X, y, names); err != nil {
			b.Fatalf("fit: %v", err)
		}
	}
}

func BenchmarkRandomForestPredictProba(b *testing.B) {
	X, y := separableData(100)
	forest := NewRandomForest(25, 8, 2, 1, 42)
	if err := forest.Fit(X, y, models.FeatureNames()); err != nil {
		b.Fatalf("fit: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := forest.PredictProba(X[i%len(X)]); err != nil {
			b.Fatalf("predict: %v", err)
		}
	}
}
