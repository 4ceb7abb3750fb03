package classifier

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/complexome/prophet/pkg/models"
)

// TrainingConfig holds the knobs for a training run. A fixed RandomSeed
// makes the whole run reproducible.
type TrainingConfig struct {
	TrainTestSplit  float64 `json:"train_test_split" yaml:"train_test_split"`
	NumTrees        int     `json:"num_trees" yaml:"num_trees"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf  int     `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	Folds           int     `json:"folds" yaml:"folds"`
	TargetFDR       float64 `json:"target_fdr" yaml:"target_fdr"`
	RandomSeed      int64   `json:"random_seed" yaml:"random_seed"`
}

// DefaultTrainingConfig returns the training defaults.
func DefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		TrainTestSplit:  0.8,
		NumTrees:        100,
		MaxDepth:        10,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Folds:           5,
		TargetFDR:       0.5,
		RandomSeed:      42,
	}
}

// TrainingResult holds the trained model plus evaluation results.
type TrainingResult struct {
	Model             *RandomForest      `json:"-"`
	Threshold         float64            `json:"threshold"`
	EstimatedFDR      float64            `json:"estimated_fdr"`
	TrainMetrics      *Metrics           `json:"train_metrics"`
	ValidateMetrics   *Metrics           `json:"validate_metrics"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	TrainingRows      int                `json:"training_rows"`
	ValidationRows    int                `json:"validation_rows"`
}

// Trainer orchestrates model fitting and threshold calibration.
type Trainer struct {
	Config *TrainingConfig
	rng    *rand.Rand
}

// NewTrainer creates a trainer with the given configuration.
func NewTrainer(config *TrainingConfig) *Trainer {
	if config == nil {
		config = DefaultTrainingConfig()
	}
	return &Trainer{
		Config: config,
		rng:    rand.New(rand.NewSource(config.RandomSeed)),
	}
}

// Train fits a forest on labelled feature vectors and calibrates the
// decision threshold to the configured target FDR via cross-validation.
// Each class needs at least Folds samples so every fold sees both classes.
func (t *Trainer) Train(X [][]float64, y []string, featureNames []string) (*TrainingResult, error) {
	if len(X) == 0 || len(y) == 0 {
		return nil, models.NewInsufficientDataError("empty training data")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return nil, fmt.Errorf("feature names must match number of features")
	}
	for _, label := range y {
		if label != ClassInteracting && label != ClassRandom {
			return nil, models.NewConfigurationError("labels",
				"unknown class label %q; labels must be %q or %q",
				label, ClassInteracting, ClassRandom)
		}
	}

	counts := countClasses(y)
	for _, class := range uniqueStrings(y) {
		if counts[class] < t.Config.Folds {
			return nil, models.NewInsufficientDataError(
				"class %q has %d samples, need at least %d for %d-fold calibration",
				class, counts[class], t.Config.Folds, t.Config.Folds)
		}
	}

	trainX, trainY, valX, valY := t.stratifiedSplit(X, y)

	forest := NewRandomForest(
		t.Config.NumTrees,
		t.Config.MaxDepth,
		t.Config.MinSamplesSplit,
		t.Config.MinSamplesLeaf,
		t.Config.RandomSeed,
	)
	if err := forest.Fit(trainX, trainY, featureNames); err != nil {
		return nil, fmt.Errorf("failed to train forest: %w", err)
	}

	threshold, estFDR, err := t.CalibrateThreshold(X, y, featureNames)
	if err != nil {
		return nil, fmt.Errorf("failed to calibrate threshold: %w", err)
	}

	trainMetrics, err := EvaluateModel(forest, trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate on training set: %w", err)
	}
	valMetrics, err := EvaluateModel(forest, valX, valY)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate on validation set: %w", err)
	}

	return &TrainingResult{
		Model:             forest,
		Threshold:         threshold,
		EstimatedFDR:      estFDR,
		TrainMetrics:      trainMetrics,
		ValidateMetrics:   valMetrics,
		FeatureImportance: forest.FeatureImportance(),
		TrainingRows:      len(trainX),
		ValidationRows:    len(valX),
	}, nil
}

// CalibrateThreshold picks the smallest probability cutoff whose
// cross-validated false discovery rate stays at or below the target. If no
// cutoff reaches the target, the strictest one wins.
func (t *Trainer) CalibrateThreshold(X [][]float64, y []string, featureNames []string) (float64, float64, error) {
	k := t.Config.Folds
	if k <= 1 {
		return 0, 0, fmt.Errorf("folds must be greater than 1")
	}
	if len(X) < k {
		return 0, 0, models.NewInsufficientDataError("not enough samples for %d-fold calibration", k)
	}

	// Shuffled index order, stratified across folds by round-robin per class.
	folds := t.assignFolds(y, k)

	// Out-of-fold positive-class probability per sample.
	oofProba := make([]float64, len(X))
	for fold := 0; fold < k; fold++ {
		var trainIdx, valIdx []int
		for i, f := range folds {
			if f == fold {
				valIdx = append(valIdx, i)
			} else {
				trainIdx = append(trainIdx, i)
			}
		}

		trainX := make([][]float64, len(trainIdx))
		trainY := make([]string, len(trainIdx))
		for i, idx := range trainIdx {
			trainX[i] = X[idx]
			trainY[i] = y[idx]
		}

		forest := NewRandomForest(
			t.Config.NumTrees,
			t.Config.MaxDepth,
			t.Config.MinSamplesSplit,
			t.Config.MinSamplesLeaf,
			t.Config.RandomSeed+int64(fold),
		)
		if err := forest.Fit(trainX, trainY, featureNames); err != nil {
			return 0, 0, fmt.Errorf("fold %d training failed: %w", fold, err)
		}

		for _, idx := range valIdx {
			proba, err := forest.PredictProba(X[idx])
			if err != nil {
				return 0, 0, fmt.Errorf("fold %d prediction failed: %w", fold, err)
			}
			oofProba[idx] = proba[ClassInteracting]
		}
	}

	// Sweep candidate thresholds from permissive to strict; stop at the
	// first one that meets the target, otherwise keep the strictest seen.
	bestThreshold := 1.0
	bestFDR := 1.0
	for _, threshold := range thresholdGrid(oofProba) {
		fdr := falseDiscoveryRate(oofProba, y, threshold)
		if fdr <= t.Config.TargetFDR {
			return threshold, fdr, nil
		}
		if fdr < bestFDR {
			bestThreshold = threshold
			bestFDR = fdr
		}
	}
	return bestThreshold, bestFDR, nil
}

// assignFolds spreads each class round-robin across folds after a seeded
// shuffle, keeping class balance roughly even per fold.
func (t *Trainer) assignFolds(y []string, k int) []int {
	byClass := make(map[string][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	folds := make([]int, len(y))
	for _, class := range uniqueStrings(y) {
		idx := byClass[class]
		t.rng.Shuffle(len(idx), func(i, j int) {
			idx[i], idx[j] = idx[j], idx[i]
		})
		for i, sample := range idx {
			folds[sample] = i % k
		}
	}
	return folds
}

func (t *Trainer) stratifiedSplit(X [][]float64, y []string) ([][]float64, []string, [][]float64, []string) {
	byClass := make(map[string][]int)
	for i, label := range y {
		byClass[label] = append(byClass[label], i)
	}

	var trainIdx, valIdx []int
	for _, class := range uniqueStrings(y) {
		samples := byClass[class]
		t.rng.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})

		split := int(float64(len(samples)) * t.Config.TrainTestSplit)
		if split == 0 && len(samples) > 0 {
			split = 1
		}
		if split >= len(samples) {
			split = len(samples) - 1
		}
		trainIdx = append(trainIdx, samples[:split]...)
		valIdx = append(valIdx, samples[split:]...)
	}

	t.rng.Shuffle(len(trainIdx), func(i, j int) {
		trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i]
	})
	t.rng.Shuffle(len(valIdx), func(i, j int) {
		valIdx[i], valIdx[j] = valIdx[j], valIdx[i]
	})

	trainX := make([][]float64, len(trainIdx))
	trainY := make([]string, len(trainIdx))
	for i, idx := range trainIdx {
		trainX[i] = X[idx]
		trainY[i] = y[idx]
	}
	valX := make([][]float64, len(valIdx))
	valY := make([]string, len(valIdx))
	for i, idx := range valIdx {
		valX[i] = X[idx]
		valY[i] = y[idx]
	}
	return trainX, trainY, valX, valY
}

// thresholdGrid returns the distinct observed probabilities sorted ascending,
// so each cut changes the positive set.
func thresholdGrid(proba []float64) []float64 {
	seen := make(map[float64]bool)
	var grid []float64
	for _, p := range proba {
		if !seen[p] {
			seen[p] = true
			grid = append(grid, p)
		}
	}
	sort.Float64s(grid)
	return grid
}

// falseDiscoveryRate is FP / (FP + TP) over samples at or above the cutoff.
func falseDiscoveryRate(proba []float64, y []string, threshold float64) float64 {
	tp := 0
	fp := 0
	for i, p := range proba {
		if p < threshold {
			continue
		}
		if y[i] == ClassInteracting {
			tp++
		} else {
			fp++
		}
	}
	if tp+fp == 0 {
		return 0
	}
	return float64(fp) / float64(tp+fp)
}
