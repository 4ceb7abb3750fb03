package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
)

// RandomForest is a bagged ensemble of decision trees. Trees are trained
// sequentially from one seeded source so a fixed seed always yields the
// same forest.
type RandomForest struct {
	Trees           []*DecisionTree `json:"trees"`
	TreeFeatures    [][]int         `json:"tree_features"`
	NumTrees        int             `json:"num_trees"`
	MaxDepth        int             `json:"max_depth"`
	MinSamplesSplit int             `json:"min_samples_split"`
	MinSamplesLeaf  int             `json:"min_samples_leaf"`
	MaxFeatures     int             `json:"max_features"`
	OOBScore        float64         `json:"oob_score"`
	FeatureNames    []string        `json:"feature_names"`
	Classes         []string        `json:"classes"`
	NumFeatures     int             `json:"num_features"`
	RandomSeed      int64           `json:"random_seed"`
	rng             *rand.Rand
}

// NewRandomForest creates a seeded forest; non-positive hyperparameters fall
// back to defaults.
func NewRandomForest(numTrees, maxDepth, minSamplesSplit, minSamplesLeaf int, seed int64) *RandomForest {
	if numTrees <= 0 {
		numTrees = 100
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minSamplesSplit <= 0 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 1
	}
	return &RandomForest{
		NumTrees:        numTrees,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
		RandomSeed:      seed,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// Fit builds the forest from labelled feature vectors.
func (rf *RandomForest) Fit(X [][]float64, y []string, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	rf.FeatureNames = featureNames
	rf.NumFeatures = len(X[0])
	rf.Classes = uniqueStrings(y)

	rf.MaxFeatures = int(math.Sqrt(float64(rf.NumFeatures)))
	if rf.MaxFeatures < 1 {
		rf.MaxFeatures = 1
	}

	rf.Trees = make([]*DecisionTree, rf.NumTrees)
	rf.TreeFeatures = make([][]int, rf.NumTrees)

	for i := 0; i < rf.NumTrees; i++ {
		bootX, bootY := rf.bootstrapSample(X, y)

		selected := rf.selectRandomFeatures()
		subX, subNames := rf.extractFeatures(bootX, selected)

		tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit, rf.MinSamplesLeaf)
		if err := tree.Fit(subX, bootY, subNames); err != nil {
			return fmt.Errorf("tree %d training failed: %w", i, err)
		}

		rf.Trees[i] = tree
		rf.TreeFeatures[i] = selected
	}

	rf.OOBScore = rf.resubstitutionAccuracy(X, y)
	return nil
}

func (rf *RandomForest) bootstrapSample(X [][]float64, y []string) ([][]float64, []string) {
	n := len(X)
	bootX := make([][]float64, n)
	bootY := make([]string, n)
	for i := 0; i < n; i++ {
		idx := rf.rng.Intn(n)
		bootX[i] = X[idx]
		bootY[i] = y[idx]
	}
	return bootX, bootY
}

func (rf *RandomForest) selectRandomFeatures() []int {
	features := make([]int, rf.NumFeatures)
	for i := range features {
		features[i] = i
	}
	rf.rng.Shuffle(len(features), func(i, j int) {
		features[i], features[j] = features[j], features[i]
	})
	return features[:rf.MaxFeatures]
}

func (rf *RandomForest) extractFeatures(X [][]float64, features []int) ([][]float64, []string) {
	subX := make([][]float64, len(X))
	for i := range X {
		subX[i] = make([]float64, len(features))
		for j, fIdx := range features {
			subX[i][j] = X[i][fIdx]
		}
	}
	subNames := make([]string, len(features))
	for i, fIdx := range features {
		subNames[i] = rf.FeatureNames[fIdx]
	}
	return subX, subNames
}

// Predict returns the majority vote and its vote fraction.
func (rf *RandomForest) Predict(x []float64) (string, float64, error) {
	proba, err := rf.PredictProba(x)
	if err != nil {
		return "", 0, err
	}

	best := ""
	bestP := -1.0
	for _, class := range rf.Classes {
		if proba[class] > bestP {
			best = class
			bestP = proba[class]
		}
	}
	return best, bestP, nil
}

// PredictProba returns per-class vote fractions across the forest.
func (rf *RandomForest) PredictProba(x []float64) (map[string]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, fmt.Errorf("model not trained")
	}
	if len(x) != rf.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", rf.NumFeatures, len(x))
	}

	votes := make(map[string]int)
	validTrees := 0
	for i, tree := range rf.Trees {
		if tree == nil {
			continue
		}
		treeX := make([]float64, len(rf.TreeFeatures[i]))
		for j, fIdx := range rf.TreeFeatures[i] {
			treeX[j] = x[fIdx]
		}
		predicted, _, err := tree.Predict(treeX)
		if err != nil {
			continue
		}
		votes[predicted]++
		validTrees++
	}
	if validTrees == 0 {
		return nil, fmt.Errorf("no valid predictions from trees")
	}

	proba := make(map[string]float64, len(rf.Classes))
	for _, class := range rf.Classes {
		proba[class] = float64(votes[class]) / float64(validTrees)
	}
	return proba, nil
}

func (rf *RandomForest) resubstitutionAccuracy(X [][]float64, y []string) float64 {
	correct := 0
	total := 0
	for i := range X {
		predicted, _, err := rf.Predict(X[i])
		if err != nil {
			continue
		}
		if predicted == y[i] {
			correct++
		}
		total++
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}

// FeatureImportance averages per-tree importance across the forest.
func (rf *RandomForest) FeatureImportance() map[string]float64 {
	importance := make(map[string]float64, len(rf.FeatureNames))
	for _, name := range rf.FeatureNames {
		importance[name] = 0
	}
	for _, tree := range rf.Trees {
		if tree == nil {
			continue
		}
		for name, val := range tree.FeatureImportance() {
			importance[name] += val
		}
	}
	for name := range importance {
		importance[name] /= float64(len(rf.Trees))
	}
	return importance
}

// Save writes the forest to a JSON file.
func (rf *RandomForest) Save(path string) error {
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// Load reads a forest from a JSON file and reseeds its generator.
func (rf *RandomForest) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model file: %w", err)
	}
	if err := json.Unmarshal(data, rf); err != nil {
		return fmt.Errorf("failed to unmarshal model: %w", err)
	}
	rf.rng = rand.New(rand.NewSource(rf.RandomSeed))
	return nil
}
