// Package classifier scores candidate protein pairs as interacting or not.
// Models are trained on labelled co-elution feature vectors, predict a
// positive-class probability per pair, and serialize to JSON so a calibrated
// model can be reused across runs.
package classifier

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Class labels for pair classification.
const (
	ClassInteracting = "interacting"
	ClassRandom      = "random"
)

// Model is the contract every pair classifier satisfies.
type Model interface {
	Fit(X [][]float64, y []string, featureNames []string) error
	PredictProba(x []float64) (map[string]float64, error)
	Save(path string) error
	Load(path string) error
}

// TreeNode is a node in a decision tree.
type TreeNode struct {
	IsLeaf       bool           `json:"is_leaf"`
	Class        string         `json:"class,omitempty"`
	ClassCounts  map[string]int `json:"class_counts,omitempty"`
	FeatureIndex int            `json:"feature_index,omitempty"`
	Feature      string         `json:"feature,omitempty"`
	Threshold    float64        `json:"threshold,omitempty"`
	Left         *TreeNode      `json:"left,omitempty"`
	Right        *TreeNode      `json:"right,omitempty"`
	SamplesCount int            `json:"samples_count"`
	Depth        int            `json:"depth"`
}

// DecisionTree is a CART-style classification tree with Gini splits.
type DecisionTree struct {
	Root            *TreeNode `json:"root"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
	FeatureNames    []string  `json:"feature_names"`
	Classes         []string  `json:"classes"`
	NumFeatures     int       `json:"num_features"`
}

// NewDecisionTree creates a tree with the given hyperparameters; non-positive
// values fall back to defaults.
func NewDecisionTree(maxDepth, minSamplesSplit, minSamplesLeaf int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minSamplesSplit <= 0 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 1
	}
	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
	}
}

// Fit builds the tree from labelled feature vectors.
func (dt *DecisionTree) Fit(X [][]float64, y []string, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	dt.FeatureNames = featureNames
	dt.NumFeatures = len(X[0])
	dt.Classes = uniqueStrings(y)

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	dt.Root = dt.buildTree(X, y, indices, 0)
	return nil
}

func (dt *DecisionTree) buildTree(X [][]float64, y []string, indices []int, depth int) *TreeNode {
	node := &TreeNode{
		SamplesCount: len(indices),
		Depth:        depth,
	}

	currentLabels := make([]string, len(indices))
	for i, idx := range indices {
		currentLabels[i] = y[idx]
	}

	classCounts := countClasses(currentLabels)
	node.ClassCounts = classCounts

	majorityClass, _ := majorityClass(classCounts)
	node.Class = majorityClass

	if depth >= dt.MaxDepth || len(indices) < dt.MinSamplesSplit || len(classCounts) == 1 {
		node.IsLeaf = true
		return node
	}

	bestFeature, bestThreshold, bestGain := dt.findBestSplit(X, y, indices)
	if bestGain <= 0 {
		node.IsLeaf = true
		return node
	}

	leftIndices, rightIndices := splitIndices(X, indices, bestFeature, bestThreshold)
	if len(leftIndices) < dt.MinSamplesLeaf || len(rightIndices) < dt.MinSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.IsLeaf = false
	node.FeatureIndex = bestFeature
	node.Feature = dt.FeatureNames[bestFeature]
	node.Threshold = bestThreshold
	node.Left = dt.buildTree(X, y, leftIndices, depth+1)
	node.Right = dt.buildTree(X, y, rightIndices, depth+1)
	return node
}

func (dt *DecisionTree) findBestSplit(X [][]float64, y []string, indices []int) (int, float64, float64) {
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	currentLabels := make([]string, len(indices))
	for i, idx := range indices {
		currentLabels[i] = y[idx]
	}
	parentGini := giniImpurity(currentLabels)

	for feature := 0; feature < dt.NumFeatures; feature++ {
		values := make([]float64, len(indices))
		for i, idx := range indices {
			values[i] = X[idx][feature]
		}

		for _, threshold := range midpointThresholds(values) {
			leftIndices, rightIndices := splitIndices(X, indices, feature, threshold)
			if len(leftIndices) == 0 || len(rightIndices) == 0 {
				continue
			}

			leftLabels := make([]string, len(leftIndices))
			for i, idx := range leftIndices {
				leftLabels[i] = y[idx]
			}
			rightLabels := make([]string, len(rightIndices))
			for i, idx := range rightIndices {
				rightLabels[i] = y[idx]
			}

			n := float64(len(indices))
			nLeft := float64(len(leftIndices))
			nRight := float64(len(rightIndices))

			weightedGini := (nLeft/n)*giniImpurity(leftLabels) + (nRight/n)*giniImpurity(rightLabels)
			gain := parentGini - weightedGini

			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// Predict returns the majority class of the reached leaf and its purity.
func (dt *DecisionTree) Predict(x []float64) (string, float64, error) {
	if dt.Root == nil {
		return "", 0, fmt.Errorf("model not trained")
	}
	if len(x) != dt.NumFeatures {
		return "", 0, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}

	leaf := dt.traverseToLeaf(dt.Root, x)
	total := 0
	for _, count := range leaf.ClassCounts {
		total += count
	}
	confidence := float64(leaf.ClassCounts[leaf.Class]) / float64(total)
	return leaf.Class, confidence, nil
}

// PredictProba returns the class distribution at the reached leaf.
func (dt *DecisionTree) PredictProba(x []float64) (map[string]float64, error) {
	if dt.Root == nil {
		return nil, fmt.Errorf("model not trained")
	}
	if len(x) != dt.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}

	leaf := dt.traverseToLeaf(dt.Root, x)
	total := 0
	for _, count := range leaf.ClassCounts {
		total += count
	}

	proba := make(map[string]float64, len(dt.Classes))
	for _, class := range dt.Classes {
		proba[class] = float64(leaf.ClassCounts[class]) / float64(total)
	}
	return proba, nil
}

func (dt *DecisionTree) traverseToLeaf(node *TreeNode, x []float64) *TreeNode {
	if node.IsLeaf {
		return node
	}
	if x[node.FeatureIndex] <= node.Threshold {
		return dt.traverseToLeaf(node.Left, x)
	}
	return dt.traverseToLeaf(node.Right, x)
}

// FeatureImportance sums sample-weighted split usage per feature, normalized
// to 1 over the tree.
func (dt *DecisionTree) FeatureImportance() map[string]float64 {
	importance := make(map[string]float64, len(dt.FeatureNames))
	for _, name := range dt.FeatureNames {
		importance[name] = 0
	}
	if dt.Root != nil {
		accumulateImportance(dt.Root, importance)
	}

	total := 0.0
	for _, val := range importance {
		total += val
	}
	if total > 0 {
		for name := range importance {
			importance[name] /= total
		}
	}
	return importance
}

func accumulateImportance(node *TreeNode, importance map[string]float64) {
	if node.IsLeaf {
		return
	}
	importance[node.Feature] += float64(node.SamplesCount)
	accumulateImportance(node.Left, importance)
	accumulateImportance(node.Right, importance)
}

// Save writes the tree to a JSON file.
func (dt *DecisionTree) Save(path string) error {
	data, err := json.MarshalIndent(dt, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// Load reads a tree from a JSON file.
func (dt *DecisionTree) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model file: %w", err)
	}
	if err := json.Unmarshal(data, dt); err != nil {
		return fmt.Errorf("failed to unmarshal model: %w", err)
	}
	return nil
}

// Helper functions

func countClasses(labels []string) map[string]int {
	counts := make(map[string]int)
	for _, label := range labels {
		counts[label]++
	}
	return counts
}

// majorityClass breaks count ties lexicographically so repeated fits of the
// same data give the same leaves.
func majorityClass(classCounts map[string]int) (string, int) {
	classes := make([]string, 0, len(classCounts))
	for class := range classCounts {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	maxClass := ""
	maxCount := 0
	for _, class := range classes {
		if classCounts[class] > maxCount {
			maxClass = class
			maxCount = classCounts[class]
		}
	}
	return maxClass, maxCount
}

func uniqueStrings(strs []string) []string {
	seen := make(map[string]bool)
	unique := []string{}
	for _, s := range strs {
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}
	sort.Strings(unique)
	return unique
}

func giniImpurity(labels []string) float64 {
	if len(labels) == 0 {
		return 0
	}
	counts := countClasses(labels)
	n := float64(len(labels))
	gini := 1.0
	for _, count := range counts {
		p := float64(count) / n
		gini -= p * p
	}
	return gini
}

func splitIndices(X [][]float64, indices []int, feature int, threshold float64) ([]int, []int) {
	var left, right []int
	for _, idx := range indices {
		if X[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

// midpointThresholds returns the midpoints between consecutive unique values.
func midpointThresholds(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	uniqueVals := make([]float64, 0, len(values))
	seen := make(map[float64]bool)
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			uniqueVals = append(uniqueVals, v)
		}
	}
	if len(uniqueVals) == 1 {
		return nil
	}
	sort.Float64s(uniqueVals)

	thresholds := make([]float64, len(uniqueVals)-1)
	for i := 0; i < len(uniqueVals)-1; i++ {
		thresholds[i] = (uniqueVals[i] + uniqueVals[i+1]) / 2.0
	}
	return thresholds
}
