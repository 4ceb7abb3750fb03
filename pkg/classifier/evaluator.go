package classifier

import (
	"fmt"
	"sort"
)

// Metrics holds classification quality metrics.
type Metrics struct {
	Accuracy           float64                   `json:"accuracy"`
	Precision          map[string]float64        `json:"precision"`
	Recall             map[string]float64        `json:"recall"`
	F1Score            map[string]float64        `json:"f1_score"`
	MacroPrecision     float64                   `json:"macro_precision"`
	MacroRecall        float64                   `json:"macro_recall"`
	MacroF1            float64                   `json:"macro_f1"`
	ConfusionMatrix    map[string]map[string]int `json:"confusion_matrix"`
	Support            map[string]int            `json:"support"`
	TotalSamples       int                       `json:"total_samples"`
	CorrectPredictions int                       `json:"correct_predictions"`
}

type predictor interface {
	Predict(x []float64) (string, float64, error)
}

// EvaluateModel scores a trained model against labelled data.
func EvaluateModel(model predictor, X [][]float64, yTrue []string) (*Metrics, error) {
	if len(X) == 0 || len(yTrue) == 0 {
		return nil, fmt.Errorf("empty test data")
	}
	if len(X) != len(yTrue) {
		return nil, fmt.Errorf("X and yTrue must have same length")
	}

	yPred := make([]string, len(X))
	for i, x := range X {
		pred, _, err := model.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("prediction failed at index %d: %w", i, err)
		}
		yPred[i] = pred
	}

	return CalculateMetrics(yTrue, yPred, uniqueStrings(yTrue))
}

// CalculateMetrics computes accuracy, per-class precision/recall/F1 and the
// confusion matrix from paired label slices.
func CalculateMetrics(yTrue, yPred []string, classes []string) (*Metrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("yTrue and yPred must have same length")
	}

	m := &Metrics{
		Precision:       make(map[string]float64),
		Recall:          make(map[string]float64),
		F1Score:         make(map[string]float64),
		Support:         make(map[string]int),
		ConfusionMatrix: make(map[string]map[string]int),
		TotalSamples:    len(yTrue),
	}

	for _, actual := range classes {
		m.ConfusionMatrix[actual] = make(map[string]int)
		for _, pred := range classes {
			m.ConfusionMatrix[actual][pred] = 0
		}
	}

	for i := range yTrue {
		actual := yTrue[i]
		predicted := yPred[i]
		if m.ConfusionMatrix[actual] == nil {
			m.ConfusionMatrix[actual] = make(map[string]int)
		}
		m.ConfusionMatrix[actual][predicted]++
		m.Support[actual]++
		if actual == predicted {
			m.CorrectPredictions++
		}
	}

	m.Accuracy = float64(m.CorrectPredictions) / float64(m.TotalSamples)

	for _, class := range classes {
		tp := m.ConfusionMatrix[class][class]

		fn := 0
		for _, predClass := range classes {
			if predClass != class {
				fn += m.ConfusionMatrix[class][predClass]
			}
		}
		fp := 0
		for _, actualClass := range classes {
			if actualClass != class {
				fp += m.ConfusionMatrix[actualClass][class]
			}
		}

		if tp+fp > 0 {
			m.Precision[class] = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall[class] = float64(tp) / float64(tp+fn)
		}
		prec := m.Precision[class]
		rec := m.Recall[class]
		if prec+rec > 0 {
			m.F1Score[class] = 2 * (prec * rec) / (prec + rec)
		}
	}

	if len(classes) > 0 {
		for _, class := range classes {
			m.MacroPrecision += m.Precision[class]
			m.MacroRecall += m.Recall[class]
			m.MacroF1 += m.F1Score[class]
		}
		m.MacroPrecision /= float64(len(classes))
		m.MacroRecall /= float64(len(classes))
		m.MacroF1 /= float64(len(classes))
	}

	return m, nil
}

// FormatMetrics returns a human-readable summary.
func (m *Metrics) FormatMetrics() string {
	output := fmt.Sprintf("Overall Accuracy: %.4f\n", m.Accuracy)
	output += fmt.Sprintf("Total Samples: %d\n", m.TotalSamples)
	output += fmt.Sprintf("Correct Predictions: %d\n\n", m.CorrectPredictions)

	var classes []string
	for class := range m.Support {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	output += "Per-Class Metrics:\n"
	for _, class := range classes {
		output += fmt.Sprintf("  Class '%s' (n=%d):\n", class, m.Support[class])
		output += fmt.Sprintf("    Precision: %.4f\n", m.Precision[class])
		output += fmt.Sprintf("    Recall:    %.4f\n", m.Recall[class])
		output += fmt.Sprintf("    F1-Score:  %.4f\n", m.F1Score[class])
	}

	output += "\nMacro Averages:\n"
	output += fmt.Sprintf("  Precision: %.4f\n", m.MacroPrecision)
	output += fmt.Sprintf("  Recall:    %.4f\n", m.MacroRecall)
	output += fmt.Sprintf("  F1-Score:  %.4f\n", m.MacroF1)
	return output
}
