package classifier

import (
	"fmt"

	"github.com/complexome/prophet/pkg/models"
)

// Scorer applies a trained model and calibrated threshold to feature
// vectors, producing per-pair interaction scores.
type Scorer struct {
	model     Model
	threshold float64
}

// NewScorer wraps a trained model with its decision threshold.
func NewScorer(model Model, threshold float64) (*Scorer, error) {
	if model == nil {
		return nil, fmt.Errorf("model is nil")
	}
	if threshold < 0 || threshold > 1 {
		return nil, models.NewConfigurationError("threshold", "must be in [0, 1], got %v", threshold)
	}
	return &Scorer{model: model, threshold: threshold}, nil
}

// Score predicts the interaction probability for each vector. Input order
// is preserved.
func (s *Scorer) Score(vectors []*models.PairFeatureVector) ([]*models.InteractionScore, error) {
	scores := make([]*models.InteractionScore, 0, len(vectors))
	for _, v := range vectors {
		proba, err := s.model.PredictProba(v.Values())
		if err != nil {
			return nil, fmt.Errorf("scoring pair %s/%s: %w", v.Pair.A, v.Pair.B, err)
		}
		scores = append(scores, &models.InteractionScore{
			Pair:        v.Pair,
			Probability: proba[ClassInteracting],
			Threshold:   s.threshold,
		})
	}
	return scores, nil
}
