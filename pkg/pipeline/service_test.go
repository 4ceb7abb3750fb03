package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complexome/prophet/pkg/classifier"
	"github.com/complexome/prophet/pkg/config"
	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/profile"
	"github.com/complexome/prophet/pkg/resultstore"
)

// trainScorer fits a small forest on synthetic co-elution features: high
// correlation and low peak shift for interacting pairs, the reverse for
// random pairs.
func trainScorer(t *testing.T) *classifier.Scorer {
	t.Helper()

	names := models.FeatureNames()
	var X [][]float64
	var y []string
	for i := 0; i < 40; i++ {
		jitter := float64(i%7) * 0.01
		X = append(X, []float64{0.9 - jitter, 0.85 - jitter, 0.02 + jitter/2, 0.8, 0.05, 0.2})
		y = append(y, classifier.ClassInteracting)
		X = append(X, []float64{0.1 + jitter, 0.05 + jitter, 0.5 - jitter, 0.1, 0.4, 0.3})
		y = append(y, classifier.ClassRandom)
	}

	forest := classifier.NewRandomForest(25, 6, 2, 1, 7)
	require.NoError(t, forest.Fit(X, y, names))

	scorer, err := classifier.NewScorer(forest, 0.5)
	require.NoError(t, err)
	return scorer
}

// peakRows builds replicate rows for one condition. Proteins A and B share
// the same elution peak; C elutes apart from both.
func peakRows(condition string) []profile.Row {
	coeluting := []float64{0, 1, 8, 20, 8, 1, 0.5, 0, 0, 0}
	apart := []float64{0, 0, 0, 0, 0.5, 1, 4, 9, 22, 9}
	rows := []profile.Row{}
	for rep := 1; rep <= 2; rep++ {
		rows = append(rows,
			profile.Row{ProteinID: "A", Condition: condition, Replicate: rep, Intensity: coeluting},
			profile.Row{ProteinID: "B", Condition: condition, Replicate: rep, Intensity: coeluting},
			profile.Row{ProteinID: "C", Condition: condition, Replicate: rep, Intensity: apart},
		)
	}
	return rows
}

type recordingStore struct {
	runs         []*resultstore.Run
	complexCalls int
	diffCalls    int
}

func (r *recordingStore) SaveRun(run *resultstore.Run) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *recordingStore) SaveComplexCalls(runID string, candidates []*models.ComplexCandidate) error {
	r.complexCalls += len(candidates)
	return nil
}

func (r *recordingStore) SaveDifferentialCalls(runID string, calls []*models.DifferentialCall) error {
	r.diffCalls += len(calls)
	return nil
}

func TestNewServiceRequiresConfigAndScorer(t *testing.T) {
	scorer := trainScorer(t)

	_, err := NewService(nil, nil, scorer, nil)
	assert.Error(t, err)

	_, err = NewService(config.Default(), nil, nil, nil)
	assert.Error(t, err)

	svc, err := NewService(config.Default(), nil, scorer, nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestRunSingleCondition(t *testing.T) {
	cfg := config.Default()
	cfg.Features.Workers = 2

	svc, err := NewService(cfg, nil, trainScorer(t), nil)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), "test", map[string][]profile.Row{
		"Ctrl": peakRows("Ctrl"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.RunID)

	scores := result.Scores["Ctrl"]
	require.Len(t, scores, 3)
	byPair := map[models.PairKey]*models.InteractionScore{}
	for _, s := range scores {
		byPair[s.Pair] = s
	}
	assert.True(t, byPair[models.PairKey{A: "A", B: "B"}].Interacting(),
		"co-eluting pair should score as interacting")
	assert.False(t, byPair[models.PairKey{A: "A", B: "C"}].Interacting())
	assert.False(t, byPair[models.PairKey{A: "B", B: "C"}].Interacting())

	complexes := result.Complexes["Ctrl"]
	require.Len(t, complexes, 1)
	assert.Equal(t, []string{"A", "B"}, complexes[0].Members)
	assert.NotNil(t, complexes[0].Stoichiometry)

	assert.Nil(t, result.Differential, "no comparison with a single condition")
}

func TestRunTwoConditionsProducesDifferential(t *testing.T) {
	cfg := config.Default()

	store := &recordingStore{}
	svc, err := NewService(cfg, nil, trainScorer(t), store)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), "test", map[string][]profile.Row{
		"Ctrl":  peakRows("Ctrl"),
		"Treat": peakRows("Treat"),
	})
	require.NoError(t, err)

	require.NotNil(t, result.Differential)
	require.Len(t, result.Differential, 1)
	call := result.Differential[0]
	assert.Equal(t, 1.0, call.Jaccard)
	assert.Equal(t, models.DirectionNone, call.Direction,
		"identical profiles in both conditions should not be called changed")

	require.Len(t, store.runs, 1)
	assert.Equal(t, "completed", store.runs[0].Status)
	assert.Equal(t, 2, store.complexCalls)
	assert.Equal(t, 1, store.diffCalls)
}

func TestRunComparesEveryConditionAgainstBaseline(t *testing.T) {
	cfg := config.Default()

	svc, err := NewService(cfg, nil, trainScorer(t), nil)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), "test", map[string][]profile.Row{
		"Ctrl":   peakRows("Ctrl"),
		"Treat1": peakRows("Treat1"),
		"Treat2": peakRows("Treat2"),
	})
	require.NoError(t, err)

	require.Len(t, result.Differential, 2, "one call per non-baseline condition")
	compared := map[string]bool{}
	for _, call := range result.Differential {
		assert.Equal(t, "Ctrl", call.ConditionA)
		assert.Equal(t, 1.0, call.Jaccard)
		compared[call.ConditionB] = true
	}
	assert.True(t, compared["Treat1"])
	assert.True(t, compared["Treat2"])
}

func TestRunSkipsDifferentialWithoutBaseline(t *testing.T) {
	cfg := config.Default()
	cfg.Differential.Baseline = "absent"

	svc, err := NewService(cfg, nil, trainScorer(t), nil)
	require.NoError(t, err)

	result, err := svc.Run(context.Background(), "test", map[string][]profile.Row{
		"Ctrl":  peakRows("Ctrl"),
		"Treat": peakRows("Treat"),
	})
	require.NoError(t, err)
	assert.Nil(t, result.Differential)
}

func TestRunHonorsCancellation(t *testing.T) {
	svc, err := NewService(config.Default(), nil, trainScorer(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = svc.Run(ctx, "test", map[string][]profile.Row{"Ctrl": peakRows("Ctrl")})
	assert.ErrorIs(t, err, context.Canceled)
}
