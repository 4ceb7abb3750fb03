package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complexome/prophet/pkg/classifier"
	"github.com/complexome/prophet/pkg/config"
	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/pipeline"
	"github.com/complexome/prophet/pkg/profile"
)

func testPipeline(t *testing.T) *pipeline.Service {
	t.Helper()

	names := models.FeatureNames()
	var X [][]float64
	var y []string
	for i := 0; i < 30; i++ {
		jitter := float64(i%5) * 0.01
		X = append(X, []float64{0.9 - jitter, 0.85, 0.02, 0.8, 0.05, 0.2})
		y = append(y, classifier.ClassInteracting)
		X = append(X, []float64{0.1 + jitter, 0.05, 0.5, 0.1, 0.4, 0.3})
		y = append(y, classifier.ClassRandom)
	}
	forest := classifier.NewRandomForest(15, 5, 2, 1, 3)
	require.NoError(t, forest.Fit(X, y, names))
	scorer, err := classifier.NewScorer(forest, 0.5)
	require.NoError(t, err)

	svc, err := pipeline.NewService(config.Default(), nil, scorer, nil)
	require.NoError(t, err)
	return svc
}

func staticLoader(rows map[string][]profile.Row) DatasetLoader {
	return func(string) (map[string][]profile.Row, error) { return rows, nil }
}

func emptyLoader() DatasetLoader {
	return staticLoader(map[string][]profile.Row{})
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, emptyLoader(), nil)
	assert.Error(t, err)

	_, err = NewService(testPipeline(t), nil, nil)
	assert.Error(t, err)

	svc, err := NewService(testPipeline(t), emptyLoader(), nil)
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestCreateValidatesFields(t *testing.T) {
	svc, err := NewService(testPipeline(t), emptyLoader(), nil)
	require.NoError(t, err)

	_, err = svc.Create("", "ds", "@hourly", false)
	assert.Error(t, err, "empty name")

	_, err = svc.Create("nightly", "", "@hourly", false)
	assert.Error(t, err, "empty dataset")

	_, err = svc.Create("nightly", "ds", "not a cron expr", false)
	assert.Error(t, err, "bad schedule")

	job, err := svc.Create("nightly", "ds", "0 2 * * *", true)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.NotNil(t, job.NextRun)
}

func TestJobLifecycle(t *testing.T) {
	svc, err := NewService(testPipeline(t), emptyLoader(), nil)
	require.NoError(t, err)

	job, err := svc.Create("nightly", "ds", "@daily", false)
	require.NoError(t, err)
	assert.Nil(t, job.NextRun, "disabled job has no next run")

	got, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, "nightly", got.Name)

	other, err := svc.Create("weekly", "ds2", "@weekly", false)
	require.NoError(t, err)

	jobs := svc.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, "nightly", jobs[0].Name)
	assert.Equal(t, "weekly", jobs[1].Name)

	newName := "nightly-v2"
	enabled := true
	updated, err := svc.Update(job.ID, JobUpdate{Name: &newName, Enabled: &enabled})
	require.NoError(t, err)
	assert.Equal(t, "nightly-v2", updated.Name)
	assert.NotNil(t, updated.NextRun)

	bad := "nonsense"
	_, err = svc.Update(job.ID, JobUpdate{Schedule: &bad})
	assert.Error(t, err)

	require.NoError(t, svc.Delete(other.ID))
	assert.Error(t, svc.Delete(other.ID), "second delete fails")
	assert.Len(t, svc.List(), 1)

	_, err = svc.Get(other.ID)
	assert.Error(t, err)
}

func TestExecuteJobRecordsRun(t *testing.T) {
	coeluting := []float64{0, 2, 9, 25, 9, 2, 0, 0}
	rows := map[string][]profile.Row{
		"Ctrl": {
			{ProteinID: "A", Condition: "Ctrl", Replicate: 1, Intensity: coeluting},
			{ProteinID: "B", Condition: "Ctrl", Replicate: 1, Intensity: coeluting},
		},
	}

	svc, err := NewService(testPipeline(t), staticLoader(rows), nil)
	require.NoError(t, err)

	job, err := svc.Create("once", "ds", "@daily", false)
	require.NoError(t, err)

	svc.executeJob(job.ID)

	got, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastRun)
	assert.NotEmpty(t, got.LastRunID)
}
