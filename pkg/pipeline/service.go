// Package pipeline wires the full analysis together: profile loading,
// feature extraction, pair scoring, complex assembly and the differential
// comparison, one condition at a time.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/complexome/prophet/pkg/assembler"
	"github.com/complexome/prophet/pkg/classifier"
	"github.com/complexome/prophet/pkg/config"
	"github.com/complexome/prophet/pkg/differential"
	"github.com/complexome/prophet/pkg/features"
	"github.com/complexome/prophet/pkg/logging"
	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/profile"
	"github.com/complexome/prophet/pkg/queue"
	"github.com/complexome/prophet/pkg/resultstore"
)

// ResultStore is the persistence surface the service needs.
type ResultStore interface {
	SaveRun(run *resultstore.Run) error
	SaveComplexCalls(runID string, candidates []*models.ComplexCandidate) error
	SaveDifferentialCalls(runID string, calls []*models.DifferentialCall) error
}

// Service runs the analysis pipeline.
type Service struct {
	cfg    *config.Config
	log    *logging.Logger
	store  ResultStore
	scorer *classifier.Scorer
}

// NewService creates a pipeline service. The store may be nil when results
// should not be persisted.
func NewService(cfg *config.Config, log *logging.Logger, scorer *classifier.Scorer, store ResultStore) (*Service, error) {
	if cfg == nil {
		return nil, models.NewConfigurationError("config", "configuration is required")
	}
	if scorer == nil {
		return nil, models.NewConfigurationError("scorer", "a trained scorer is required")
	}
	if log == nil {
		log = logging.GetLogger()
	}
	return &Service{cfg: cfg, log: log, store: store, scorer: scorer}, nil
}

// RunResult holds the outcome of one pipeline invocation.
type RunResult struct {
	RunID        string
	Scores       map[string][]*models.InteractionScore
	Complexes    map[string][]*models.ComplexCandidate
	Differential []*models.DifferentialCall
}

// Run executes the pipeline over one dataset of profile rows. Conditions
// are processed independently; when the configured baseline is present,
// every other condition is compared against it. The context is checked
// between stages so long runs cancel promptly.
func (s *Service) Run(ctx context.Context, dataset string, rows map[string][]profile.Row) (*RunResult, error) {
	runID := uuid.New().String()
	startedAt := time.Now().UTC()
	log := s.log.WithFields(logging.Component("pipeline"), logging.String("run_id", runID))
	log.Info("starting run", logging.String("dataset", dataset), logging.Int("conditions", len(rows)))

	store := profile.NewStore()
	for condition, condRows := range rows {
		if err := store.Load(condition, condRows); err != nil {
			return nil, fmt.Errorf("loading condition %q: %w", condition, err)
		}
	}

	result := &RunResult{
		RunID:     runID,
		Scores:    make(map[string][]*models.InteractionScore),
		Complexes: make(map[string][]*models.ComplexCandidate),
	}

	asm, err := assembler.New(assembler.Config{
		Method:      assembler.Method(s.cfg.Assembler.Method),
		MinCohesion: s.cfg.Assembler.MinCohesion,
	})
	if err != nil {
		return nil, err
	}

	for _, condition := range store.Conditions() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scores, err := s.scoreCondition(ctx, store, condition)
		if err != nil {
			return nil, fmt.Errorf("scoring condition %q: %w", condition, err)
		}
		result.Scores[condition] = scores

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates, err := asm.Assemble(condition, scores)
		if err != nil {
			return nil, fmt.Errorf("assembling condition %q: %w", condition, err)
		}
		assembler.AttachStoichiometry(candidates, s.apexByProtein(store, condition))
		result.Complexes[condition] = candidates

		log.Info("condition assembled",
			logging.String("condition", condition),
			logging.Int("scored_pairs", len(scores)),
			logging.Int("complexes", len(candidates)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	calls, err := s.compareConditions(store, result.Complexes)
	if err != nil {
		return nil, err
	}
	if calls != nil {
		result.Differential = calls
		log.Info("differential comparison complete", logging.Int("calls", len(calls)))
	}

	if err := s.persist(runID, dataset, startedAt, result); err != nil {
		return nil, err
	}

	log.Info("run complete", logging.Duration("elapsed", time.Since(startedAt)))
	return result, nil
}

// scoreCondition extracts pairwise features on the worker pool and scores
// every candidate pair.
func (s *Service) scoreCondition(ctx context.Context, store *profile.Store, condition string) ([]*models.InteractionScore, error) {
	profiles := profile.NormalizeAll(store.Profiles(condition), models.NormScheme(s.cfg.Profiles.Normalization))

	pairs := features.CandidatePairs(profiles, s.cfg.Profiles.NoiseFloor)
	if len(pairs) == 0 {
		return nil, nil
	}

	q := queue.New()
	for _, batch := range features.Batch(condition, pairs, s.cfg.Features.BatchSize) {
		if err := q.Enqueue(batch); err != nil {
			return nil, err
		}
	}

	extractor := features.NewExtractor(profiles, features.Config{
		NoiseFloor: s.cfg.Profiles.NoiseFloor,
		Window:     s.cfg.Features.Window,
	})
	vectors, err := features.NewPool(extractor, s.cfg.Features.Workers).Run(ctx, q)
	if err != nil {
		return nil, err
	}

	return s.scorer.Score(vectors)
}

// apexByProtein averages apex intensity across replicates, feeding the
// stoichiometry estimate.
func (s *Service) apexByProtein(store *profile.Store, condition string) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, sig := range store.Signals(condition) {
		sums[sig.ProteinID] += sig.Apex
		counts[sig.ProteinID]++
	}
	apex := make(map[string]float64, len(sums))
	for id, sum := range sums {
		apex[id] = sum / float64(counts[id])
	}
	return apex
}

// compareConditions runs the differential analyzer for every non-baseline
// condition against the configured baseline. Each comparison is corrected
// independently.
func (s *Service) compareConditions(store *profile.Store, complexes map[string][]*models.ComplexCandidate) ([]*models.DifferentialCall, error) {
	conditions := store.Conditions()
	if len(conditions) < 2 {
		return nil, nil
	}

	baseline := s.cfg.Differential.Baseline
	found := false
	for _, c := range conditions {
		if c == baseline {
			found = true
		}
	}
	if !found {
		s.log.Warn("baseline condition not present, skipping differential",
			logging.Component("pipeline"),
			logging.String("baseline", baseline))
		return nil, nil
	}

	analyzer, err := differential.New(differential.Config{
		MinJaccard: s.cfg.Differential.MinJaccard,
		Alpha:      s.cfg.Differential.Alpha,
	}, store.MemberSignals)
	if err != nil {
		return nil, err
	}

	var calls []*models.DifferentialCall
	for _, other := range conditions {
		if other == baseline {
			continue
		}
		c, err := analyzer.Compare(baseline, other, complexes[baseline], complexes[other])
		if err != nil {
			return nil, fmt.Errorf("comparing %q against %q: %w", other, baseline, err)
		}
		calls = append(calls, c...)
	}
	return calls, nil
}

func (s *Service) persist(runID, dataset string, startedAt time.Time, result *RunResult) error {
	if s.store == nil {
		return nil
	}

	run := &resultstore.Run{
		ID:         runID,
		Dataset:    dataset,
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
		Status:     "completed",
	}
	if err := s.store.SaveRun(run); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}
	for _, candidates := range result.Complexes {
		if err := s.store.SaveComplexCalls(runID, candidates); err != nil {
			return fmt.Errorf("saving complex calls: %w", err)
		}
	}
	if len(result.Differential) > 0 {
		if err := s.store.SaveDifferentialCalls(runID, result.Differential); err != nil {
			return fmt.Errorf("saving differential calls: %w", err)
		}
	}
	return nil
}
