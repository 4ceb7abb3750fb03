// Package scheduler runs recurring analyses on a cron schedule, for
// deployments where fraction tables land on a fixed cadence.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/complexome/prophet/pkg/logging"
	"github.com/complexome/prophet/pkg/models"
	"github.com/complexome/prophet/pkg/pipeline"
	"github.com/complexome/prophet/pkg/profile"
)

// DatasetLoader fetches the current profile rows for a named dataset each
// time its job fires.
type DatasetLoader func(dataset string) (map[string][]profile.Row, error)

// Job is one recurring analysis.
type Job struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Dataset   string     `json:"dataset"`
	Schedule  string     `json:"schedule"`
	Enabled   bool       `json:"enabled"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRunID string     `json:"last_run_id,omitempty"`
}

// JobUpdate carries optional field changes for Update.
type JobUpdate struct {
	Name     *string
	Dataset  *string
	Schedule *string
	Enabled  *bool
}

// Service provides job scheduling operations.
type Service struct {
	mu       sync.Mutex
	pipeline *pipeline.Service
	loader   DatasetLoader
	log      *logging.Logger
	cron     *cron.Cron
	jobs     map[string]*Job
	entries  map[string]cron.EntryID
}

// NewService creates a scheduler around a pipeline service and a loader
// that materializes dataset rows at execution time.
func NewService(pipelineService *pipeline.Service, loader DatasetLoader, log *logging.Logger) (*Service, error) {
	if pipelineService == nil {
		return nil, models.NewConfigurationError("pipeline", "a pipeline service is required")
	}
	if loader == nil {
		return nil, models.NewConfigurationError("loader", "a dataset loader is required")
	}
	if log == nil {
		log = logging.GetLogger()
	}
	return &Service{
		pipeline: pipelineService,
		loader:   loader,
		log:      log,
		cron:     cron.New(),
		jobs:     make(map[string]*Job),
		entries:  make(map[string]cron.EntryID),
	}, nil
}

// Start schedules all enabled jobs and starts the cron loop.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		if job.Enabled {
			if err := s.scheduleJob(job); err != nil {
				s.log.Error("scheduling job", err, logging.Component("scheduler"), logging.String("job", job.Name))
			}
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started", logging.Component("scheduler"), logging.Int("jobs", len(s.entries)))
}

// Stop halts the cron loop. Already-running jobs finish.
func (s *Service) Stop() {
	s.cron.Stop()
	s.log.Info("scheduler stopped", logging.Component("scheduler"))
}

// Create registers a new recurring analysis.
func (s *Service) Create(name, dataset, schedule string, enabled bool) (*Job, error) {
	if name == "" {
		return nil, models.NewConfigurationError("name", "job name is required")
	}
	if dataset == "" {
		return nil, models.NewConfigurationError("dataset", "job dataset is required")
	}
	parsed, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, models.NewConfigurationError("schedule", "invalid cron expression: %v", err)
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.New().String(),
		Name:      name,
		Dataset:   dataset,
		Schedule:  schedule,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if enabled {
		next := parsed.Next(now)
		job.NextRun = &next
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	if job.Enabled {
		if err := s.scheduleJob(job); err != nil {
			delete(s.jobs, job.ID)
			return nil, err
		}
	}
	return job, nil
}

// Get retrieves a job by ID.
func (s *Service) Get(id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	copied := *job
	return &copied, nil
}

// List returns all jobs sorted by name.
func (s *Service) List() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		copied := *job
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Update applies field changes to a job and reschedules it.
func (s *Service) Update(id string, upd JobUpdate) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}

	if entryID, scheduled := s.entries[id]; scheduled {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	if upd.Name != nil {
		job.Name = *upd.Name
	}
	if upd.Dataset != nil {
		job.Dataset = *upd.Dataset
	}
	if upd.Schedule != nil {
		if _, err := cron.ParseStandard(*upd.Schedule); err != nil {
			return nil, models.NewConfigurationError("schedule", "invalid cron expression: %v", err)
		}
		job.Schedule = *upd.Schedule
	}
	if upd.Enabled != nil {
		job.Enabled = *upd.Enabled
	}
	job.UpdatedAt = time.Now()

	if job.Enabled {
		if parsed, err := cron.ParseStandard(job.Schedule); err == nil {
			next := parsed.Next(time.Now())
			job.NextRun = &next
		}
		if err := s.scheduleJob(job); err != nil {
			return nil, err
		}
	} else {
		job.NextRun = nil
	}

	copied := *job
	return &copied, nil
}

// Delete unschedules and removes a job.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if entryID, scheduled := s.entries[id]; scheduled {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
	delete(s.jobs, id)
	return nil
}

// scheduleJob registers the job with the cron loop. Caller holds the lock.
func (s *Service) scheduleJob(job *Job) error {
	parsed, err := cron.ParseStandard(job.Schedule)
	if err != nil {
		return models.NewConfigurationError("schedule", "invalid cron expression: %v", err)
	}

	id := job.ID
	entryID := s.cron.Schedule(parsed, cron.FuncJob(func() {
		s.executeJob(id)
	}))
	s.entries[id] = entryID

	s.log.Info("job scheduled", logging.Component("scheduler"),
		logging.String("job", job.Name), logging.String("schedule", job.Schedule))
	return nil
}

// executeJob loads the dataset and runs one analysis.
func (s *Service) executeJob(id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	name, dataset, schedule := job.Name, job.Dataset, job.Schedule
	now := time.Now()
	job.LastRun = &now
	if parsed, err := cron.ParseStandard(schedule); err == nil {
		next := parsed.Next(now)
		job.NextRun = &next
	}
	s.mu.Unlock()

	log := s.log.WithFields(logging.Component("scheduler"), logging.String("job", name))
	log.Info("executing scheduled analysis", logging.String("dataset", dataset))

	rows, err := s.loader(dataset)
	if err != nil {
		log.Error("loading dataset", err)
		return
	}

	result, err := s.pipeline.Run(context.Background(), dataset, rows)
	if err != nil {
		log.Error("running analysis", err)
		return
	}

	s.mu.Lock()
	if job, ok := s.jobs[id]; ok {
		job.LastRunID = result.RunID
	}
	s.mu.Unlock()

	log.Info("scheduled analysis complete",
		logging.String("run_id", result.RunID),
		logging.Duration("elapsed", time.Since(now)))
}
