package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"github.com/ternarybob/benchdash/internal/services/attributes"
)

// AutoReconcileJob is the name of the scheduled reconciliation job
const AutoReconcileJob = "auto_reconcile"

// Reconciler is the part of the attribute service the scheduler drives
type Reconciler interface {
	Preview(ctx context.Context, runID string) (*attributes.Result, error)
	Apply(ctx context.Context, runID string) (*attributes.Result, error)
	LastReconciledRun(ctx context.Context) (string, error)
}

// JobStatus describes a registered job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	IsRunning   bool       `json:"is_running"`
	LastError   string     `json:"last_error,omitempty"`
}

type jobEntry struct {
	name        string
	schedule    string
	description string
	handler     func(ctx context.Context) error
	cronID      cron.EntryID
	lastRun     *time.Time
	isRunning   bool
	lastError   string
}

// Service runs periodic jobs on cron schedules
type Service struct {
	cron     *cron.Cron
	logger   arbor.ILogger
	jobMu    sync.Mutex // Protects jobs map
	globalMu sync.Mutex // Prevents concurrent job execution
	jobs     map[string]*jobEntry
	running  bool
}

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(),
		logger: logger,
		jobs:   make(map[string]*jobEntry),
	}
}

// RegisterJob adds a job on a five-field cron schedule
func (s *Service) RegisterJob(name, schedule, description string, handler func(ctx context.Context) error) error {
	if err := common.ValidateSchedule(schedule); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	entry := &jobEntry{
		name:        name,
		schedule:    schedule,
		description: description,
		handler:     handler,
	}

	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeJob(name)
	})
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	entry.cronID = cronID
	s.jobs[name] = entry

	s.logger.Info().
		Str("job_name", name).
		Str("schedule", schedule).
		Msg("Job registered")

	return nil
}

// Start begins running registered jobs
func (s *Service) Start() error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running job to finish
func (s *Service) Stop() error {
	s.jobMu.Lock()
	if !s.running {
		s.jobMu.Unlock()
		return nil
	}
	s.running = false
	s.jobMu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	return s.running
}

// TriggerJob runs a job immediately, outside its schedule
func (s *Service) TriggerJob(name string) error {
	s.jobMu.Lock()
	_, exists := s.jobs[name]
	s.jobMu.Unlock()

	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.executeJob(name)
	return nil
}

// Jobs returns the status of every registered job, ordered by name
func (s *Service) Jobs() []JobStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	next := make(map[cron.EntryID]time.Time)
	for _, e := range s.cron.Entries() {
		next[e.ID] = e.Next
	}

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := JobStatus{
			Name:        entry.name,
			Schedule:    entry.schedule,
			Description: entry.description,
			LastRun:     entry.lastRun,
			IsRunning:   entry.isRunning,
			LastError:   entry.lastError,
		}
		if t, ok := next[entry.cronID]; ok && !t.IsZero() {
			status.NextRun = &t
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func (s *Service) executeJob(name string) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()

	s.jobMu.Lock()
	entry, exists := s.jobs[name]
	if !exists {
		s.jobMu.Unlock()
		s.logger.Warn().Str("job_name", name).Msg("Job not found")
		return
	}
	entry.isRunning = true
	handler := entry.handler
	s.jobMu.Unlock()

	start := time.Now()
	err := runHandler(handler)
	finished := time.Now()

	s.jobMu.Lock()
	entry.isRunning = false
	entry.lastRun = &finished
	if err != nil {
		entry.lastError = err.Error()
	} else {
		entry.lastError = ""
	}
	s.jobMu.Unlock()

	if err != nil {
		s.logger.Error().
			Str("job_name", name).
			Err(err).
			Dur("duration", finished.Sub(start)).
			Msg("Job execution failed")
		return
	}
	s.logger.Debug().
		Str("job_name", name).
		Dur("duration", finished.Sub(start)).
		Msg("Job execution completed")
}

// runHandler turns a panicking job into a failed one
func runHandler(handler func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(context.Background())
}

// AutoReconcileHandler builds the job that reconciles the latest uploaded run.
// A run that was already applied is skipped. With apply set the result is
// saved. Otherwise it is only previewed, once per run for the life of the
// process, and stays eligible for a later apply.
func AutoReconcileHandler(runs interfaces.RunStorage, reconciler Reconciler, apply bool, logger arbor.ILogger) func(ctx context.Context) error {
	var (
		mu        sync.Mutex
		previewed string
	)

	return func(ctx context.Context) error {
		latest, err := runs.LatestRun(ctx)
		if errors.Is(err, interfaces.ErrRunNotFound) {
			logger.Debug().Msg("Auto-reconcile: no runs uploaded yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find latest run: %w", err)
		}

		last, err := reconciler.LastReconciledRun(ctx)
		if err != nil {
			return fmt.Errorf("failed to read last reconciled run: %w", err)
		}
		if last == latest.ID {
			logger.Debug().Str("run_id", latest.ID).Msg("Auto-reconcile: latest run already reconciled")
			return nil
		}

		if apply {
			_, err = reconciler.Apply(ctx, latest.ID)
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		if previewed == latest.ID {
			return nil
		}

		result, err := reconciler.Preview(ctx, latest.ID)
		if err != nil {
			return err
		}
		if result.Report.Changed() {
			logger.Info().
				Str("run_id", latest.ID).
				Msg("Auto-reconcile: lookup differs from latest run; apply it to save")
		}
		previewed = latest.ID
		return nil
	}
}
