package results

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/benchdash/internal/common"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"github.com/ternarybob/benchdash/internal/models"
)

// ErrInvalidRun is returned when an upload fails validation
var ErrInvalidRun = errors.New("invalid run")

// UploadRecorder is notified of accepted uploads
type UploadRecorder interface {
	ObserveUpload()
}

// UploadRequest is the body of a run upload
type UploadRequest struct {
	Name         string                  `json:"name"`
	Environment  string                  `json:"environment"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	TestMetadata []models.TestDefinition `json:"test_metadata"`
}

// Service archives benchmark runs
type Service struct {
	runs     interfaces.RunStorage
	events   interfaces.EventService
	recorder UploadRecorder
	validate *validator.Validate
	logger   arbor.ILogger
}

// NewService creates a results service. events and recorder may be nil.
func NewService(runs interfaces.RunStorage, events interfaces.EventService, recorder UploadRecorder, logger arbor.ILogger) *Service {
	return &Service{
		runs:     runs,
		events:   events,
		recorder: recorder,
		validate: validator.New(),
		logger:   logger,
	}
}

// Upload validates and stores a run, then publishes run_uploaded
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*models.Run, error) {
	run := &models.Run{
		ID:           common.NewRunID(),
		Name:         strings.TrimSpace(req.Name),
		Environment:  strings.TrimSpace(req.Environment),
		UploadedAt:   time.Now().UTC(),
		CompletedAt:  req.CompletedAt,
		TestMetadata: req.TestMetadata,
	}

	if err := s.validateRun(run); err != nil {
		return nil, err
	}

	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to store run: %w", err)
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("name", run.Name).
		Int("tests", len(run.TestMetadata)).
		Msg("Benchmark run uploaded")

	if s.recorder != nil {
		s.recorder.ObserveUpload()
	}
	s.publish(ctx, interfaces.EventRunUploaded, run)

	return run, nil
}

func (s *Service) validateRun(run *models.Run) error {
	err := s.validate.Struct(run)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRun, strings.Join(problems, "; "))
}

// Get returns a run by ID
func (s *Service) Get(ctx context.Context, id string) (*models.Run, error) {
	return s.runs.GetRun(ctx, id)
}

// Latest returns the most recently uploaded run
func (s *Service) Latest(ctx context.Context) (*models.Run, error) {
	return s.runs.LatestRun(ctx)
}

// List returns run summaries newest first plus the total number of runs
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.RunSummary, int, error) {
	runs, err := s.runs.ListRuns(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.runs.CountRuns(ctx)
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]models.RunSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, run.Summary())
	}
	return summaries, total, nil
}

// Delete removes a run and publishes run_deleted
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.runs.DeleteRun(ctx, id); err != nil {
		return err
	}

	s.logger.Info().Str("run_id", id).Msg("Benchmark run deleted")
	s.publish(ctx, interfaces.EventRunDeleted, &models.Run{ID: id})
	return nil
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, run *models.Run) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, interfaces.Event{
		Type: eventType,
		Payload: map[string]interface{}{
			"run_id": run.ID,
			"name":   run.Name,
			"tests":  len(run.TestMetadata),
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish run event")
	}
}
