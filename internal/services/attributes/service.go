package attributes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	engine "github.com/ternarybob/benchdash/internal/attributes"
	"github.com/ternarybob/benchdash/internal/interfaces"
	"github.com/ternarybob/benchdash/internal/models"
)

var (
	// ErrLookupUnavailable means there is no valid stored lookup to reconcile against
	ErrLookupUnavailable = errors.New("attribute lookup unavailable")

	// ErrNoTests means the run declared no test metadata
	ErrNoTests = errors.New("run has no test metadata")

	// ErrInvalidLookup is returned when a replacement lookup cannot be decoded
	ErrInvalidLookup = errors.New("invalid attribute lookup")
)

const (
	ModePreview = "preview"
	ModeApply   = "apply"

	lastReconciledKey = "attributes.last_reconciled_run"
)

// Recorder receives reconciliation measurements
type Recorder interface {
	ObserveReconcile(mode string, report engine.Report, elapsed time.Duration)
}

// Result is the outcome of reconciling one run against the stored lookup
type Result struct {
	RunID  string                 `json:"run_id"`
	Mode   string                 `json:"mode"`
	Saved  bool                   `json:"saved"`
	Lookup models.AttributeLookup `json:"lookup"`
	Report engine.Report          `json:"report"`
}

// ViewTest is one unminified test with its identity
type ViewTest struct {
	ID int `json:"id"`
	models.TestDefinition
}

// TestsView is the combined machine-readable view of dictionaries and tests
type TestsView struct {
	RunID      string                                                 `json:"run_id,omitempty"`
	Attributes map[models.AttributeCategory]models.AttributeDictionary `json:"attributes"`
	Tests      []ViewTest                                             `json:"tests"`
}

// Service keeps the stored attribute lookup in step with uploaded runs
type Service struct {
	lookups  interfaces.LookupStorage
	runs     interfaces.RunStorage
	kv       interfaces.KeyValueStorage
	events   interfaces.EventService
	recorder Recorder
	logger   arbor.ILogger

	// writeMu serializes load-reconcile-save cycles within this process
	writeMu sync.Mutex
}

// NewService creates the attribute service. events and recorder may be nil.
func NewService(
	lookups interfaces.LookupStorage,
	runs interfaces.RunStorage,
	kv interfaces.KeyValueStorage,
	events interfaces.EventService,
	recorder Recorder,
	logger arbor.ILogger,
) *Service {
	return &Service{
		lookups:  lookups,
		runs:     runs,
		kv:       kv,
		events:   events,
		recorder: recorder,
		logger:   logger,
	}
}

// Current returns the stored lookup
func (s *Service) Current(ctx context.Context) (models.AttributeLookup, error) {
	data, err := s.lookups.Load(ctx)
	if errors.Is(err, interfaces.ErrLookupNotFound) {
		return models.AttributeLookup{}, fmt.Errorf("%w: no lookup has been stored", ErrLookupUnavailable)
	}
	if err != nil {
		return models.AttributeLookup{}, err
	}

	lookup, err := models.ParseAttributeLookup(data)
	if err != nil {
		return models.AttributeLookup{}, fmt.Errorf("%w: %v", ErrLookupUnavailable, err)
	}
	return lookup, nil
}

// Preview reconciles the run against the stored lookup without saving.
// An empty runID selects the latest uploaded run.
func (s *Service) Preview(ctx context.Context, runID string) (*Result, error) {
	return s.reconcile(ctx, runID, ModePreview)
}

// Apply reconciles the run and stores the resulting lookup
func (s *Service) Apply(ctx context.Context, runID string) (*Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.reconcile(ctx, runID, ModeApply)
}

func (s *Service) reconcile(ctx context.Context, runID, mode string) (*Result, error) {
	run, err := s.resolveRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(run.TestMetadata) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTests, run.ID)
	}

	old, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	next := engine.Reconcile(old, run.TestMetadata)
	report := engine.Summarize(old, next)
	elapsed := time.Since(start)

	result := &Result{
		RunID:  run.ID,
		Mode:   mode,
		Lookup: next,
		Report: report,
	}

	if mode == ModeApply {
		if err := s.store(ctx, next); err != nil {
			return nil, err
		}
		if err := s.markReconciled(ctx, run.ID); err != nil {
			s.logger.Warn().Err(err).Str("run_id", run.ID).Msg("Failed to record reconciled run")
		}
		result.Saved = true
	}

	s.logger.Info().
		Str("run_id", run.ID).
		Str("mode", mode).
		Int("tests", len(run.TestMetadata)).
		Int("appended", report.AppendedCount()).
		Int("newly_unused", report.NewlyUnusedCount()).
		Int("minted", len(report.MintedIdentities)).
		Int("reused", len(report.ReusedIdentities)).
		Int("retired", len(report.RetiredIdentities)).
		Dur("elapsed", elapsed).
		Msg("Attribute lookup reconciled")

	if s.recorder != nil {
		s.recorder.ObserveReconcile(mode, report, elapsed)
	}

	s.publish(ctx, interfaces.EventAttributesReconciled, map[string]interface{}{
		"run_id":       run.ID,
		"mode":         mode,
		"saved":        result.Saved,
		"changed":      report.Changed(),
		"appended":     report.AppendedCount(),
		"newly_unused": report.NewlyUnusedCount(),
		"minted":       len(report.MintedIdentities),
	})
	if result.Saved {
		s.publish(ctx, interfaces.EventAttributesSaved, map[string]interface{}{
			"run_id": run.ID,
			"tests":  len(next.MinifiedTests),
		})
	}

	return result, nil
}

// ReplaceLookup stores a hand-edited lookup. The input must decode; it is
// stored in canonical form.
func (s *Service) ReplaceLookup(ctx context.Context, raw []byte) (models.AttributeLookup, error) {
	lookup, err := models.ParseAttributeLookup(raw)
	if err != nil {
		return models.AttributeLookup{}, fmt.Errorf("%w: %v", ErrInvalidLookup, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store(ctx, lookup); err != nil {
		return models.AttributeLookup{}, err
	}

	s.logger.Info().
		Int("categories", len(lookup.Attributes)).
		Int("tests", len(lookup.MinifiedTests)).
		Msg("Attribute lookup replaced")

	s.publish(ctx, interfaces.EventAttributesSaved, map[string]interface{}{
		"tests":  len(lookup.MinifiedTests),
		"source": "replace",
	})
	return lookup, nil
}

// TestsView returns dictionaries plus unminified tests. With a runID the view
// reflects that run reconciled against the stored lookup, unsaved.
func (s *Service) TestsView(ctx context.Context, runID string) (*TestsView, error) {
	var lookup models.AttributeLookup
	if runID == "" {
		current, err := s.Current(ctx)
		if err != nil {
			return nil, err
		}
		lookup = current
	} else {
		result, err := s.Preview(ctx, runID)
		if err != nil {
			return nil, err
		}
		lookup = result.Lookup
	}

	tests := engine.Unminify(lookup)
	ids := make([]int, 0, len(tests))
	for id := range tests {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	view := &TestsView{
		RunID:      runID,
		Attributes: lookup.Attributes,
		Tests:      make([]ViewTest, 0, len(ids)),
	}
	if view.Attributes == nil {
		view.Attributes = map[models.AttributeCategory]models.AttributeDictionary{}
	}
	for _, id := range ids {
		view.Tests = append(view.Tests, ViewTest{ID: id, TestDefinition: tests[id]})
	}
	return view, nil
}

// LastReconciledRun returns the ID of the last run reconciled by Apply or the scheduler
func (s *Service) LastReconciledRun(ctx context.Context) (string, error) {
	runID, err := s.kv.Get(ctx, lastReconciledKey)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return "", nil
	}
	return runID, err
}

// markReconciled records runID as applied
func (s *Service) markReconciled(ctx context.Context, runID string) error {
	return s.kv.Set(ctx, lastReconciledKey, runID, "Last run reconciled into the attribute lookup")
}

func (s *Service) resolveRun(ctx context.Context, runID string) (*models.Run, error) {
	if runID == "" {
		return s.runs.LatestRun(ctx)
	}
	return s.runs.GetRun(ctx, runID)
}

func (s *Service) store(ctx context.Context, lookup models.AttributeLookup) error {
	data, err := json.Marshal(lookup)
	if err != nil {
		return fmt.Errorf("failed to encode attribute lookup: %w", err)
	}
	if err := s.lookups.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to save attribute lookup: %w", err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType interfaces.EventType, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish attribute event")
	}
}
