package service

import (
	"context"
	"errors"
	"sync"

	"github.com/lei/matrix-ci/internal/engine"
	"github.com/lei/matrix-ci/internal/models"
	"github.com/lei/matrix-ci/internal/report"
	"github.com/lei/matrix-ci/internal/store"
	"github.com/lei/matrix-ci/pkg/logger"
)

var (
	// ErrRunNotFound indicates the requested run doesn't exist
	ErrRunNotFound = errors.New("run not found")
	// ErrRunNotActive indicates the run is not in flight and cannot be canceled
	ErrRunNotActive = errors.New("run is not in flight")
	// ErrEventIgnored indicates the event does not trigger this pipeline
	ErrEventIgnored = errors.New("event does not trigger this pipeline")
)

// Service coordinates the run lifecycle: trigger decisions, dispatching the
// run coordinator, supersede cancellation, and reporting.
type Service struct {
	pipeline    *models.Pipeline
	coordinator *engine.Coordinator
	store       *store.Store
	sink        report.Sink
	logger      *logger.Logger

	mu       sync.Mutex
	active   map[string]context.CancelFunc // in-flight run -> cancel
	byBranch map[string]string             // branch -> in-flight push run
}

// NewService creates a new service instance
func NewService(p *models.Pipeline, coord *engine.Coordinator, st *store.Store, sink report.Sink, log *logger.Logger) *Service {
	return &Service{
		pipeline:    p,
		coordinator: coord,
		store:       st,
		sink:        sink,
		logger:      log,
		active:      make(map[string]context.CancelFunc),
		byBranch:    make(map[string]string),
	}
}

// getLogger retrieves logger from context or falls back to service logger
func (s *Service) getLogger(ctx context.Context) *logger.Logger {
	if ctxLogger, ok := ctx.Value("logger").(*logger.Logger); ok {
		return ctxLogger
	}
	return s.logger
}

// Pipeline returns the loaded pipeline definition
func (s *Service) Pipeline() *models.Pipeline {
	return s.pipeline
}

// HandleEvent decides whether the event starts a run and, if so, launches
// it asynchronously. A newer push to a branch supersedes the in-flight push
// run for that branch: the superseded run is canceled and never reported.
func (s *Service) HandleEvent(ctx context.Context, event models.TriggerEvent) (*models.Run, error) {
	log := s.getLogger(ctx)

	if !s.shouldRun(event) {
		log.Debug("service: event ignored",
			"kind", event.Kind,
			"branch", event.Branch)
		return nil, ErrEventIgnored
	}

	s.mu.Lock()
	if event.Kind == models.TriggerPush {
		if prevID, ok := s.byBranch[event.Branch]; ok {
			log.Info("service: superseding in-flight run",
				"branch", event.Branch,
				"superseded_run_id", prevID)
			s.active[prevID]()
		}
	}

	run := s.store.Create(s.pipeline.Name, event)

	// Runs outlive the triggering request; the run context is detached
	runCtx, cancel := context.WithCancel(context.Background())
	s.active[run.RunID] = cancel
	if event.Kind == models.TriggerPush {
		s.byBranch[event.Branch] = run.RunID
	}
	s.mu.Unlock()

	log.Info("service: run accepted",
		"run_id", run.RunID,
		"kind", event.Kind,
		"branch", event.Branch,
		"commit", event.Commit)

	go s.execute(runCtx, run.RunID, event)

	return run, nil
}

// shouldRun applies the pipeline's trigger declaration to an event
func (s *Service) shouldRun(event models.TriggerEvent) bool {
	switch event.Kind {
	case models.TriggerPush:
		push := s.pipeline.On.Push
		if push == nil {
			return false
		}
		if len(push.Branches) == 0 {
			return true
		}
		for _, b := range push.Branches {
			if b == event.Branch {
				return true
			}
		}
		return false
	case models.TriggerPullRequest:
		return s.pipeline.On.PullRequest != nil
	default:
		return false
	}
}

// execute drives one run to completion
func (s *Service) execute(ctx context.Context, runID string, event models.TriggerEvent) {
	defer s.release(runID, event)

	if err := s.store.Start(runID); err != nil {
		s.logger.Error("service: failed to start run", "run_id", runID, "error", err)
		return
	}

	verdict, err := s.coordinator.Run(ctx, s.pipeline)
	if verdict == nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// A canceled run reports no verdict rather than a false one
			s.logger.Info("service: run canceled", "run_id", runID)
			_ = s.store.Cancel(runID)
			return
		}
		s.logger.Error("service: run aborted", "run_id", runID, "error", err)
		_ = s.store.Finish(runID, nil, err)
		return
	}

	faults := engine.Faults(verdict)
	if err := s.store.Finish(runID, verdict, faults); err != nil {
		s.logger.Error("service: failed to finish run", "run_id", runID, "error", err)
		return
	}

	if err := s.sink.Report(ctx, runID, verdict); err != nil {
		s.logger.Error("service: verdict report failed", "run_id", runID, "error", err)
	}
}

// release drops the run's cancellation bookkeeping
func (s *Service) release(runID string, event models.TriggerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, runID)
	if event.Kind == models.TriggerPush && s.byBranch[event.Branch] == runID {
		delete(s.byBranch, event.Branch)
	}
}

// GetRun retrieves one run with its verdict detail
func (s *Service) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	run, err := s.store.Get(runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns all runs, newest first
func (s *Service) ListRuns(ctx context.Context) []*models.Run {
	return s.store.List()
}

// CancelRun cancels an in-flight run
func (s *Service) CancelRun(ctx context.Context, runID string) error {
	log := s.getLogger(ctx)

	if _, err := s.store.Get(runID); err != nil {
		return ErrRunNotFound
	}

	s.mu.Lock()
	cancel, ok := s.active[runID]
	s.mu.Unlock()
	if !ok {
		return ErrRunNotActive
	}

	log.Info("service: canceling run", "run_id", runID)
	cancel()
	return nil
}
