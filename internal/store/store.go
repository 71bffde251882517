// Package store keeps run records in memory. Runs are the only state the
// engine owns; jobs themselves share nothing.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lei/matrix-ci/internal/models"
)

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

// Store is a mutex-guarded in-memory run store
type Store struct {
	mu    sync.RWMutex
	runs  map[string]*models.Run
	order []string // run IDs in creation order
}

// New creates an empty store
func New() *Store {
	return &Store{runs: make(map[string]*models.Run)}
}

// Create records a new queued run and returns a copy of it
func (s *Store) Create(pipeline string, trigger models.TriggerEvent) *models.Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &models.Run{
		RunID:     uuid.NewString(),
		Pipeline:  pipeline,
		Trigger:   trigger,
		Status:    models.RunQueued,
		CreatedAt: time.Now().UTC(),
	}
	s.runs[run.RunID] = run
	s.order = append(s.order, run.RunID)
	return copyRun(run)
}

// Get returns a copy of the run with the given ID
func (s *Store) Get(runID string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return copyRun(run), nil
}

// List returns copies of all runs, newest first
func (s *Store) List() []*models.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Run, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, copyRun(s.runs[s.order[i]]))
	}
	return out
}

// Start marks a run as running
func (s *Store) Start(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	now := time.Now().UTC()
	run.Status = models.RunRunning
	run.StartedAt = &now
	return nil
}

// Finish publishes the run's verdict atomically: status, verdict, and any
// aggregated fault become visible in one step. A nil verdict with a non-nil
// runErr records a run that failed before producing one.
func (s *Store) Finish(runID string, verdict *models.PipelineVerdict, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Verdict = verdict
	if runErr != nil {
		run.Error = runErr.Error()
	}

	switch {
	case verdict == nil:
		run.Status = models.RunFailed
	case verdict.Status == models.PipelinePassed:
		run.Status = models.RunPassed
	case verdict.Status == models.PipelineUnstable:
		run.Status = models.RunUnstable
	default:
		run.Status = models.RunFailed
	}
	return nil
}

// Cancel marks an unfinished run canceled. A canceled run keeps no verdict.
func (s *Store) Cancel(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	if run.FinishedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	run.Status = models.RunCanceled
	run.FinishedAt = &now
	run.Verdict = nil
	return nil
}

// copyRun returns a shallow copy; Verdict is immutable once finalized so
// sharing it is safe
func copyRun(run *models.Run) *models.Run {
	c := *run
	return &c
}
