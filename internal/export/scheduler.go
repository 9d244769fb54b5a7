package export

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/robfig/cron"
)

// Source supplies the history to export.
type Source interface {
	History() []models.DailySummary
	ExerciseNames() map[uuid.UUID]string
}

// Scheduler rewrites the export file on a cron schedule.
type Scheduler struct {
	src  Source
	path string
	log  *slog.Logger
	cron *cron.Cron

	mu      sync.Mutex
	runs    int
	stopped bool
}

// NewScheduler parses spec (standard cron with seconds, or descriptors such
// as "@every 1h" and "@daily").
func NewScheduler(src Source, path, spec string, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{src: src, path: path, log: log, cron: cron.New()}
	if err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parsing export schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("export scheduled", "path", s.path)
}

// Stop halts the schedule and waits for a run in progress. Ticks that fire
// afterwards are skipped.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// RunOnce writes the export immediately.
func (s *Scheduler) RunOnce() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked()
}

// Runs counts successful exports.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) writeLocked() error {
	if err := WriteFile(s.path, s.src.History(), s.src.ExerciseNames()); err != nil {
		return err
	}
	s.runs++
	return nil
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if err := s.writeLocked(); err != nil {
		s.log.Error("scheduled export", "path", s.path, "error", err)
		return
	}
	s.log.Debug("scheduled export written", "path", s.path)
}
