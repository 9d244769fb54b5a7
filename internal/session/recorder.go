// Package session times one practice session at a time and records it to the
// workout log when it completes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/metronome"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
)

var (
	ErrSessionActive = errors.New("a session is already in progress")
	ErrNoSession     = errors.New("no session in progress")
	ErrInvalidState  = errors.New("invalid session state")
)

// State is the recorder's lifecycle position.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// Log is the part of the practice library the recorder needs.
type Log interface {
	Exercise(id uuid.UUID) (models.Exercise, error)
	RecordEntry(ctx context.Context, in practice.EntryInput) (models.WorkoutEntry, error)
}

// Metronome is the part of the metronome the recorder drives.
type Metronome interface {
	Start()
	Stop()
	Running() bool
	BPM() int
}

// Session is the journaled state of one practice session.
type Session struct {
	ID           uuid.UUID     `json:"id"`
	ExerciseID   uuid.UUID     `json:"exercise_id"`
	State        State         `json:"state"`
	StartedAt    time.Time     `json:"started_at"`
	ResumedAt    time.Time     `json:"resumed_at"`
	Accumulated  time.Duration `json:"accumulated"`
	CheckpointAt time.Time     `json:"checkpoint_at"`
	BPM          *int          `json:"bpm,omitempty"`
	// MetronomeWasRunning is set on pause when the metronome was clicking.
	MetronomeWasRunning bool `json:"metronome_was_running"`
}

func (s *Session) elapsed(now time.Time) time.Duration {
	d := s.Accumulated
	if s.State == StateRunning {
		d += now.Sub(s.ResumedAt)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Status is what callers see of the recorder.
type Status struct {
	State        State                `json:"state"`
	SessionID    uuid.UUID            `json:"session_id"`
	ExerciseID   uuid.UUID            `json:"exercise_id"`
	ExerciseName string               `json:"exercise_name,omitempty"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	ElapsedSec   int64                `json:"elapsed_sec"`
	Elapsed      string               `json:"elapsed"`
	BPM          *int                 `json:"bpm,omitempty"`
	DefaultBPM   int                  `json:"default_bpm,omitempty"`
	Entry        *models.WorkoutEntry `json:"entry,omitempty"`
}

// Recorder is the Idle, Running, Paused, Completed state machine.
type Recorder struct {
	mu      sync.Mutex
	log     Log
	metro   Metronome
	journal Journal
	logger  *slog.Logger
	now     func() time.Time

	cur  *Session
	last *models.WorkoutEntry
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithJournal checkpoints every transition to j.
func WithJournal(j Journal) Option {
	return func(r *Recorder) { r.journal = j }
}

// WithMetronome lets pause and resume drive m.
func WithMetronome(m Metronome) Option {
	return func(r *Recorder) { r.metro = m }
}

// NewRecorder creates an idle recorder.
func NewRecorder(log Log, logger *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{log: log, logger: logger, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Recover restores a session interrupted by a crash or restart. A session
// that was running comes back paused with the time up to its last
// checkpoint. It returns false when there was nothing to restore.
func (r *Recorder) Recover(ctx context.Context) (bool, error) {
	if r.journal == nil {
		return false, nil
	}
	s, err := r.journal.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading session journal: %w", err)
	}
	if s == nil {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.log.Exercise(s.ExerciseID); err != nil {
		r.logger.Warn("discarding journaled session", "session", s.ID, "error", err)
		r.clearJournal(ctx)
		return false, nil
	}
	if s.State == StateRunning {
		if s.CheckpointAt.After(s.ResumedAt) {
			s.Accumulated += s.CheckpointAt.Sub(s.ResumedAt)
		}
		s.State = StatePaused
	}
	if s.State != StatePaused {
		r.clearJournal(ctx)
		return false, nil
	}
	s.MetronomeWasRunning = false
	r.cur = s
	r.checkpoint(ctx)
	r.logger.Info("session recovered", "session", s.ID, "exercise", s.ExerciseID, "elapsed", s.Accumulated)
	return true, nil
}

// Start begins timing an existing exercise.
func (r *Recorder) Start(ctx context.Context, exerciseID uuid.UUID) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.startLocked(ctx, exerciseID); err != nil {
		return Status{}, err
	}
	return r.statusLocked(), nil
}

func (r *Recorder) startLocked(ctx context.Context, exerciseID uuid.UUID) error {
	if r.active() {
		return ErrSessionActive
	}
	if _, err := r.log.Exercise(exerciseID); err != nil {
		return err
	}
	now := r.now()
	r.cur = &Session{
		ID:         uuid.New(),
		ExerciseID: exerciseID,
		State:      StateRunning,
		StartedAt:  now,
		ResumedAt:  now,
	}
	r.last = nil
	r.checkpoint(ctx)
	r.logger.Info("session started", "session", r.cur.ID, "exercise", exerciseID)
	return nil
}

// Pause stops the clock and the metronome, remembering whether it was running.
func (r *Recorder) Pause(ctx context.Context) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active() {
		return Status{}, ErrNoSession
	}
	if r.cur.State != StateRunning {
		return Status{}, fmt.Errorf("pause from %s: %w", r.cur.State, ErrInvalidState)
	}
	now := r.now()
	r.cur.Accumulated = r.cur.elapsed(now)
	r.cur.State = StatePaused
	r.cur.MetronomeWasRunning = false
	if r.metro != nil && r.metro.Running() {
		r.cur.MetronomeWasRunning = true
		r.metro.Stop()
	}
	r.checkpoint(ctx)
	return r.statusLocked(), nil
}

// Resume restarts the clock, and the metronome if pause stopped it.
func (r *Recorder) Resume(ctx context.Context) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active() {
		return Status{}, ErrNoSession
	}
	if r.cur.State != StatePaused {
		return Status{}, fmt.Errorf("resume from %s: %w", r.cur.State, ErrInvalidState)
	}
	r.cur.State = StateRunning
	r.cur.ResumedAt = r.now()
	if r.cur.MetronomeWasRunning && r.metro != nil && !r.metro.Running() {
		r.metro.Start()
	}
	r.cur.MetronomeWasRunning = false
	r.checkpoint(ctx)
	return r.statusLocked(), nil
}

// SetBPM records the tempo reached so far. Nil clears it.
func (r *Recorder) SetBPM(ctx context.Context, bpm *int) (Status, error) {
	if bpm != nil && *bpm <= 0 {
		return Status{}, fmt.Errorf("bpm must be positive: %w", practice.ErrInvalid)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active() {
		return Status{}, ErrNoSession
	}
	r.cur.BPM = copyInt(bpm)
	r.checkpoint(ctx)
	return r.statusLocked(), nil
}

// Elapsed returns the non-paused time of the current session.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active() {
		return 0
	}
	return r.cur.elapsed(r.now())
}

// Stop completes the session, records one workout entry and stops the
// metronome. bpm overrides the tempo set during the session. When recording
// fails the session and the metronome are left as they were so the caller
// can retry.
func (r *Recorder) Stop(ctx context.Context, bpm *int) (models.WorkoutEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked(ctx, bpm)
}

// Next completes the current session like Stop and immediately starts one on
// exerciseID. The metronome stays off until the caller starts it again.
func (r *Recorder) Next(ctx context.Context, bpm *int, exerciseID uuid.UUID) (models.WorkoutEntry, Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.log.Exercise(exerciseID); err != nil {
		return models.WorkoutEntry{}, Status{}, err
	}
	entry, err := r.stopLocked(ctx, bpm)
	if err != nil {
		return models.WorkoutEntry{}, Status{}, err
	}
	if err := r.startLocked(ctx, exerciseID); err != nil {
		return entry, r.statusLocked(), err
	}
	return entry, r.statusLocked(), nil
}

func (r *Recorder) stopLocked(ctx context.Context, bpm *int) (models.WorkoutEntry, error) {
	if !r.active() {
		return models.WorkoutEntry{}, ErrNoSession
	}
	if bpm == nil {
		bpm = r.cur.BPM
	}
	now := r.now()
	in := practice.EntryInput{
		ExerciseID:  r.cur.ExerciseID,
		Date:        now,
		DurationSec: int64(r.cur.elapsed(now) / time.Second),
		BPM:         copyInt(bpm),
	}
	entry, err := r.log.RecordEntry(ctx, in)
	if err != nil {
		return models.WorkoutEntry{}, fmt.Errorf("recording session: %w", err)
	}
	if r.metro != nil {
		r.metro.Stop()
	}
	r.cur.Accumulated = r.cur.elapsed(now)
	r.cur.State = StateCompleted
	r.last = &entry
	r.clearJournal(ctx)
	r.logger.Info("session completed", "session", r.cur.ID, "exercise", entry.ExerciseID,
		"duration", models.FormatClock(entry.DurationSec))
	return entry, nil
}

// Cancel discards the session without touching the workout log. It also
// stops the metronome.
func (r *Recorder) Cancel(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active() {
		return ErrNoSession
	}
	if r.metro != nil {
		r.metro.Stop()
	}
	r.logger.Info("session cancelled", "session", r.cur.ID)
	r.cur = nil
	r.last = nil
	r.clearJournal(ctx)
	return nil
}

// Checkpoint journals the running clock. Callers tick it periodically so a
// crash loses at most one interval.
func (r *Recorder) Checkpoint(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active() {
		r.checkpoint(ctx)
	}
}

// Status reports the current state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked()
}

// DefaultBPM is the tempo offered when a session stops: the exercise's
// personal record, else the metronome tempo.
func (r *Recorder) DefaultBPM(exerciseID uuid.UUID) int {
	if ex, err := r.log.Exercise(exerciseID); err == nil && ex.PersonalRecord != nil {
		return *ex.PersonalRecord
	}
	if r.metro != nil {
		return r.metro.BPM()
	}
	return metronome.DefaultBPM
}

func (r *Recorder) active() bool {
	return r.cur != nil && r.cur.State != StateCompleted
}

func (r *Recorder) statusLocked() Status {
	if r.cur == nil {
		return Status{State: StateIdle, Elapsed: models.FormatClock(0)}
	}
	sec := int64(r.cur.elapsed(r.now()) / time.Second)
	started := r.cur.StartedAt
	st := Status{
		State:      r.cur.State,
		SessionID:  r.cur.ID,
		ExerciseID: r.cur.ExerciseID,
		StartedAt:  &started,
		ElapsedSec: sec,
		Elapsed:    models.FormatClock(sec),
		BPM:        copyInt(r.cur.BPM),
		DefaultBPM: r.DefaultBPM(r.cur.ExerciseID),
		Entry:      r.last,
	}
	if ex, err := r.log.Exercise(r.cur.ExerciseID); err == nil {
		st.ExerciseName = ex.Name
	}
	return st
}

func (r *Recorder) checkpoint(ctx context.Context) {
	if r.journal == nil {
		return
	}
	r.cur.CheckpointAt = r.now()
	if err := r.journal.Save(ctx, *r.cur); err != nil {
		r.logger.Warn("checkpointing session", "session", r.cur.ID, "error", err)
	}
}

func (r *Recorder) clearJournal(ctx context.Context) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Clear(ctx); err != nil {
		r.logger.Warn("clearing session journal", "error", err)
	}
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
