package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeMetronome struct {
	running bool
	bpm     int
	starts  int
	stops   int
}

func (m *fakeMetronome) Start()        { m.running = true; m.starts++ }
func (m *fakeMetronome) Stop()         { m.running = false; m.stops++ }
func (m *fakeMetronome) Running() bool { return m.running }
func (m *fakeMetronome) BPM() int      { return m.bpm }

type fixture struct {
	store *practice.MemoryStore
	lib   *practice.Library
	clock *fakeClock
	metro *fakeMetronome
	jrnl  *MemoryJournal
	rec   *Recorder
	ex    models.Exercise
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store: practice.NewMemoryStore(),
		clock: &fakeClock{t: time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)},
		metro: &fakeMetronome{bpm: 120},
		jrnl:  &MemoryJournal{},
	}
	lib, err := practice.New(ctx, f.store, models.DefaultSettings(), quietLog(), practice.WithClock(f.clock.now))
	if err != nil {
		t.Fatalf("practice.New: %v", err)
	}
	f.lib = lib
	f.ex, err = lib.CreateExercise(ctx, practice.ExerciseInput{Name: "Scales"})
	if err != nil {
		t.Fatalf("CreateExercise: %v", err)
	}
	f.rec = NewRecorder(lib, quietLog(), WithClock(f.clock.now), WithMetronome(f.metro), WithJournal(f.jrnl))
	return f
}

func intp(v int) *int { return &v }

func TestStartStopRecordsEntry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.rec.Start(ctx, f.ex.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.State != StateRunning || st.ExerciseName != "Scales" {
		t.Errorf("status = %+v", st)
	}

	f.clock.advance(10 * time.Minute)
	entry, err := f.rec.Stop(ctx, intp(100))
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if entry.DurationSec != 600 || entry.BPM == nil || *entry.BPM != 100 {
		t.Errorf("entry = %+v", entry)
	}
	if !entry.Date.Equal(f.clock.t) {
		t.Errorf("entry date = %v, want %v", entry.Date, f.clock.t)
	}
	if got := f.lib.EntryCount(); got != 1 {
		t.Errorf("EntryCount = %d, want 1", got)
	}
	if st := f.rec.Status(); st.State != StateCompleted || st.Entry == nil {
		t.Errorf("status after stop = %+v", st)
	}
	if s, _ := f.jrnl.Load(ctx); s != nil {
		t.Errorf("journal not cleared: %+v", s)
	}
}

func TestStartUnknownExercise(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Start(context.Background(), uuid.New())
	if !errors.Is(err, practice.ErrExerciseNotFound) {
		t.Fatalf("err = %v, want ErrExerciseNotFound", err)
	}
	if st := f.rec.Status(); st.State != StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
}

func TestOnlyOneSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.rec.Start(ctx, f.ex.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.rec.Start(ctx, f.ex.ID); !errors.Is(err, ErrSessionActive) {
		t.Errorf("second Start err = %v, want ErrSessionActive", err)
	}
}

func TestCancelLeavesLogUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.metro.Start()
	if _, err := f.rec.Start(ctx, f.ex.ID); err != nil {
		t.Fatal(err)
	}
	f.clock.advance(time.Minute)

	if err := f.rec.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.lib.EntryCount() != 0 {
		t.Errorf("cancel wrote %d entries", f.lib.EntryCount())
	}
	if f.metro.running {
		t.Error("metronome still running after cancel")
	}
	if st := f.rec.Status(); st.State != StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
	if err := f.rec.Cancel(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("second Cancel err = %v, want ErrNoSession", err)
	}
}

func TestStopSilencesMetronome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.rec.Start(ctx, f.ex.ID); err != nil {
		t.Fatal(err)
	}
	f.metro.Start()
	f.clock.advance(time.Minute)

	f.store.FailNext = errors.New("disk full")
	if _, err := f.rec.Stop(ctx, nil); err == nil {
		t.Fatal("expected Stop to fail")
	}
	if !f.metro.running {
		t.Fatal("failed stop silenced the metronome")
	}

	if _, err := f.rec.Stop(ctx, nil); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if f.metro.running || f.metro.stops != 1 {
		t.Errorf("after stop: running=%v stops=%d, want stopped once", f.metro.running, f.metro.stops)
	}
	if st := f.rec.Status(); st.State != StateCompleted {
		t.Errorf("state = %s, want completed", st.State)
	}
}

func TestNextSilencesMetronome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.lib.CreateExercise(ctx, practice.ExerciseInput{Name: "Arpeggios"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.rec.Start(ctx, f.ex.ID); err != nil {
		t.Fatal(err)
	}
	f.metro.Start()
	f.clock.advance(time.Minute)

	if _, _, err := f.rec.Next(ctx, nil, other.ID); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.metro.running {
		t.Error("metronome still running after save and continue")
	}
}

func TestPauseExcludesPausedTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.rec.Start(ctx, f.ex.ID); err != nil {
		t.Fatal(err)
	}
	f.clock.advance(2 * time.Minute)
	if _, err := f.rec.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	f.clock.advance(30 * time.Minute)
	if got := f.rec.Elapsed(); got != 2*time.Minute {
		t.Errorf("Elapsed while paused = %v, want 2m", got)
	}
	if _, err := f.rec.Pause(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double Pause err = %v, want ErrInvalidState", err)
	}
	if _, err := f.rec.Resume(ctx); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	f.clock.advance(3 * time.Minute)

	entry, err := f.rec.Stop(ctx, nil)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if entry.DurationSec != 300 {
		t.Errorf("duration = %d, want 300", entry.DurationSec)
	}
	if entry.BPM != nil {
		t.Errorf("bpm = %v, want nil", *entry.BPM)
	}
}

func TestPauseRestoresMetronome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.rec.Start(ctx, f.ex.ID); err != nil {
		t.Fatal(err)
	}

	f.metro.Start()
	f.rec.Pause(ctx)
	if f.metro.running {
		t.Fatal("pause left metronome running")
	}
	f.rec.Resume(ctx)
	if !f.metro.running {
		t.Fatal("resume did not restart metronome")
	}

	f.metro.Stop()
	starts := f.metro.starts
	f.rec.Pause(ctx)
	f.rec.Resume(ctx)
	if f.metro.starts != starts {
		t.Error("resume started a metronome that was off before pause")
	}
}

func TestStopFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.rec.Start(ctx, f.ex.ID); err != nil {
		t.Fatal(err)
	}
	f.clock.advance(time.Minute)

	f.store.FailNext = errors.New("disk full")
	if _, err := f.rec.Stop(ctx, intp(90)); err == nil {
		t.Fatal("expected Stop to fail")
	}
	if st := f.rec.Status(); st.State != StateRunning {
		t.Fatalf("state after failed stop = %s, want running", st.State)
	}

	entry, err := f.rec.Stop(ctx, intp(90))
	if err != nil {
		t.Fatalf("retry Stop: %v", err)
	}
	if entry.DurationSec != 60 {
		t.Errorf("duration = %d, want 60", entry.DurationSec)
	}
}

func TestSetBPMUsedAtStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rec.Start(ctx, f.ex.ID)
	if _, err := f.rec.SetBPM(ctx, intp(0)); !errors.Is(err, practice.ErrInvalid) {
		t.Errorf("SetBPM(0) err = %v", err)
	}
	if _, err := f.rec.SetBPM(ctx, intp(132)); err != nil {
		t.Fatal(err)
	}
	entry, err := f.rec.Stop(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if entry.BPM == nil || *entry.BPM != 132 {
		t.Errorf("bpm = %v, want 132", entry.BPM)
	}
}

func TestDefaultBPM(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.metro.bpm = 88
	if got := f.rec.DefaultBPM(f.ex.ID); got != 88 {
		t.Errorf("DefaultBPM without record = %d, want metronome 88", got)
	}
	if _, err := f.lib.RecordEntry(ctx, practice.EntryInput{ExerciseID: f.ex.ID, DurationSec: 60, BPM: intp(140)}); err != nil {
		t.Fatal(err)
	}
	if got := f.rec.DefaultBPM(f.ex.ID); got != 140 {
		t.Errorf("DefaultBPM = %d, want personal record 140", got)
	}
}

func TestNextStartsFollowingSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.lib.CreateExercise(ctx, practice.ExerciseInput{Name: "Arpeggios"})
	if err != nil {
		t.Fatal(err)
	}
	f.rec.Start(ctx, f.ex.ID)
	f.clock.advance(5 * time.Minute)

	entry, st, err := f.rec.Next(ctx, intp(100), other.ID)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if entry.ExerciseID != f.ex.ID || entry.DurationSec != 300 {
		t.Errorf("entry = %+v", entry)
	}
	if st.State != StateRunning || st.ExerciseID != other.ID || st.ElapsedSec != 0 {
		t.Errorf("status = %+v", st)
	}
}

func TestRecoverResumesAsPaused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rec.Start(ctx, f.ex.ID)
	f.clock.advance(4 * time.Minute)
	f.rec.Checkpoint(ctx)
	f.clock.advance(time.Hour)

	rec := NewRecorder(f.lib, quietLog(), WithClock(f.clock.now), WithJournal(f.jrnl))
	ok, err := rec.Recover(ctx)
	if err != nil || !ok {
		t.Fatalf("Recover = %v, %v", ok, err)
	}
	st := rec.Status()
	if st.State != StatePaused {
		t.Fatalf("state = %s, want paused", st.State)
	}
	if st.ElapsedSec != 240 {
		t.Errorf("elapsed = %d, want 240", st.ElapsedSec)
	}
	if f.lib.EntryCount() != 0 {
		t.Error("recovery must not write entries")
	}
}

func TestRecoverDropsMissingExercise(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.jrnl.Save(ctx, Session{ID: uuid.New(), ExerciseID: uuid.New(), State: StateRunning})

	rec := NewRecorder(f.lib, quietLog(), WithJournal(f.jrnl))
	ok, err := rec.Recover(ctx)
	if err != nil || ok {
		t.Fatalf("Recover = %v, %v; want false, nil", ok, err)
	}
	if s, _ := f.jrnl.Load(ctx); s != nil {
		t.Error("journal not cleared")
	}
}

func TestStateDBRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenStateDB(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	defer db.Close()

	if s, err := db.Load(ctx); err != nil || s != nil {
		t.Fatalf("empty Load = %v, %v", s, err)
	}

	want := Session{
		ID:          uuid.New(),
		ExerciseID:  uuid.New(),
		State:       StatePaused,
		StartedAt:   time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC),
		Accumulated: 90 * time.Second,
		BPM:         intp(110),
	}
	if err := db.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want.Accumulated = 120 * time.Second
	if err := db.Save(ctx, want); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := db.Load(ctx)
	if err != nil || got == nil {
		t.Fatalf("Load = %v, %v", got, err)
	}
	if got.ID != want.ID || got.Accumulated != want.Accumulated || got.BPM == nil || *got.BPM != 110 {
		t.Errorf("Load = %+v, want %+v", got, want)
	}

	if err := db.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if s, _ := db.Load(ctx); s != nil {
		t.Error("Load after Clear returned a session")
	}
}
