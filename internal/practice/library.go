// Package practice holds the exercise store and the workout log. A Library
// keeps the whole practice state in memory and writes every mutation through
// to a Store in a single atomic Change before updating its own view.
package practice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

// Library is the exercise store plus workout log.
type Library struct {
	mu    sync.RWMutex
	store Store
	log   *slog.Logger
	now   func() time.Time
	loc   *time.Location

	folders   map[uuid.UUID]models.Folder
	exercises map[uuid.UUID]models.Exercise
	entries   map[uuid.UUID]models.WorkoutEntry
	records   map[uuid.UUID]*int
	settings  models.Settings
}

// Option configures a Library.
type Option func(*Library)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Library) { l.now = now }
}

// WithLocation sets the zone that decides which calendar day an entry
// belongs to. The default is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(l *Library) {
		if loc != nil {
			l.loc = loc
		}
	}
}

// New loads the library from store. It creates the Unfiled folder when
// missing and repairs folder membership left inconsistent by older data.
// defaults applies until settings are saved.
func New(ctx context.Context, store Store, defaults models.Settings, log *slog.Logger, opts ...Option) (*Library, error) {
	l := &Library{
		store:     store,
		log:       log,
		now:       time.Now,
		loc:       time.Local,
		folders:   make(map[uuid.UUID]models.Folder),
		exercises: make(map[uuid.UUID]models.Exercise),
		entries:   make(map[uuid.UUID]models.WorkoutEntry),
		records:   make(map[uuid.UUID]*int),
		settings:  defaults,
	}
	for _, o := range opts {
		o(l)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading library: %w", err)
	}
	for _, f := range snap.Folders {
		l.folders[f.ID] = f.Clone()
	}
	for _, e := range snap.Exercises {
		e.PersonalRecord = nil
		l.exercises[e.ID] = e
	}
	for _, e := range snap.Entries {
		e.Date = e.Date.In(l.loc)
		l.entries[e.ID] = e
	}
	if snap.Settings != nil {
		l.settings = *snap.Settings
	}
	for id := range l.exercises {
		l.recomputeRecord(id)
	}

	if c := l.repair(); !c.Empty() {
		l.log.Warn("repairing library state",
			"folders", len(c.PutFolders), "exercises", len(c.PutExercises), "orphan_entries", len(c.DeleteEntries))
		if err := l.commit(ctx, c); err != nil {
			return nil, fmt.Errorf("repairing library: %w", err)
		}
	}

	l.log.Info("library loaded",
		"folders", len(l.folders), "exercises", len(l.exercises), "entries", len(l.entries))
	return l, nil
}

// repair builds the change that restores the folder invariants: Unfiled
// exists, every exercise is listed exactly once in its own folder, and no
// entry points at a missing exercise.
func (l *Library) repair() Change {
	var c Change
	touched := make(map[uuid.UUID]models.Folder)

	unfiled, ok := l.folders[models.UnfiledFolderID]
	if !ok {
		unfiled = models.Folder{
			ID:        models.UnfiledFolderID,
			Name:      models.UnfiledFolderName,
			Position:  0,
			CreatedAt: l.now(),
		}
		touched[unfiled.ID] = unfiled
	}
	folderOf := func(id uuid.UUID) models.Folder {
		if f, ok := touched[id]; ok {
			return f
		}
		if id == models.UnfiledFolderID {
			return unfiled
		}
		return l.folders[id].Clone()
	}

	// Drop dangling and duplicate children, and children filed elsewhere.
	for id, f := range l.folders {
		seen := make(map[uuid.UUID]bool)
		kept := f.ExerciseIDs[:0:0]
		for _, exID := range f.ExerciseIDs {
			ex, ok := l.exercises[exID]
			if !ok || seen[exID] || ex.FolderID != id {
				continue
			}
			seen[exID] = true
			kept = append(kept, exID)
		}
		if len(kept) != len(f.ExerciseIDs) {
			nf := folderOf(id)
			nf.ExerciseIDs = kept
			touched[id] = nf
		}
	}

	// File every exercise that no folder lists.
	ids := make([]uuid.UUID, 0, len(l.exercises))
	for id := range l.exercises {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, exID := range ids {
		ex := l.exercises[exID]
		target := ex.FolderID
		if _, ok := l.folders[target]; !ok {
			target = models.UnfiledFolderID
		}
		f := folderOf(target)
		if containsID(f.ExerciseIDs, exID) {
			continue
		}
		f.ExerciseIDs = append(f.ExerciseIDs, exID)
		touched[target] = f
		if target != ex.FolderID {
			ex.FolderID = target
			c.PutExercises = append(c.PutExercises, ex)
		}
	}

	for _, f := range touched {
		c.PutFolders = append(c.PutFolders, f)
	}
	for id, e := range l.entries {
		if _, ok := l.exercises[e.ExerciseID]; !ok {
			c.DeleteEntries = append(c.DeleteEntries, id)
		}
	}
	return c
}

// commit persists c and, only if that succeeds, applies it to memory.
// Callers hold l.mu for writing.
func (l *Library) commit(ctx context.Context, c Change) error {
	if c.Empty() {
		return nil
	}
	if err := l.store.Apply(ctx, c); err != nil {
		return fmt.Errorf("persisting change: %w", err)
	}

	affected := make(map[uuid.UUID]bool)
	for _, id := range c.DeleteEntries {
		if e, ok := l.entries[id]; ok {
			affected[e.ExerciseID] = true
			delete(l.entries, id)
		}
	}
	for _, id := range c.DeleteExercises {
		delete(l.exercises, id)
		delete(l.records, id)
	}
	for _, id := range c.DeleteFolders {
		delete(l.folders, id)
	}
	for _, f := range c.PutFolders {
		l.folders[f.ID] = f.Clone()
	}
	for _, e := range c.PutExercises {
		e.PersonalRecord = nil
		l.exercises[e.ID] = e
		affected[e.ID] = true
	}
	for _, e := range c.PutEntries {
		l.entries[e.ID] = e
		affected[e.ExerciseID] = true
	}
	if c.Settings != nil {
		l.settings = *c.Settings
	}
	for id := range affected {
		if _, ok := l.exercises[id]; ok {
			l.recomputeRecord(id)
		}
	}
	return nil
}

func (l *Library) recomputeRecord(exerciseID uuid.UUID) {
	var best *int
	for _, e := range l.entries {
		if e.ExerciseID != exerciseID || e.BPM == nil {
			continue
		}
		if best == nil || *e.BPM > *best {
			v := *e.BPM
			best = &v
		}
	}
	if best == nil {
		delete(l.records, exerciseID)
		return
	}
	l.records[exerciseID] = best
}

// withRecord returns ex with its derived personal record filled in.
func (l *Library) withRecord(ex models.Exercise) models.Exercise {
	if r, ok := l.records[ex.ID]; ok {
		v := *r
		ex.PersonalRecord = &v
	} else {
		ex.PersonalRecord = nil
	}
	return ex
}

// Location returns the zone calendar days are computed in.
func (l *Library) Location() *time.Location {
	return l.loc
}

// Settings returns the current practice settings.
func (l *Library) Settings() models.Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings
}

// UpdateSettings validates and persists s.
func (l *Library) UpdateSettings(ctx context.Context, s models.Settings) error {
	if s.InactivityDays < 0 {
		return fmt.Errorf("inactivity_days must not be negative: %w", ErrInvalid)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commit(ctx, Change{Settings: &s})
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func insertID(ids []uuid.UUID, id uuid.UUID, pos int) []uuid.UUID {
	if pos < 0 || pos > len(ids) {
		pos = len(ids)
	}
	out := make([]uuid.UUID, 0, len(ids)+1)
	out = append(out, ids[:pos]...)
	out = append(out, id)
	return append(out, ids[pos:]...)
}
