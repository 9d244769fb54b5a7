package practice

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

// EntryInput describes a completed practice session. A zero Date means now.
type EntryInput struct {
	ExerciseID  uuid.UUID `json:"exercise_id"`
	Date        time.Time `json:"date"`
	DurationSec int64     `json:"duration_sec"`
	BPM         *int      `json:"bpm,omitempty"`
}

// EntryFilter selects entries. Zero fields do not filter; the date range is
// [Start, End).
type EntryFilter struct {
	ExerciseID uuid.UUID
	Start      time.Time
	End        time.Time
}

func (f EntryFilter) match(e models.WorkoutEntry) bool {
	if f.ExerciseID != uuid.Nil && e.ExerciseID != f.ExerciseID {
		return false
	}
	if !f.Start.IsZero() && e.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !e.Date.Before(f.End) {
		return false
	}
	return true
}

// RecordEntry appends a workout entry. It fails without writing anything when
// the exercise does not exist.
func (l *Library) RecordEntry(ctx context.Context, in EntryInput) (models.WorkoutEntry, error) {
	if in.DurationSec < 0 {
		return models.WorkoutEntry{}, fmt.Errorf("duration must not be negative: %w", ErrInvalid)
	}
	if in.BPM != nil && *in.BPM <= 0 {
		return models.WorkoutEntry{}, fmt.Errorf("bpm must be positive: %w", ErrInvalid)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.exercises[in.ExerciseID]; !ok {
		return models.WorkoutEntry{}, fmt.Errorf("recording entry for %s: %w", in.ExerciseID, ErrExerciseNotFound)
	}
	date := in.Date
	if date.IsZero() {
		date = l.now()
	}
	date = date.In(l.loc)
	e := models.WorkoutEntry{
		ID:          uuid.New(),
		ExerciseID:  in.ExerciseID,
		Date:        date,
		DurationSec: in.DurationSec,
	}
	if in.BPM != nil {
		v := *in.BPM
		e.BPM = &v
	}
	if err := l.commit(ctx, Change{PutEntries: []models.WorkoutEntry{e}}); err != nil {
		return models.WorkoutEntry{}, err
	}
	return e, nil
}

// DeleteEntry removes one entry and recomputes its exercise's personal record.
func (l *Library) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return l.commit(ctx, Change{DeleteEntries: []uuid.UUID{id}})
}

// DeleteDay removes every entry on the calendar day of date, as written,
// in the library's location. confirm must be true when there is anything to
// delete. It returns the number removed.
func (l *Library) DeleteDay(ctx context.Context, date time.Time, confirm bool) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := models.CalendarDay(date, l.loc)
	var ids []uuid.UUID
	for id, e := range l.entries {
		if models.DayIn(e.Date, l.loc).Equal(day) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if !confirm {
		return 0, fmt.Errorf("day %s has %d workout entries: %w", date.Format("2006-01-02"), len(ids), ErrConfirmationRequired)
	}
	if err := l.commit(ctx, Change{DeleteEntries: ids}); err != nil {
		return 0, err
	}
	l.log.Info("day deleted", "date", date.Format("2006-01-02"), "entries", len(ids))
	return len(ids), nil
}

// Entries returns the entries matching f ordered by date.
func (l *Library) Entries(f EntryFilter) []models.WorkoutEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filterEntries(f)
}

func (l *Library) filterEntries(f EntryFilter) []models.WorkoutEntry {
	var out []models.WorkoutEntry
	for _, e := range l.entries {
		if f.match(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// EntryCount returns the size of the workout log.
func (l *Library) EntryCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
