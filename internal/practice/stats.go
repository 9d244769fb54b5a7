package practice

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/stats"
)

// ExerciseStats summarises one exercise against the current clock.
func (l *Library) ExerciseStats(id uuid.UUID) (models.ExerciseStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.exercises[id]; !ok {
		return models.ExerciseStats{}, fmt.Errorf("exercise %s: %w", id, ErrExerciseNotFound)
	}
	return stats.ForExerciseStats(l.allEntries(), id, l.settings.InactivityDays, l.now()), nil
}

// Chart returns the exercise's per-day BPM progression.
func (l *Library) Chart(id uuid.UUID) ([]models.ChartPoint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.exercises[id]; !ok {
		return nil, fmt.Errorf("exercise %s: %w", id, ErrExerciseNotFound)
	}
	return stats.Chart(l.allEntries(), id, l.loc), nil
}

// PersonalRecord returns the exercise's best BPM, nil when undefined.
func (l *Library) PersonalRecord(id uuid.UUID) (*int, error) {
	ex, err := l.Exercise(id)
	if err != nil {
		return nil, err
	}
	return ex.PersonalRecord, nil
}

// IsInactive evaluates the inactivity flag now.
func (l *Library) IsInactive(id uuid.UUID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.exercises[id]; !ok {
		return false, fmt.Errorf("exercise %s: %w", id, ErrExerciseNotFound)
	}
	return stats.IsInactive(l.allEntries(), id, l.settings.InactivityDays, l.now()), nil
}

// InactiveExercises lists exercises currently flagged inactive, in folder order.
func (l *Library) InactiveExercises() []models.Exercise {
	var out []models.Exercise
	for _, ov := range l.Overview() {
		if ov.Stats.Inactive {
			out = append(out, ov.Exercise)
		}
	}
	return out
}

// Overview returns every exercise with its statistics, in folder order.
func (l *Library) Overview() []models.ExerciseOverview {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.allEntries()
	now := l.now()
	var out []models.ExerciseOverview
	for _, f := range l.sortedFolders() {
		for _, id := range f.ExerciseIDs {
			ex, ok := l.exercises[id]
			if !ok {
				continue
			}
			out = append(out, models.ExerciseOverview{
				Exercise:   l.withRecord(ex),
				FolderName: f.Name,
				Stats:      stats.ForExerciseStats(entries, id, l.settings.InactivityDays, now),
			})
		}
	}
	return out
}

// DailySummary aggregates the calendar day of date, as written, in the
// library's location.
func (l *Library) DailySummary(date time.Time) models.DailySummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return stats.Daily(l.allEntries(), models.CalendarDay(date, l.loc))
}

// History returns all practice grouped by day, most recent first.
func (l *Library) History() []models.DailySummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return stats.History(l.allEntries(), l.loc)
}

// TotalPracticeSec sums the whole workout log.
func (l *Library) TotalPracticeSec() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return stats.TotalSec(l.allEntries())
}

// ExerciseNames maps exercise IDs to names, for renderers.
func (l *Library) ExerciseNames() map[uuid.UUID]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make(map[uuid.UUID]string, len(l.exercises))
	for id, ex := range l.exercises {
		names[id] = ex.Name
	}
	return names
}

func (l *Library) allEntries() []models.WorkoutEntry {
	return l.filterEntries(EntryFilter{})
}
