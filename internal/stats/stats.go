// Package stats derives charts, records, inactivity flags and summaries from
// workout entries. Every function is pure: callers pass the entries and,
// where relevant, the current time.
package stats

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

// ForExercise returns the entries of one exercise ordered by date.
func ForExercise(entries []models.WorkoutEntry, exerciseID uuid.UUID) []models.WorkoutEntry {
	var out []models.WorkoutEntry
	for _, e := range entries {
		if e.ExerciseID == exerciseID {
			out = append(out, e)
		}
	}
	sortByDate(out)
	return out
}

// Chart returns one point per practice day that has a BPM value, using the
// day's highest BPM, ordered by date. Days are calendar days in loc.
func Chart(entries []models.WorkoutEntry, exerciseID uuid.UUID, loc *time.Location) []models.ChartPoint {
	var points []models.ChartPoint
	for _, e := range ForExercise(entries, exerciseID) {
		if e.BPM == nil {
			continue
		}
		day := models.DayIn(e.Date, loc)
		if n := len(points); n > 0 && points[n-1].Date.Equal(day) {
			if *e.BPM > points[n-1].BPM {
				points[n-1].BPM = *e.BPM
			}
			continue
		}
		points = append(points, models.ChartPoint{Date: day, BPM: *e.BPM})
	}
	return points
}

// PersonalRecord returns the highest BPM recorded for the exercise, or nil
// when no entry carries a BPM.
func PersonalRecord(entries []models.WorkoutEntry, exerciseID uuid.UUID) *int {
	var best *int
	for _, e := range entries {
		if e.ExerciseID != exerciseID || e.BPM == nil {
			continue
		}
		if best == nil || *e.BPM > *best {
			v := *e.BPM
			best = &v
		}
	}
	return best
}

// LastPlayed returns the date of the exercise's most recent entry.
func LastPlayed(entries []models.WorkoutEntry, exerciseID uuid.UUID) (time.Time, bool) {
	var last time.Time
	found := false
	for _, e := range entries {
		if e.ExerciseID != exerciseID {
			continue
		}
		if !found || e.Date.After(last) {
			last = e.Date
			found = true
		}
	}
	return last, found
}

// IsInactive reports whether the exercise's last entry is at least
// thresholdDays whole days before now. An exercise never practiced is
// inactive. A threshold of zero disables the flag.
func IsInactive(entries []models.WorkoutEntry, exerciseID uuid.UUID, thresholdDays int, now time.Time) bool {
	if thresholdDays <= 0 {
		return false
	}
	last, ok := LastPlayed(entries, exerciseID)
	if !ok {
		return true
	}
	days := int(now.Sub(last) / (24 * time.Hour))
	return days >= thresholdDays
}

// Daily aggregates the entries that fall on the calendar day of date, read
// in date's location. Entries are placed by instant, not by their own zone.
func Daily(entries []models.WorkoutEntry, date time.Time) models.DailySummary {
	day := models.Day(date)
	sum := models.DailySummary{
		Date:          day,
		ByExerciseSec: make(map[uuid.UUID]int64),
	}
	for _, e := range entries {
		if !models.DayIn(e.Date, day.Location()).Equal(day) {
			continue
		}
		sum.TotalSec += e.DurationSec
		sum.ByExerciseSec[e.ExerciseID] += e.DurationSec
		sum.Entries = append(sum.Entries, e)
	}
	sortByDate(sum.Entries)
	return sum
}

// History groups all entries by calendar day in loc, most recent day first.
// Entries within a day stay in chronological order.
func History(entries []models.WorkoutEntry, loc *time.Location) []models.DailySummary {
	byDay := make(map[int64]*models.DailySummary)
	var days []int64

	sorted := append([]models.WorkoutEntry(nil), entries...)
	sortByDate(sorted)

	for _, e := range sorted {
		day := models.DayIn(e.Date, loc)
		key := day.Unix()
		s, ok := byDay[key]
		if !ok {
			s = &models.DailySummary{Date: day, ByExerciseSec: make(map[uuid.UUID]int64)}
			byDay[key] = s
			days = append(days, key)
		}
		s.TotalSec += e.DurationSec
		s.ByExerciseSec[e.ExerciseID] += e.DurationSec
		s.Entries = append(s.Entries, e)
	}

	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })
	out := make([]models.DailySummary, 0, len(days))
	for _, d := range days {
		out = append(out, *byDay[d])
	}
	return out
}

// TotalSec sums the duration of every entry.
func TotalSec(entries []models.WorkoutEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.DurationSec
	}
	return total
}

// ForExerciseStats summarises one exercise.
func ForExerciseStats(entries []models.WorkoutEntry, exerciseID uuid.UUID, thresholdDays int, now time.Time) models.ExerciseStats {
	st := models.ExerciseStats{ExerciseID: exerciseID}
	bpmSum, bpmCount := 0, 0
	for _, e := range entries {
		if e.ExerciseID != exerciseID {
			continue
		}
		st.Sessions++
		st.TotalSec += e.DurationSec
		if e.BPM != nil {
			bpmSum += *e.BPM
			bpmCount++
		}
	}
	if bpmCount > 0 {
		st.AverageBPM = bpmSum / bpmCount
	}
	st.PersonalRecord = PersonalRecord(entries, exerciseID)
	if last, ok := LastPlayed(entries, exerciseID); ok {
		st.LastPlayed = &last
	}
	st.Inactive = IsInactive(entries, exerciseID, thresholdDays, now)
	return st
}

func sortByDate(entries []models.WorkoutEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
}
