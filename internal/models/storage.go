package models

import (
	"time"

	"github.com/google/uuid"
)

// UnfiledFolderID is the well-known ID of the built-in folder that holds
// exercises without a user folder. It always exists.
var UnfiledFolderID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// UnfiledFolderName is the display name of the built-in folder.
const UnfiledFolderName = "Unfiled"

// Folder groups exercises. ExerciseIDs is ordered; the order is user-significant.
type Folder struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Position    int         `json:"position"`
	ExerciseIDs []uuid.UUID `json:"exercise_ids"`
	CreatedAt   time.Time   `json:"created_at"`
}

// IsUnfiled reports whether f is the built-in Unfiled folder.
func (f Folder) IsUnfiled() bool {
	return f.ID == UnfiledFolderID
}

// Clone returns a copy of f that shares no slices with it.
func (f Folder) Clone() Folder {
	c := f
	c.ExerciseIDs = append([]uuid.UUID(nil), f.ExerciseIDs...)
	return c
}

// Exercise is a practice item. PersonalRecord is derived from the workout log
// and never persisted.
type Exercise struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	FolderID       uuid.UUID `json:"folder_id"`
	Link           string    `json:"link,omitempty"`
	Note           string    `json:"note,omitempty"`
	PersonalRecord *int      `json:"personal_record,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// WorkoutEntry is one completed practice session. Entries are immutable.
type WorkoutEntry struct {
	ID          uuid.UUID `json:"id"`
	ExerciseID  uuid.UUID `json:"exercise_id"`
	Date        time.Time `json:"date"`
	DurationSec int64     `json:"duration_sec"`
	BPM         *int      `json:"bpm,omitempty"`
}

// Duration returns the entry's practice time.
func (e WorkoutEntry) Duration() time.Duration {
	return time.Duration(e.DurationSec) * time.Second
}

// Settings holds user-adjustable practice settings.
type Settings struct {
	// InactivityDays flags exercises not practiced for at least this many
	// days. Zero disables the flag.
	InactivityDays int `json:"inactivity_days"`
}

// DefaultSettings returns the settings used when nothing has been saved.
func DefaultSettings() Settings {
	return Settings{InactivityDays: 7}
}

// ChartPoint is one (day, BPM) sample of an exercise's progress chart.
type ChartPoint struct {
	Date time.Time `json:"date"`
	BPM  int       `json:"bpm"`
}

// DailySummary aggregates one calendar day of practice.
type DailySummary struct {
	Date          time.Time           `json:"date"`
	TotalSec      int64               `json:"total_sec"`
	ByExerciseSec map[uuid.UUID]int64 `json:"by_exercise_sec"`
	Entries       []WorkoutEntry      `json:"entries"`
}

// ExerciseStats summarises an exercise's workout history.
type ExerciseStats struct {
	ExerciseID     uuid.UUID  `json:"exercise_id"`
	Sessions       int        `json:"sessions"`
	TotalSec       int64      `json:"total_sec"`
	AverageBPM     int        `json:"average_bpm"`
	PersonalRecord *int       `json:"personal_record,omitempty"`
	LastPlayed     *time.Time `json:"last_played,omitempty"`
	Inactive       bool       `json:"inactive"`
}

// ExerciseOverview is an exercise joined with its derived statistics, the
// shape list views render.
type ExerciseOverview struct {
	Exercise
	FolderName string        `json:"folder_name"`
	Stats      ExerciseStats `json:"stats"`
}
