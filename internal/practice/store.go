package practice

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrExerciseNotFound     = errors.New("exercise not found")
	ErrInvalid              = errors.New("invalid input")
	ErrDuplicateName        = errors.New("name already in use")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrProtectedFolder      = errors.New("the Unfiled folder cannot be renamed or deleted")
)

// Snapshot is the full persisted state, as loaded at startup.
type Snapshot struct {
	Folders   []models.Folder
	Exercises []models.Exercise
	Entries   []models.WorkoutEntry
	Settings  *models.Settings
}

// Change is one atomic mutation. A Store applies all of it or none of it.
// Folders in PutFolders carry their complete, final child list.
type Change struct {
	PutFolders      []models.Folder
	PutExercises    []models.Exercise
	PutEntries      []models.WorkoutEntry
	DeleteFolders   []uuid.UUID
	DeleteExercises []uuid.UUID
	DeleteEntries   []uuid.UUID
	Settings        *models.Settings
}

// Empty reports whether the change does nothing.
func (c Change) Empty() bool {
	return len(c.PutFolders) == 0 && len(c.PutExercises) == 0 && len(c.PutEntries) == 0 &&
		len(c.DeleteFolders) == 0 && len(c.DeleteExercises) == 0 && len(c.DeleteEntries) == 0 &&
		c.Settings == nil
}

// Store persists the library. *storage.DB is the production implementation.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Apply(ctx context.Context, c Change) error
}

// DryRun wraps s so that loads go through and changes are discarded. A
// Library over it behaves normally for the life of the process.
func DryRun(s Store) Store {
	return dryRunStore{s}
}

type dryRunStore struct {
	Store
}

func (dryRunStore) Apply(context.Context, Change) error { return nil }
