package practice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

// ExerciseInput describes a new exercise. A nil FolderID files it as Unfiled.
type ExerciseInput struct {
	Name     string    `json:"name"`
	FolderID uuid.UUID `json:"folder_id"`
	Link     string    `json:"link"`
	Note     string    `json:"note"`
}

// ExerciseUpdate patches an exercise. Nil fields are left unchanged.
type ExerciseUpdate struct {
	Name *string `json:"name"`
	Link *string `json:"link"`
	Note *string `json:"note"`
}

// Exercises returns every exercise in folder order, then child order.
func (l *Library) Exercises() []models.Exercise {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Exercise, 0, len(l.exercises))
	for _, f := range l.sortedFolders() {
		for _, id := range f.ExerciseIDs {
			if ex, ok := l.exercises[id]; ok {
				out = append(out, l.withRecord(ex))
			}
		}
	}
	return out
}

// Exercise returns one exercise with its personal record.
func (l *Library) Exercise(id uuid.UUID) (models.Exercise, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ex, ok := l.exercises[id]
	if !ok {
		return models.Exercise{}, fmt.Errorf("exercise %s: %w", id, ErrExerciseNotFound)
	}
	return l.withRecord(ex), nil
}

// ExerciseByName finds an exercise by case-insensitive name.
func (l *Library) ExerciseByName(name string) (models.Exercise, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	name = strings.TrimSpace(name)
	for _, ex := range l.exercises {
		if strings.EqualFold(ex.Name, name) {
			return l.withRecord(ex), true
		}
	}
	return models.Exercise{}, false
}

// CreateExercise adds an exercise at the end of its folder.
func (l *Library) CreateExercise(ctx context.Context, in ExerciseInput) (models.Exercise, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.Exercise{}, fmt.Errorf("exercise name is empty: %w", ErrInvalid)
	}
	folderID := in.FolderID
	if folderID == uuid.Nil {
		folderID = models.UnfiledFolderID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.folders[folderID]
	if !ok {
		return models.Exercise{}, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}
	if l.exerciseNameTaken(name, uuid.Nil) {
		return models.Exercise{}, fmt.Errorf("exercise %q: %w", name, ErrDuplicateName)
	}

	ex := models.Exercise{
		ID:        uuid.New(),
		Name:      name,
		FolderID:  folderID,
		Link:      strings.TrimSpace(in.Link),
		Note:      strings.TrimSpace(in.Note),
		CreatedAt: l.now(),
	}
	f = f.Clone()
	f.ExerciseIDs = append(f.ExerciseIDs, ex.ID)

	if err := l.commit(ctx, Change{PutExercises: []models.Exercise{ex}, PutFolders: []models.Folder{f}}); err != nil {
		return models.Exercise{}, err
	}
	return ex, nil
}

// UpdateExercise edits an exercise's name, link or note.
func (l *Library) UpdateExercise(ctx context.Context, id uuid.UUID, upd ExerciseUpdate) (models.Exercise, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ex, ok := l.exercises[id]
	if !ok {
		return models.Exercise{}, fmt.Errorf("exercise %s: %w", id, ErrExerciseNotFound)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return models.Exercise{}, fmt.Errorf("exercise name is empty: %w", ErrInvalid)
		}
		if l.exerciseNameTaken(name, id) {
			return models.Exercise{}, fmt.Errorf("exercise %q: %w", name, ErrDuplicateName)
		}
		ex.Name = name
	}
	if upd.Link != nil {
		ex.Link = strings.TrimSpace(*upd.Link)
	}
	if upd.Note != nil {
		ex.Note = strings.TrimSpace(*upd.Note)
	}
	if err := l.commit(ctx, Change{PutExercises: []models.Exercise{ex}}); err != nil {
		return models.Exercise{}, err
	}
	return l.withRecord(l.exercises[id]), nil
}

// DeleteExercise removes an exercise. When it has workout entries, confirm
// must be true and the entries are deleted with it; otherwise nothing changes
// and ErrConfirmationRequired is returned.
func (l *Library) DeleteExercise(ctx context.Context, id uuid.UUID, confirm bool) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ex, ok := l.exercises[id]
	if !ok {
		return 0, fmt.Errorf("exercise %s: %w", id, ErrExerciseNotFound)
	}

	var entryIDs []uuid.UUID
	for eid, e := range l.entries {
		if e.ExerciseID == id {
			entryIDs = append(entryIDs, eid)
		}
	}
	if len(entryIDs) > 0 && !confirm {
		return 0, fmt.Errorf("exercise %q has %d workout entries: %w", ex.Name, len(entryIDs), ErrConfirmationRequired)
	}

	f := l.folders[ex.FolderID].Clone()
	f.ExerciseIDs = removeID(f.ExerciseIDs, id)

	c := Change{
		DeleteEntries:   entryIDs,
		DeleteExercises: []uuid.UUID{id},
		PutFolders:      []models.Folder{f},
	}
	if err := l.commit(ctx, c); err != nil {
		return 0, err
	}
	l.log.Info("exercise deleted", "exercise", ex.Name, "entries_deleted", len(entryIDs))
	return len(entryIDs), nil
}

// MoveExercise files an exercise under folderID at position. A negative or
// out-of-range position appends. Moving within the same folder reorders it.
// Both folders' child lists change in the same Change.
func (l *Library) MoveExercise(ctx context.Context, id, folderID uuid.UUID, position int) (models.Exercise, error) {
	if folderID == uuid.Nil {
		folderID = models.UnfiledFolderID
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ex, ok := l.exercises[id]
	if !ok {
		return models.Exercise{}, fmt.Errorf("exercise %s: %w", id, ErrExerciseNotFound)
	}
	to, ok := l.folders[folderID]
	if !ok {
		return models.Exercise{}, fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
	}

	var c Change
	if ex.FolderID == folderID {
		to = to.Clone()
		to.ExerciseIDs = insertID(removeID(to.ExerciseIDs, id), id, position)
		c.PutFolders = []models.Folder{to}
	} else {
		from := l.folders[ex.FolderID].Clone()
		from.ExerciseIDs = removeID(from.ExerciseIDs, id)
		to = to.Clone()
		to.ExerciseIDs = insertID(to.ExerciseIDs, id, position)
		ex.FolderID = folderID
		c.PutFolders = []models.Folder{from, to}
		c.PutExercises = []models.Exercise{ex}
	}

	if err := l.commit(ctx, c); err != nil {
		return models.Exercise{}, err
	}
	return l.withRecord(l.exercises[id]), nil
}

func (l *Library) exerciseNameTaken(name string, except uuid.UUID) bool {
	for id, ex := range l.exercises {
		if id != except && strings.EqualFold(ex.Name, name) {
			return true
		}
	}
	return false
}
