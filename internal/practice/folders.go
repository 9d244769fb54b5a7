package practice

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

// Folders returns all folders ordered by position.
func (l *Library) Folders() []models.Folder {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sortedFolders()
}

func (l *Library) sortedFolders() []models.Folder {
	out := make([]models.Folder, 0, len(l.folders))
	for _, f := range l.folders {
		out = append(out, f.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Folder returns one folder.
func (l *Library) Folder(id uuid.UUID) (models.Folder, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.folders[id]
	if !ok {
		return models.Folder{}, fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	return f.Clone(), nil
}

// CreateFolder adds an empty folder after the existing ones.
func (l *Library) CreateFolder(ctx context.Context, name string) (models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Folder{}, fmt.Errorf("folder name is empty: %w", ErrInvalid)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.folderNameTaken(name, uuid.Nil) {
		return models.Folder{}, fmt.Errorf("folder %q: %w", name, ErrDuplicateName)
	}
	pos := 0
	for _, f := range l.folders {
		if f.Position >= pos {
			pos = f.Position + 1
		}
	}
	f := models.Folder{
		ID:          uuid.New(),
		Name:        name,
		Position:    pos,
		ExerciseIDs: []uuid.UUID{},
		CreatedAt:   l.now(),
	}
	if err := l.commit(ctx, Change{PutFolders: []models.Folder{f}}); err != nil {
		return models.Folder{}, err
	}
	return f, nil
}

// RenameFolder changes a folder's name.
func (l *Library) RenameFolder(ctx context.Context, id uuid.UUID, name string) (models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Folder{}, fmt.Errorf("folder name is empty: %w", ErrInvalid)
	}
	if id == models.UnfiledFolderID {
		return models.Folder{}, ErrProtectedFolder
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.folders[id]
	if !ok {
		return models.Folder{}, fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	if l.folderNameTaken(name, id) {
		return models.Folder{}, fmt.Errorf("folder %q: %w", name, ErrDuplicateName)
	}
	f = f.Clone()
	f.Name = name
	if err := l.commit(ctx, Change{PutFolders: []models.Folder{f}}); err != nil {
		return models.Folder{}, err
	}
	return f, nil
}

// DeleteFolder removes a folder. Its exercises are not deleted: they move,
// in their current order, to the end of the Unfiled folder.
func (l *Library) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	if id == models.UnfiledFolderID {
		return ErrProtectedFolder
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.folders[id]
	if !ok {
		return fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	unfiled := l.folders[models.UnfiledFolderID].Clone()

	c := Change{DeleteFolders: []uuid.UUID{id}}
	for _, exID := range f.ExerciseIDs {
		ex := l.exercises[exID]
		ex.FolderID = models.UnfiledFolderID
		c.PutExercises = append(c.PutExercises, ex)
		unfiled.ExerciseIDs = append(unfiled.ExerciseIDs, exID)
	}
	c.PutFolders = []models.Folder{unfiled}

	if err := l.commit(ctx, c); err != nil {
		return err
	}
	l.log.Info("folder deleted", "folder", f.Name, "reassigned", len(f.ExerciseIDs))
	return nil
}

// ReorderFolder sets the order of a folder's exercises. ids must list exactly
// the folder's current exercises.
func (l *Library) ReorderFolder(ctx context.Context, id uuid.UUID, ids []uuid.UUID) (models.Folder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.folders[id]
	if !ok {
		return models.Folder{}, fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	if !isPermutation(f.ExerciseIDs, ids) {
		return models.Folder{}, fmt.Errorf("order must list each exercise of the folder exactly once: %w", ErrInvalid)
	}
	f = f.Clone()
	f.ExerciseIDs = append([]uuid.UUID{}, ids...)
	if err := l.commit(ctx, Change{PutFolders: []models.Folder{f}}); err != nil {
		return models.Folder{}, err
	}
	return f, nil
}

func (l *Library) folderNameTaken(name string, except uuid.UUID) bool {
	for id, f := range l.folders {
		if id != except && strings.EqualFold(f.Name, name) {
			return true
		}
	}
	return false
}

func isPermutation(current, proposed []uuid.UUID) bool {
	if len(current) != len(proposed) {
		return false
	}
	want := make(map[uuid.UUID]int, len(current))
	for _, id := range current {
		want[id]++
	}
	for _, id := range proposed {
		if want[id] == 0 {
			return false
		}
		want[id]--
	}
	return true
}
