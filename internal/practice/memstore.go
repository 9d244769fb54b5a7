package practice

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

// MemoryStore is a Store that keeps everything in process memory. It backs
// tests and dry runs.
type MemoryStore struct {
	mu        sync.Mutex
	folders   map[uuid.UUID]models.Folder
	exercises map[uuid.UUID]models.Exercise
	entries   map[uuid.UUID]models.WorkoutEntry
	settings  *models.Settings

	// FailNext, when set, is returned by the next Apply, which then changes nothing.
	FailNext error
	applies  int
}

// Compile-time check: *MemoryStore satisfies Store.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. A Library opened on it creates the
// Unfiled folder.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		folders:   make(map[uuid.UUID]models.Folder),
		exercises: make(map[uuid.UUID]models.Exercise),
		entries:   make(map[uuid.UUID]models.WorkoutEntry),
	}
}

// Load returns copies of everything stored.
func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &Snapshot{}
	for _, f := range m.folders {
		snap.Folders = append(snap.Folders, f.Clone())
	}
	for _, e := range m.exercises {
		snap.Exercises = append(snap.Exercises, e)
	}
	for _, e := range m.entries {
		snap.Entries = append(snap.Entries, e)
	}
	if m.settings != nil {
		s := *m.settings
		snap.Settings = &s
	}
	return snap, nil
}

// Apply applies c as a whole, or returns FailNext and changes nothing.
func (m *MemoryStore) Apply(ctx context.Context, c Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.FailNext; err != nil {
		m.FailNext = nil
		return err
	}
	m.applies++

	for _, id := range c.DeleteEntries {
		delete(m.entries, id)
	}
	for _, id := range c.DeleteExercises {
		delete(m.exercises, id)
	}
	for _, id := range c.DeleteFolders {
		delete(m.folders, id)
	}
	for _, f := range c.PutFolders {
		m.folders[f.ID] = f.Clone()
	}
	for _, e := range c.PutExercises {
		e.PersonalRecord = nil
		m.exercises[e.ID] = e
	}
	for _, e := range c.PutEntries {
		m.entries[e.ID] = e
	}
	if c.Settings != nil {
		s := *c.Settings
		m.settings = &s
	}
	return nil
}

// Applies returns how many changes have been applied successfully.
func (m *MemoryStore) Applies() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applies
}
