package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Journal persists the in-flight session so it survives a restart.
type Journal interface {
	Save(ctx context.Context, s Session) error
	// Load returns nil when no session is journaled.
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

// StateDB is a Journal in a local SQLite file.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS session_journal (
		slot       INTEGER PRIMARY KEY CHECK (slot = 1),
		session    TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// Save replaces the journaled session.
func (s *StateDB) Save(ctx context.Context, sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO session_journal (slot, session, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)`,
		string(raw),
	)
	return err
}

// Load reads the journaled session, if any.
func (s *StateDB) Load(ctx context.Context) (*Session, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT session FROM session_journal WHERE slot = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

// Clear removes the journaled session.
func (s *StateDB) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_journal`)
	return err
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// MemoryJournal keeps the session in memory, for tests.
type MemoryJournal struct {
	mu    sync.Mutex
	sess  *Session
	saves int
}

// Save replaces the journaled session.
func (m *MemoryJournal) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &s
	m.saves++
	return nil
}

// Load returns a copy of the journaled session, or nil when there is none.
func (m *MemoryJournal) Load(context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil, nil
	}
	s := *m.sess
	return &s, nil
}

// Clear forgets the journaled session.
func (m *MemoryJournal) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

// Saves counts calls to Save.
func (m *MemoryJournal) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
