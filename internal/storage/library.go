package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
)

// Compile-time check: *DB satisfies practice.Store.
var _ practice.Store = (*DB)(nil)

const settingsKey = "practice"

// Load reads folders, exercises, workout entries and settings.
func (db *DB) Load(ctx context.Context) (*practice.Snapshot, error) {
	snap := &practice.Snapshot{}

	folderRows, err := db.Pool.Query(ctx,
		`SELECT id, name, position, created_at FROM folders ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("querying folders: %w", err)
	}
	defer folderRows.Close()

	index := make(map[uuid.UUID]int)
	for folderRows.Next() {
		var f models.Folder
		if err := folderRows.Scan(&f.ID, &f.Name, &f.Position, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning folder: %w", err)
		}
		f.ExerciseIDs = []uuid.UUID{}
		index[f.ID] = len(snap.Folders)
		snap.Folders = append(snap.Folders, f)
	}
	if err := folderRows.Err(); err != nil {
		return nil, err
	}

	exRows, err := db.Pool.Query(ctx,
		`SELECT id, name, folder_id, link, note, created_at
		 FROM exercises
		 ORDER BY folder_id, position, created_at`)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var e models.Exercise
		if err := exRows.Scan(&e.ID, &e.Name, &e.FolderID, &e.Link, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		snap.Exercises = append(snap.Exercises, e)
		if i, ok := index[e.FolderID]; ok {
			snap.Folders[i].ExerciseIDs = append(snap.Folders[i].ExerciseIDs, e.ID)
		}
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	entryRows, err := db.Pool.Query(ctx,
		`SELECT id, exercise_id, date, duration_sec, bpm
		 FROM workout_entries
		 ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying workout entries: %w", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		var e models.WorkoutEntry
		if err := entryRows.Scan(&e.ID, &e.ExerciseID, &e.Date, &e.DurationSec, &e.BPM); err != nil {
			return nil, fmt.Errorf("scanning workout entry: %w", err)
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := entryRows.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err = db.Pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, settingsKey).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("querying settings: %w", err)
	default:
		var s models.Settings
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decoding settings: %w", err)
		}
		snap.Settings = &s
	}

	return snap, nil
}

// Apply executes a change in a single transaction.
func (db *DB) Apply(ctx context.Context, c practice.Change) error {
	stmts, err := planChange(c)
	if err != nil {
		return err
	}
	return db.execAll(ctx, stmts)
}

// planChange orders a change so foreign keys hold at every step: entries go
// before their exercises are deleted, folders exist before exercises point at
// them, and exercises leave a folder before it is deleted.
func planChange(c practice.Change) ([]statement, error) {
	var out []statement

	if len(c.DeleteEntries) > 0 {
		out = append(out, statement{
			what: "deleting workout entries",
			sql:  `DELETE FROM workout_entries WHERE id = ANY($1::uuid[])`,
			args: []any{uuidStrings(c.DeleteEntries)},
		})
	}
	for _, f := range c.PutFolders {
		out = append(out, statement{
			what: "upserting folder",
			sql: `INSERT INTO folders (id, name, position, created_at)
			 VALUES ($1, $2, $3, COALESCE($4::timestamptz, NOW()))
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, position = EXCLUDED.position`,
			args: []any{f.ID.String(), f.Name, f.Position, nullTime(f.CreatedAt)},
		})
	}
	for _, e := range c.PutExercises {
		out = append(out, statement{
			what: "upserting exercise",
			sql: `INSERT INTO exercises (id, name, folder_id, link, note, created_at)
			 VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, folder_id = EXCLUDED.folder_id,
			 link = EXCLUDED.link, note = EXCLUDED.note`,
			args: []any{e.ID.String(), e.Name, e.FolderID.String(), e.Link, e.Note, nullTime(e.CreatedAt)},
		})
	}
	deleted := make(map[uuid.UUID]bool, len(c.DeleteExercises))
	for _, id := range c.DeleteExercises {
		deleted[id] = true
	}
	for _, f := range c.PutFolders {
		for pos, id := range f.ExerciseIDs {
			if deleted[id] {
				return nil, fmt.Errorf("folder %s lists exercise %s that the same change deletes", f.ID, id)
			}
			out = append(out, statement{
				what: "positioning exercise",
				sql:  `UPDATE exercises SET folder_id = $1, position = $2 WHERE id = $3`,
				args: []any{f.ID.String(), pos, id.String()},
			})
		}
	}
	if len(c.DeleteExercises) > 0 {
		out = append(out, statement{
			what: "deleting exercises",
			sql:  `DELETE FROM exercises WHERE id = ANY($1::uuid[])`,
			args: []any{uuidStrings(c.DeleteExercises)},
		})
	}
	if len(c.DeleteFolders) > 0 {
		out = append(out, statement{
			what: "deleting folders",
			sql:  `DELETE FROM folders WHERE id = ANY($1::uuid[])`,
			args: []any{uuidStrings(c.DeleteFolders)},
		})
	}
	for _, e := range c.PutEntries {
		var b *int
		if e.BPM != nil {
			v := *e.BPM
			b = &v
		}
		out = append(out, statement{
			what: "inserting workout entry",
			sql: `INSERT INTO workout_entries (id, exercise_id, date, duration_sec, bpm)
			 VALUES ($1, $2, $3, $4, $5)`,
			args: []any{e.ID.String(), e.ExerciseID.String(), e.Date, e.DurationSec, b},
		})
	}
	if c.Settings != nil {
		raw, err := json.Marshal(c.Settings)
		if err != nil {
			return nil, fmt.Errorf("encoding settings: %w", err)
		}
		out = append(out, statement{
			what: "saving settings",
			sql: `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			args: []any{settingsKey, raw},
		})
	}
	return out, nil
}

// nullTime lets the column default apply to unset timestamps.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
