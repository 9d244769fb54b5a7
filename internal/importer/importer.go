// Package importer loads data written by the legacy desktop tracker: the
// "Guitar Exercises.md" history, exercises.json and settings.json.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/export"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
)

const (
	HistoryFile   = export.DefaultFilename
	StructureFile = "exercises.json"
	SettingsFile  = "settings.json"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	FoldersCreated    int
	ExercisesCreated  int
	ExercisesUpdated  int
	EntriesInserted   int
	EntriesDuplicated int
	RowsRejected      int
	SettingsApplied   bool
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.FilesProcessed += o.FilesProcessed
	s.FilesSkipped += o.FilesSkipped
	s.FilesErrored += o.FilesErrored
	s.FoldersCreated += o.FoldersCreated
	s.ExercisesCreated += o.ExercisesCreated
	s.ExercisesUpdated += o.ExercisesUpdated
	s.EntriesInserted += o.EntriesInserted
	s.EntriesDuplicated += o.EntriesDuplicated
	s.RowsRejected += o.RowsRejected
	s.SettingsApplied = s.SettingsApplied || o.SettingsApplied
}

// Importer writes legacy data into a practice library.
type Importer struct {
	lib   *practice.Library
	log   *slog.Logger
	loc   *time.Location
	stats Stats
}

// New creates an Importer. Day headings in the history are read in loc; nil
// means the library's location.
func New(lib *practice.Library, log *slog.Logger, loc *time.Location) *Importer {
	if loc == nil {
		loc = lib.Location()
	}
	return &Importer{lib: lib, log: log, loc: loc}
}

// Import processes the legacy files found in dir. Missing files are skipped.
// Settings go first, then the folder structure, then the history, so history
// rows land in the folders they belong to.
func (imp *Importer) Import(ctx context.Context, dir string) (*Stats, error) {
	for _, name := range []string{SettingsFile, StructureFile, HistoryFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			imp.stats.FilesSkipped++
			continue
		}
		if err := imp.ImportFile(ctx, path); err != nil {
			return &imp.stats, err
		}
	}
	return &imp.stats, nil
}

// ImportFile processes one legacy file, chosen by its base name.
func (imp *Importer) ImportFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		imp.stats.FilesErrored++
		return fmt.Errorf("reading %s: %w", path, err)
	}

	switch filepath.Base(path) {
	case SettingsFile:
		err = imp.importSettings(ctx, data)
	case StructureFile:
		err = imp.importStructure(ctx, data)
	case HistoryFile:
		err = imp.importHistory(ctx, data)
	default:
		imp.stats.FilesSkipped++
		imp.log.Info("skipping unrecognised file", "file", path)
		return nil
	}
	if err != nil {
		imp.stats.FilesErrored++
		return fmt.Errorf("importing %s: %w", filepath.Base(path), err)
	}
	imp.stats.FilesProcessed++
	return nil
}

// Stats returns the counts so far.
func (imp *Importer) Stats() Stats {
	return imp.stats
}

func (imp *Importer) importSettings(ctx context.Context, data []byte) error {
	legacy, err := ParseSettings(data)
	if err != nil {
		return err
	}
	if legacy.StaleDays == nil {
		return nil
	}
	s := imp.lib.Settings()
	if s.InactivityDays == *legacy.StaleDays {
		return nil
	}
	s.InactivityDays = *legacy.StaleDays
	if err := imp.lib.UpdateSettings(ctx, s); err != nil {
		return err
	}
	imp.stats.SettingsApplied = true
	imp.log.Info("settings imported", "inactivity_days", s.InactivityDays)
	return nil
}

func (imp *Importer) importStructure(ctx context.Context, data []byte) error {
	st, err := ParseStructure(data)
	if err != nil {
		return err
	}

	for _, sf := range st.Folders {
		folder, err := imp.folderByName(ctx, sf.Name)
		if err != nil {
			return err
		}
		for _, name := range sf.Exercises {
			if err := imp.ensureExercise(ctx, name, folder.ID, st.Info[name]); err != nil {
				return err
			}
		}
	}
	for _, name := range st.Root {
		if err := imp.ensureExercise(ctx, name, models.UnfiledFolderID, st.Info[name]); err != nil {
			return err
		}
	}
	return nil
}

func (imp *Importer) folderByName(ctx context.Context, name string) (models.Folder, error) {
	for _, f := range imp.lib.Folders() {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			return f, nil
		}
	}
	f, err := imp.lib.CreateFolder(ctx, name)
	if err != nil {
		return models.Folder{}, fmt.Errorf("creating folder %q: %w", name, err)
	}
	imp.stats.FoldersCreated++
	return f, nil
}

// ensureExercise creates the exercise in folderID when missing. An existing
// exercise keeps its folder; its link and note are filled from info when
// they differ.
func (imp *Importer) ensureExercise(ctx context.Context, name string, folderID uuid.UUID, info ExerciseInfo) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	ex, ok := imp.lib.ExerciseByName(name)
	if !ok {
		_, err := imp.lib.CreateExercise(ctx, practice.ExerciseInput{
			Name:     name,
			FolderID: folderID,
			Link:     info.Link,
			Note:     info.Note,
		})
		if err != nil {
			return fmt.Errorf("creating exercise %q: %w", name, err)
		}
		imp.stats.ExercisesCreated++
		return nil
	}

	var upd practice.ExerciseUpdate
	if link := strings.TrimSpace(info.Link); link != "" && link != ex.Link {
		upd.Link = &link
	}
	if note := strings.TrimSpace(info.Note); note != "" && note != ex.Note {
		upd.Note = &note
	}
	if upd.Link == nil && upd.Note == nil {
		return nil
	}
	if _, err := imp.lib.UpdateExercise(ctx, ex.ID, upd); err != nil {
		return fmt.Errorf("updating exercise %q: %w", name, err)
	}
	imp.stats.ExercisesUpdated++
	return nil
}

type entryKey struct {
	exercise uuid.UUID
	day      string
	sec      int64
	bpm      int
}

func keyOf(exercise uuid.UUID, day time.Time, sec int64, bpm *int) entryKey {
	k := entryKey{exercise: exercise, day: day.Format("2006-01-02"), sec: sec}
	if bpm != nil {
		k.bpm = *bpm
	}
	return k
}

// importHistory inserts history rows. Rows already present, matched on
// exercise, day, duration and bpm, are skipped; a row repeated n times in
// the file ends up n times in the log.
func (imp *Importer) importHistory(ctx context.Context, data []byte) error {
	rows, bad, err := ParseHistory(strings.NewReader(string(data)), imp.loc)
	if err != nil {
		return err
	}
	for _, b := range bad {
		imp.log.Warn("rejected history row", "line", b.Line, "error", b.Err)
	}
	imp.stats.RowsRejected += len(bad)

	existing := make(map[entryKey]int)
	for _, e := range imp.lib.Entries(practice.EntryFilter{}) {
		existing[keyOf(e.ExerciseID, e.Date.In(imp.loc), e.DurationSec, e.BPM)]++
	}

	// Rows within a day get one-second offsets so their order survives.
	offsets := make(map[string]int)
	for _, row := range rows {
		ex, ok := imp.lib.ExerciseByName(row.Exercise)
		if !ok {
			ex, err = imp.lib.CreateExercise(ctx, practice.ExerciseInput{Name: row.Exercise})
			if err != nil {
				return fmt.Errorf("line %d: creating exercise %q: %w", row.Line, row.Exercise, err)
			}
			imp.stats.ExercisesCreated++
		}

		dayStr := row.Day.Format("2006-01-02")
		offset := offsets[dayStr]
		offsets[dayStr]++

		k := keyOf(ex.ID, row.Day, row.DurationSec, row.BPM)
		if existing[k] > 0 {
			existing[k]--
			imp.stats.EntriesDuplicated++
			continue
		}

		in := practice.EntryInput{
			ExerciseID:  ex.ID,
			Date:        row.Day.Add(time.Duration(offset) * time.Second),
			DurationSec: row.DurationSec,
			BPM:         row.BPM,
		}
		if _, err := imp.lib.RecordEntry(ctx, in); err != nil {
			return fmt.Errorf("line %d: recording entry: %w", row.Line, err)
		}
		imp.stats.EntriesInserted++
	}
	return nil
}
