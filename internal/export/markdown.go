// Package export renders the workout history as the "Guitar Exercises"
// markdown document and writes it to disk on demand or on a schedule.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
)

const (
	DefaultFilename = "Guitar Exercises.md"

	Title       = "# Guitar Exercises"
	DateLayout  = "02 January 2006"
	TableHeader = "| Exercise Name | Time  | BPM |"
	TableRule   = "| ------------------- | ------ | --- |"
	EmptyNote   = "Workout history is empty."
)

// Write renders days, which must be most recent first, to w. names maps
// exercise IDs to display names.
func Write(w io.Writer, days []models.DailySummary, names map[uuid.UUID]string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n\n", Title)

	if len(days) == 0 {
		fmt.Fprintf(bw, "%s\n", EmptyNote)
		return bw.Flush()
	}

	for _, day := range days {
		fmt.Fprintf(bw, "## %s\n\n", day.Date.Format(DateLayout))
		fmt.Fprintf(bw, "%s\n%s\n", TableHeader, TableRule)
		for _, e := range day.Entries {
			name, ok := names[e.ExerciseID]
			if !ok {
				name = e.ExerciseID.String()
			}
			fmt.Fprintf(bw, "| %s | %s | %s |\n", name, models.FormatClock(e.DurationSec), formatBPM(e.BPM))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// WriteFile writes the document to path through a temporary file in the same
// directory, so readers never see a partial export.
func WriteFile(path string, days []models.DailySummary, names map[uuid.UUID]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.md")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, days, names); err != nil {
		tmp.Close()
		return fmt.Errorf("writing export: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

func formatBPM(bpm *int) string {
	if bpm == nil {
		return "-"
	}
	return strconv.Itoa(*bpm)
}
