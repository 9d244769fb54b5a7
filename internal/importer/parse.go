package importer

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/meltforce/fretlog/internal/export"
	"github.com/meltforce/fretlog/internal/models"
)

// HistoryRow is one table row of the markdown history.
type HistoryRow struct {
	Day         time.Time
	Exercise    string
	DurationSec int64
	BPM         *int
	Line        int
}

// RowError describes a table row that could not be parsed.
type RowError struct {
	Line int
	Text string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Text, e.Err)
}

// ParseHistory reads the "Guitar Exercises" markdown. Day headings are
// interpreted in loc. Rows that cannot be parsed are returned separately and
// do not stop the parse.
func ParseHistory(r io.Reader, loc *time.Location) ([]HistoryRow, []RowError, error) {
	var (
		rows    []HistoryRow
		bad     []RowError
		day     time.Time
		haveDay bool
	)

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())

		if strings.HasPrefix(text, "## ") {
			d, err := time.ParseInLocation(export.DateLayout, strings.TrimSpace(text[3:]), loc)
			if err != nil {
				bad = append(bad, RowError{Line: line, Text: text, Err: fmt.Errorf("parsing day heading: %w", err)})
				haveDay = false
				continue
			}
			day, haveDay = d, true
			continue
		}
		if !haveDay || !strings.HasPrefix(text, "|") || strings.HasPrefix(text, "| ---") {
			continue
		}

		cells := strings.Split(strings.Trim(text, "|"), "|")
		if len(cells) < 3 {
			bad = append(bad, RowError{Line: line, Text: text, Err: fmt.Errorf("want 3 cells, got %d", len(cells))})
			continue
		}
		name := strings.TrimSpace(cells[0])
		if name == "" || name == "Exercise Name" || strings.HasPrefix(name, "-") {
			continue
		}

		sec, err := models.ParseClock(cells[1])
		if err != nil {
			bad = append(bad, RowError{Line: line, Text: text, Err: err})
			continue
		}
		bpm, err := parseBPM(cells[2])
		if err != nil {
			bad = append(bad, RowError{Line: line, Text: text, Err: err})
			continue
		}
		rows = append(rows, HistoryRow{Day: day, Exercise: name, DurationSec: sec, BPM: bpm, Line: line})
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading history: %w", err)
	}
	return rows, bad, nil
}

// parseBPM accepts digits, or "-" and "" for no tempo. Zero also means no
// tempo, since the old app stored whatever was typed.
func parseBPM(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("invalid bpm %q", s)
	}
	if n == 0 {
		return nil, nil
	}
	return &n, nil
}

// Structure is the legacy exercises.json layout.
type Structure struct {
	Folders []StructureFolder
	Root    []string
	Info    map[string]ExerciseInfo
}

// StructureFolder keeps folder order from the file.
type StructureFolder struct {
	Name      string
	Exercises []string
}

// ExerciseInfo is the per-exercise link and note.
type ExerciseInfo struct {
	Link string `json:"link"`
	Note string `json:"note"`
}

// ParseStructure decodes exercises.json, keeping the order of the "folders"
// object's keys.
func ParseStructure(data []byte) (*Structure, error) {
	var raw struct {
		Folders json.RawMessage         `json:"folders"`
		Root    []string                `json:"root"`
		Info    map[string]ExerciseInfo `json:"info"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding exercise structure: %w", err)
	}
	s := &Structure{Root: raw.Root, Info: raw.Info}
	if s.Info == nil {
		s.Info = map[string]ExerciseInfo{}
	}
	if len(raw.Folders) == 0 || string(raw.Folders) == "null" {
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Folders))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("decoding folders: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("decoding folders: want object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("decoding folders: %w", err)
		}
		name, _ := tok.(string)
		var exercises []string
		if err := dec.Decode(&exercises); err != nil {
			return nil, fmt.Errorf("decoding folder %q: %w", name, err)
		}
		s.Folders = append(s.Folders, StructureFolder{Name: name, Exercises: exercises})
	}
	return s, nil
}

// LegacySettings is the legacy settings.json layout.
type LegacySettings struct {
	StaleDays *int `json:"stale_days"`
}

// ParseSettings decodes settings.json.
func ParseSettings(data []byte) (*LegacySettings, error) {
	var s LegacySettings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return &s, nil
}
