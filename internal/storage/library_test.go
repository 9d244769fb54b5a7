package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
)

func stmtIndex(stmts []statement, what string) int {
	for i, s := range stmts {
		if s.what == what {
			return i
		}
	}
	return -1
}

// TestPlanChangeOrder checks that deleting an exercise with entries while
// updating its folder runs in an order the foreign keys accept.
func TestPlanChangeOrder(t *testing.T) {
	folder := models.Folder{ID: uuid.New(), Name: "Scales", ExerciseIDs: []uuid.UUID{uuid.New()}}
	c := practice.Change{
		DeleteEntries:   []uuid.UUID{uuid.New(), uuid.New()},
		DeleteExercises: []uuid.UUID{uuid.New()},
		DeleteFolders:   []uuid.UUID{uuid.New()},
		PutFolders:      []models.Folder{folder},
		PutExercises:    []models.Exercise{{ID: folder.ExerciseIDs[0], Name: "Major", FolderID: folder.ID}},
		PutEntries:      []models.WorkoutEntry{{ID: uuid.New(), ExerciseID: folder.ExerciseIDs[0], Date: time.Now(), DurationSec: 60}},
		Settings:        &models.Settings{InactivityDays: 3},
	}

	stmts, err := planChange(c)
	if err != nil {
		t.Fatalf("planChange: %v", err)
	}

	order := []string{
		"deleting workout entries",
		"upserting folder",
		"upserting exercise",
		"positioning exercise",
		"deleting exercises",
		"deleting folders",
		"inserting workout entry",
		"saving settings",
	}
	prev := -1
	for _, what := range order {
		i := stmtIndex(stmts, what)
		if i < 0 {
			t.Fatalf("missing statement %q", what)
		}
		if i <= prev {
			t.Errorf("statement %q at %d, want after %d", what, i, prev)
		}
		prev = i
	}
}

func TestPlanChangeEmpty(t *testing.T) {
	stmts, err := planChange(practice.Change{})
	if err != nil {
		t.Fatalf("planChange: %v", err)
	}
	if len(stmts) != 0 {
		t.Errorf("got %d statements, want 0", len(stmts))
	}
}

func TestPlanChangePositions(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	folder := models.Folder{ID: uuid.New(), Name: "Chords", ExerciseIDs: []uuid.UUID{c, a, b}}

	stmts, err := planChange(practice.Change{PutFolders: []models.Folder{folder}})
	if err != nil {
		t.Fatalf("planChange: %v", err)
	}

	var got []string
	for _, s := range stmts {
		if s.what != "positioning exercise" {
			continue
		}
		if s.args[0] != folder.ID.String() {
			t.Errorf("folder arg = %v, want %s", s.args[0], folder.ID)
		}
		got = append(got, s.args[2].(string))
		if pos := s.args[1].(int); folder.ExerciseIDs[pos].String() != s.args[2] {
			t.Errorf("position %d holds %v", pos, s.args[2])
		}
	}
	want := []string{c.String(), a.String(), b.String()}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("positions = %v, want %v", got, want)
	}
}

func TestPlanChangeRejectsDeletedChild(t *testing.T) {
	id := uuid.New()
	_, err := planChange(practice.Change{
		PutFolders:      []models.Folder{{ID: uuid.New(), ExerciseIDs: []uuid.UUID{id}}},
		DeleteExercises: []uuid.UUID{id},
	})
	if err == nil {
		t.Fatal("expected error for folder listing a deleted exercise")
	}
}

func TestNullTime(t *testing.T) {
	if nullTime(time.Time{}) != nil {
		t.Error("zero time should map to nil")
	}
	now := time.Now()
	if got := nullTime(now); got == nil || !got.Equal(now) {
		t.Errorf("nullTime(now) = %v", got)
	}
}
