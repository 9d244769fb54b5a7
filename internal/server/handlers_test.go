package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/meltforce/fretlog/internal/metronome"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
	"github.com/meltforce/fretlog/internal/session"
)

type testEnv struct {
	srv   *Server
	lib   *practice.Library
	hub   *Hub
	metro *metronome.Metronome
}

func newTestEnv(t *testing.T, apiKey string, opts ...practice.Option) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	lib, err := practice.New(context.Background(), practice.NewMemoryStore(), models.DefaultSettings(), log, opts...)
	if err != nil {
		t.Fatalf("practice.New: %v", err)
	}
	hub := NewHub(log)
	metro, err := metronome.New(hub, metronome.DefaultBPM, metronome.DefaultVolume, log)
	if err != nil {
		t.Fatalf("metronome.New: %v", err)
	}
	t.Cleanup(func() {
		metro.Stop()
		hub.Close()
	})
	rec := session.NewRecorder(lib, log, session.WithMetronome(metro))
	return &testEnv{
		srv:   New(lib, rec, metro, hub, apiKey, log),
		lib:   lib,
		hub:   hub,
		metro: metro,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func (e *testEnv) exercise(t *testing.T, name string) models.Exercise {
	t.Helper()
	ex, err := e.lib.CreateExercise(context.Background(), practice.ExerciseInput{Name: name})
	if err != nil {
		t.Fatalf("CreateExercise: %v", err)
	}
	return ex
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// TestFolderAndExerciseCRUD walks a folder and an exercise through create,
// read, rename and list.
func TestFolderAndExerciseCRUD(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/api/v1/folders", map[string]string{"name": "Technique"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create folder status = %d, body %s", rec.Code, rec.Body)
	}
	folder := decode[models.Folder](t, rec)

	rec = env.do(t, http.MethodPost, "/api/v1/exercises", map[string]any{
		"name":      "Spider Walk",
		"folder_id": folder.ID,
		"link":      "https://example.com/spider",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create exercise status = %d, body %s", rec.Code, rec.Body)
	}
	ex := decode[models.Exercise](t, rec)
	if ex.FolderID != folder.ID {
		t.Errorf("folder_id = %s, want %s", ex.FolderID, folder.ID)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/folders/"+folder.ID.String(), nil)
	got := decode[models.Folder](t, rec)
	if len(got.ExerciseIDs) != 1 || got.ExerciseIDs[0] != ex.ID {
		t.Errorf("folder children = %v, want [%s]", got.ExerciseIDs, ex.ID)
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/exercises/"+ex.ID.String(), map[string]string{"name": "Spider"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	if name := decode[models.Exercise](t, rec).Name; name != "Spider" {
		t.Errorf("name = %q, want Spider", name)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/exercises", map[string]string{"name": "spider"})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate name status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/exercises", nil)
	list := decode[[]models.ExerciseOverview](t, rec)
	if len(list) != 1 {
		t.Errorf("exercises = %d, want 1", len(list))
	}
}

func TestDeleteFolderMovesExercisesToUnfiled(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	f, err := env.lib.CreateFolder(ctx, "Songs")
	if err != nil {
		t.Fatal(err)
	}
	ex, err := env.lib.CreateExercise(ctx, practice.ExerciseInput{Name: "Blackbird", FolderID: f.ID})
	if err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodDelete, "/api/v1/folders/"+f.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got, err := env.lib.Exercise(ex.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.FolderID != models.UnfiledFolderID {
		t.Errorf("folder_id = %s, want Unfiled", got.FolderID)
	}
}

func TestUnfiledFolderIsProtected(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, http.MethodDelete, "/api/v1/folders/"+models.UnfiledFolderID.String(), nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestBadAndUnknownIDs(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodGet, "/api/v1/exercises/not-a-uuid", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed ID status = %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/exercises/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown ID status = %d, want 404", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
		"exercise_id":  uuid.New(),
		"duration_sec": 60,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("entry for unknown exercise status = %d, want 404", rec.Code)
	}
}

// TestDeleteExerciseRequiresConfirm verifies an exercise with history is only
// deleted with confirm=true, and its entries go with it.
func TestDeleteExerciseRequiresConfirm(t *testing.T) {
	env := newTestEnv(t, "")
	ex := env.exercise(t, "Arpeggios")
	rec := env.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
		"exercise_id":  ex.ID,
		"duration_sec": 300,
		"bpm":          90,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record status = %d, body %s", rec.Code, rec.Body)
	}

	path := "/api/v1/exercises/" + ex.ID.String()
	if rec := env.do(t, http.MethodDelete, path, nil); rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed delete status = %d, want 409", rec.Code)
	}
	if env.lib.EntryCount() != 1 {
		t.Fatalf("entries = %d after refused delete, want 1", env.lib.EntryCount())
	}

	rec = env.do(t, http.MethodDelete, path+"?confirm=true", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed delete status = %d, body %s", rec.Code, rec.Body)
	}
	if n := decode[map[string]int](t, rec)["entries_deleted"]; n != 1 {
		t.Errorf("entries_deleted = %d, want 1", n)
	}
	if env.lib.EntryCount() != 0 {
		t.Errorf("entries = %d, want 0", env.lib.EntryCount())
	}
}

func TestDeleteDay(t *testing.T) {
	env := newTestEnv(t, "")
	ex := env.exercise(t, "Legato")
	day := time.Date(2024, 5, 6, 19, 0, 0, 0, time.Local)
	if _, err := env.lib.RecordEntry(context.Background(), practice.EntryInput{ExerciseID: ex.ID, Date: day, DurationSec: 120}); err != nil {
		t.Fatal(err)
	}

	if rec := env.do(t, http.MethodDelete, "/api/v1/history/06-05-2024", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d, want 400", rec.Code)
	}
	if rec := env.do(t, http.MethodDelete, "/api/v1/history/2024-05-06", nil); rec.Code != http.StatusConflict {
		t.Errorf("unconfirmed status = %d, want 409", rec.Code)
	}
	rec := env.do(t, http.MethodDelete, "/api/v1/history/2024-05-06?confirm=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed status = %d, body %s", rec.Code, rec.Body)
	}
	if env.lib.EntryCount() != 0 {
		t.Errorf("entries = %d, want 0", env.lib.EntryCount())
	}
}

// TestEntriesGroupByInstant posts one moment twice with different offsets.
// Both land on the same day in the library's zone.
func TestEntriesGroupByInstant(t *testing.T) {
	west := time.FixedZone("UTC-5", -5*3600)
	env := newTestEnv(t, "", practice.WithLocation(west))
	ex := env.exercise(t, "Sweeps")

	for _, date := range []string{"2025-03-04T03:00:00Z", "2025-03-03T22:00:00-05:00"} {
		rec := env.do(t, http.MethodPost, "/api/v1/entries", map[string]any{
			"exercise_id": ex.ID, "date": date, "duration_sec": 60,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("record %s: status = %d, body %s", date, rec.Code, rec.Body)
		}
	}

	sum := decode[models.DailySummary](t, env.do(t, http.MethodGet, "/api/v1/summary/daily?date=2025-03-03", nil))
	if len(sum.Entries) != 2 || sum.TotalSec != 120 {
		t.Errorf("summary 2025-03-03 = %d entries, %ds; want 2, 120s", len(sum.Entries), sum.TotalSec)
	}
	days := decode[[]models.DailySummary](t, env.do(t, http.MethodGet, "/api/v1/history", nil))
	if len(days) != 1 {
		t.Errorf("history days = %d, want 1", len(days))
	}

	rec := env.do(t, http.MethodDelete, "/api/v1/history/2025-03-03?confirm=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete day status = %d, body %s", rec.Code, rec.Body)
	}
	if n := decode[map[string]int](t, rec)["entries_deleted"]; n != 2 {
		t.Errorf("entries_deleted = %d, want 2", n)
	}
}

// TestSessionFlow drives a session through start, pause, resume and stop and
// checks the recorded entry.
func TestSessionFlow(t *testing.T) {
	env := newTestEnv(t, "")
	ex := env.exercise(t, "Chromatic")

	rec := env.do(t, http.MethodPost, "/api/v1/session/start", map[string]any{"exercise_id": ex.ID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	if st := decode[session.Status](t, rec); st.State != session.StateRunning {
		t.Fatalf("state = %s, want running", st.State)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/session/start", map[string]any{"exercise_id": ex.ID}); rec.Code != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/session/pause", nil)
	if st := decode[session.Status](t, rec); st.State != session.StatePaused {
		t.Errorf("state after pause = %s, want paused", st.State)
	}
	rec = env.do(t, http.MethodPost, "/api/v1/session/resume", nil)
	if st := decode[session.Status](t, rec); st.State != session.StateRunning {
		t.Errorf("state after resume = %s, want running", st.State)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/session/stop", map[string]any{"bpm": 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, body %s", rec.Code, rec.Body)
	}
	var stopped struct {
		Entry   models.WorkoutEntry `json:"entry"`
		Session session.Status      `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stopped); err != nil {
		t.Fatal(err)
	}
	if stopped.Entry.ExerciseID != ex.ID || stopped.Entry.BPM == nil || *stopped.Entry.BPM != 100 {
		t.Errorf("entry = %+v, want exercise %s at 100 bpm", stopped.Entry, ex.ID)
	}
	if stopped.Session.State != session.StateCompleted {
		t.Errorf("state = %s, want completed", stopped.Session.State)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/entries?exercise_id="+ex.ID.String(), nil)
	if entries := decode[[]models.WorkoutEntry](t, rec); len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/session/stop", nil); rec.Code != http.StatusConflict {
		t.Errorf("stop without session status = %d, want 409", rec.Code)
	}
}

func TestSessionStopAndContinue(t *testing.T) {
	env := newTestEnv(t, "")
	first := env.exercise(t, "Alternate Picking")
	second := env.exercise(t, "Sweeps")

	env.do(t, http.MethodPost, "/api/v1/session/start", map[string]any{"exercise_id": first.ID})
	rec := env.do(t, http.MethodPost, "/api/v1/session/stop", map[string]any{"next_exercise_id": second.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var out struct {
		Entry   models.WorkoutEntry `json:"entry"`
		Session session.Status      `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Entry.ExerciseID != first.ID {
		t.Errorf("entry exercise = %s, want %s", out.Entry.ExerciseID, first.ID)
	}
	if out.Session.State != session.StateRunning || out.Session.ExerciseID != second.ID {
		t.Errorf("session = %s on %s, want running on %s", out.Session.State, out.Session.ExerciseID, second.ID)
	}
}

func TestSessionCancelKeepsLog(t *testing.T) {
	env := newTestEnv(t, "")
	ex := env.exercise(t, "Bends")
	env.do(t, http.MethodPost, "/api/v1/metronome/start", nil)
	env.do(t, http.MethodPost, "/api/v1/session/start", map[string]any{"exercise_id": ex.ID})

	rec := env.do(t, http.MethodPost, "/api/v1/session/cancel", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if env.lib.EntryCount() != 0 {
		t.Errorf("entries = %d, want 0", env.lib.EntryCount())
	}
	if env.metro.Running() {
		t.Error("metronome still running after cancel")
	}
}

func TestMetronomeUpdate(t *testing.T) {
	env := newTestEnv(t, "")

	if rec := env.do(t, http.MethodPut, "/api/v1/metronome", map[string]int{"bpm": 300}); rec.Code != http.StatusBadRequest {
		t.Errorf("out of range status = %d, want 400", rec.Code)
	}

	rec := env.do(t, http.MethodPut, "/api/v1/metronome", map[string]any{"bpm": 90, "delta": 5, "volume": 2.0})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	st := decode[metronome.State](t, rec)
	if st.BPM != 95 {
		t.Errorf("bpm = %d, want 95", st.BPM)
	}
	if st.Volume != 1 {
		t.Errorf("volume = %v, want 1", st.Volume)
	}
}

func TestExportMarkdown(t *testing.T) {
	env := newTestEnv(t, "")
	ex := env.exercise(t, "Scales")
	day := time.Date(2024, 1, 2, 18, 30, 0, 0, time.Local)
	if _, err := env.lib.RecordEntry(context.Background(), practice.EntryInput{ExerciseID: ex.ID, Date: day, DurationSec: 125}); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"# Guitar Exercises", "## 02 January 2024", "| Scales | 02:05 | - |"} {
		if !strings.Contains(body, want) {
			t.Errorf("export missing %q:\n%s", want, body)
		}
	}
}

func TestSettingsAndInactive(t *testing.T) {
	env := newTestEnv(t, "")
	env.exercise(t, "Never Practiced")

	rec := env.do(t, http.MethodPut, "/api/v1/settings", map[string]int{"inactivity_days": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[models.Settings](t, rec).InactivityDays; got != 3 {
		t.Errorf("inactivity_days = %d, want 3", got)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/inactive", nil)
	var out struct {
		InactivityDays int               `json:"inactivity_days"`
		Exercises      []models.Exercise `json:"exercises"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.InactivityDays != 3 || len(out.Exercises) != 1 {
		t.Errorf("inactive = %+v, want one exercise at 3 days", out)
	}
}

func TestAPIKeyProtectsAPIOnly(t *testing.T) {
	env := newTestEnv(t, "secret")

	if rec := env.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/folders", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/folders?api_key=secret", nil); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}
}

// TestMetronomeWebSocket connects a client and checks it gets the initial
// state followed by broadcast clicks.
func TestMetronomeWebSocket(t *testing.T) {
	env := newTestEnv(t, "")
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/metronome/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading state: %v", err)
	}
	if msg.Type != "state" || msg.State == nil || msg.State.BPM != metronome.DefaultBPM {
		t.Fatalf("first message = %+v, want state at default bpm", msg)
	}
	if env.hub.Clients() != 1 {
		t.Fatalf("clients = %d, want 1", env.hub.Clients())
	}

	env.hub.Click(3, 0.25)
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading click: %v", err)
	}
	if msg.Type != "click" || msg.Beat != 3 || msg.Volume != 0.25 {
		t.Errorf("click = %+v, want beat 3 at 0.25", msg)
	}
}

// TestSessionStopBroadcastsMetronome checks that completing a session stops
// the metronome and tells websocket clients.
func TestSessionStopBroadcastsMetronome(t *testing.T) {
	env := newTestEnv(t, "")
	ex := env.exercise(t, "Tremolo")
	ts := httptest.NewServer(env.srv)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/metronome/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading state: %v", err)
	}

	if rec := env.do(t, http.MethodPost, "/api/v1/session/start", map[string]any{"exercise_id": ex.ID}); rec.Code != http.StatusCreated {
		t.Fatalf("start status = %d, body %s", rec.Code, rec.Body)
	}
	env.metro.Start()

	if rec := env.do(t, http.MethodPost, "/api/v1/session/stop", nil); rec.Code != http.StatusOK {
		t.Fatalf("stop status = %d, body %s", rec.Code, rec.Body)
	}
	if env.metro.Running() {
		t.Error("metronome still running after stop")
	}

	for {
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for stopped state: %v", err)
		}
		if msg.Type == "state" && msg.State != nil && !msg.State.Running {
			return
		}
	}
}
