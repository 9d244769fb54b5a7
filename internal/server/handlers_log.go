package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/export"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
)

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r, s.lib.Location())
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	f := practice.EntryFilter{Start: start, End: end}
	if v := r.URL.Query().Get("exercise_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, "invalid exercise ID")
			return
		}
		f.ExerciseID = id
	}
	entries := s.lib.Entries(f)
	if entries == nil {
		entries = []models.WorkoutEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRecordEntry(w http.ResponseWriter, r *http.Request) {
	var req practice.EntryInput
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := s.lib.RecordEntry(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "entry")
	if !ok {
		return
	}
	if err := s.lib.DeleteEntry(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := s.lib.History()
	if days == nil {
		days = []models.DailySummary{}
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleDeleteDay(w http.ResponseWriter, r *http.Request) {
	day, err := time.ParseInLocation("2006-01-02", chi.URLParam(r, "date"), s.lib.Location())
	if err != nil {
		badRequest(w, "invalid date: want YYYY-MM-DD")
		return
	}
	n, err := s.lib.DeleteDay(r.Context(), day, queryBool(r, "confirm"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entries_deleted": n})
}

func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	day, err := parseDay(r.URL.Query().Get("date"), s.lib.Location())
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	sum := s.lib.DailySummary(day)
	if sum.Entries == nil {
		sum.Entries = []models.WorkoutEntry{}
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	total := s.lib.TotalPracticeSec()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_sec": total,
		"total":     models.FormatClock(total),
		"entries":   s.lib.EntryCount(),
	})
}

func (s *Server) handleInactive(w http.ResponseWriter, r *http.Request) {
	out := s.lib.InactiveExercises()
	if out == nil {
		out = []models.Exercise{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"inactivity_days": s.lib.Settings().InactivityDays,
		"exercises":       out,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.Write(&buf, s.lib.History(), s.lib.ExerciseNames()); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.DefaultFilename+`"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lib.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	req := s.lib.Settings()
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.lib.UpdateSettings(r.Context(), req); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.lib.Settings())
}
