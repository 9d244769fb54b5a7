package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/metronome"
	"github.com/meltforce/fretlog/internal/practice"
	"github.com/meltforce/fretlog/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, practice.ErrNotFound), errors.Is(err, practice.ErrExerciseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, practice.ErrInvalid), errors.Is(err, metronome.ErrBPMRange):
		status = http.StatusBadRequest
	case errors.Is(err, practice.ErrConfirmationRequired),
		errors.Is(err, practice.ErrDuplicateName),
		errors.Is(err, practice.ErrProtectedFolder),
		errors.Is(err, session.ErrSessionActive),
		errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrInvalidState):
		status = http.StatusConflict
	default:
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func urlID(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// parseDay accepts YYYY-MM-DD or RFC 3339. Empty means today in loc.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Now().In(loc), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// parseTimeRange reads optional start and end query parameters. A date-only
// end includes that whole day. Date-only bounds are read in loc. Missing
// bounds stay zero, meaning unbounded.
func parseTimeRange(r *http.Request, loc *time.Location) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr != "" {
		start, err = time.Parse(time.RFC3339, startStr)
		if err != nil {
			start, err = time.ParseInLocation("2006-01-02", startStr, loc)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
		}
	}

	if endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.ParseInLocation("2006-01-02", endStr, loc)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.AddDate(0, 0, 1)
		}
	}
	return start, end, nil
}
