package server

import (
	"net/http"

	"github.com/google/uuid"
)

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.rec.Status())
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExerciseID uuid.UUID `json:"exercise_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := s.rec.Start(r.Context(), req.ExerciseID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleSessionPause(w http.ResponseWriter, r *http.Request) {
	st, err := s.rec.Pause(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.State(s.metro.State())
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSessionResume(w http.ResponseWriter, r *http.Request) {
	st, err := s.rec.Resume(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.State(s.metro.State())
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleSessionBPM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BPM *int `json:"bpm"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := s.rec.SetBPM(r.Context(), req.BPM)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSessionStop completes the session. With next_exercise_id set the
// following session starts right away.
func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BPM            *int       `json:"bpm"`
		NextExerciseID *uuid.UUID `json:"next_exercise_id"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}

	if req.NextExerciseID != nil {
		entry, st, err := s.rec.Next(r.Context(), req.BPM, *req.NextExerciseID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.hub.State(s.metro.State())
		writeJSON(w, http.StatusOK, map[string]any{"entry": entry, "session": st})
		return
	}

	entry, err := s.rec.Stop(r.Context(), req.BPM)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.State(s.metro.State())
	writeJSON(w, http.StatusOK, map[string]any{"entry": entry, "session": s.rec.Status()})
}

func (s *Server) handleSessionCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.rec.Cancel(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.State(s.metro.State())
	writeJSON(w, http.StatusOK, s.rec.Status())
}

func (s *Server) handleMetronomeState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metro.State())
}

// handleMetronomeUpdate applies bpm, a relative delta, and volume, in that
// order. Fields left out are unchanged.
func (s *Server) handleMetronomeUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BPM    *int     `json:"bpm"`
		Delta  *int     `json:"delta"`
		Volume *float64 `json:"volume"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.BPM != nil {
		if err := s.metro.SetBPM(*req.BPM); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.Delta != nil {
		if _, err := s.metro.ChangeBPM(*req.Delta); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.Volume != nil {
		s.metro.SetVolume(*req.Volume)
	}
	st := s.metro.State()
	s.hub.State(st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMetronomeStart(w http.ResponseWriter, r *http.Request) {
	s.metro.Start()
	st := s.metro.State()
	s.hub.State(st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMetronomeStop(w http.ResponseWriter, r *http.Request) {
	s.metro.Stop()
	st := s.metro.State()
	s.hub.State(st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleMetronomeWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.metro.State())
}
