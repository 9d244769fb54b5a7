package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/meltforce/fretlog/internal/models"
	"github.com/meltforce/fretlog/internal/practice"
)

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.lib.Folders())
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "folder")
	if !ok {
		return
	}
	f, err := s.lib.Folder(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type folderRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req folderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := s.lib.CreateFolder(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "folder")
	if !ok {
		return
	}
	var req folderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := s.lib.RenameFolder(r.Context(), id, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "folder")
	if !ok {
		return
	}
	if err := s.lib.DeleteFolder(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "folder")
	if !ok {
		return
	}
	var req struct {
		ExerciseIDs []uuid.UUID `json:"exercise_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := s.lib.ReorderFolder(r.Context(), id, req.ExerciseIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleListExercises returns every exercise with its statistics, in folder
// order.
func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	out := s.lib.Overview()
	if out == nil {
		out = []models.ExerciseOverview{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateExercise(w http.ResponseWriter, r *http.Request) {
	var req practice.ExerciseInput
	if !decodeBody(w, r, &req) {
		return
	}
	ex, err := s.lib.CreateExercise(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "exercise")
	if !ok {
		return
	}
	ex, err := s.lib.Exercise(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleUpdateExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "exercise")
	if !ok {
		return
	}
	var req practice.ExerciseUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	ex, err := s.lib.UpdateExercise(r.Context(), id, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleDeleteExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "exercise")
	if !ok {
		return
	}
	n, err := s.lib.DeleteExercise(r.Context(), id, queryBool(r, "confirm"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entries_deleted": n})
}

func (s *Server) handleMoveExercise(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "exercise")
	if !ok {
		return
	}
	var req struct {
		FolderID uuid.UUID `json:"folder_id"`
		Position *int      `json:"position"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	pos := -1
	if req.Position != nil {
		pos = *req.Position
	}
	ex, err := s.lib.MoveExercise(r.Context(), id, req.FolderID, pos)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) handleExerciseStats(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "exercise")
	if !ok {
		return
	}
	st, err := s.lib.ExerciseStats(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleExerciseChart(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r, "exercise")
	if !ok {
		return
	}
	points, err := s.lib.Chart(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if points == nil {
		points = []models.ChartPoint{}
	}
	writeJSON(w, http.StatusOK, points)
}
