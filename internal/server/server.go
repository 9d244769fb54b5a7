package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meltforce/fretlog/internal/metronome"
	"github.com/meltforce/fretlog/internal/practice"
	"github.com/meltforce/fretlog/internal/session"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	lib    *practice.Library
	rec    *session.Recorder
	metro  *metronome.Metronome
	hub    *Hub
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured. An empty apiKey
// leaves the API open, which suits a listener bound to localhost.
func New(lib *practice.Library, rec *session.Recorder, metro *metronome.Metronome, hub *Hub, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		lib:    lib,
		rec:    rec,
		metro:  metro,
		hub:    hub,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(APIKeyAuth(s.apiKey))
		}

		r.Get("/folders", s.handleListFolders)
		r.Post("/folders", s.handleCreateFolder)
		r.Get("/folders/{id}", s.handleGetFolder)
		r.Patch("/folders/{id}", s.handleRenameFolder)
		r.Delete("/folders/{id}", s.handleDeleteFolder)
		r.Put("/folders/{id}/order", s.handleReorderFolder)

		r.Get("/exercises", s.handleListExercises)
		r.Post("/exercises", s.handleCreateExercise)
		r.Get("/exercises/{id}", s.handleGetExercise)
		r.Patch("/exercises/{id}", s.handleUpdateExercise)
		r.Delete("/exercises/{id}", s.handleDeleteExercise)
		r.Post("/exercises/{id}/move", s.handleMoveExercise)
		r.Get("/exercises/{id}/stats", s.handleExerciseStats)
		r.Get("/exercises/{id}/chart", s.handleExerciseChart)

		r.Get("/entries", s.handleListEntries)
		r.Post("/entries", s.handleRecordEntry)
		r.Delete("/entries/{id}", s.handleDeleteEntry)

		r.Get("/history", s.handleHistory)
		r.Delete("/history/{date}", s.handleDeleteDay)
		r.Get("/summary/daily", s.handleDailySummary)
		r.Get("/summary/total", s.handleTotal)
		r.Get("/inactive", s.handleInactive)
		r.Get("/export", s.handleExport)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)

		r.Get("/session", s.handleSessionStatus)
		r.Post("/session/start", s.handleSessionStart)
		r.Post("/session/pause", s.handleSessionPause)
		r.Post("/session/resume", s.handleSessionResume)
		r.Put("/session/bpm", s.handleSessionBPM)
		r.Post("/session/stop", s.handleSessionStop)
		r.Post("/session/cancel", s.handleSessionCancel)

		r.Get("/metronome", s.handleMetronomeState)
		r.Put("/metronome", s.handleMetronomeUpdate)
		r.Post("/metronome/start", s.handleMetronomeStart)
		r.Post("/metronome/stop", s.handleMetronomeStop)
		r.Get("/metronome/ws", s.handleMetronomeWS)
	})
}
