// Package api serves live session state, the interview archive, and
// Prometheus metrics over a local HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxprep/voxprep/internal/types"
	"github.com/voxprep/voxprep/store"
)

// Session is the read-only view of the live interview session.
type Session interface {
	Status() types.SessionStatus
	Transcript() []types.TranscriptEntry
}

// Server exposes the observability endpoints.
type Server struct {
	router  *chi.Mux
	addr    string
	session Session
	archive *store.Store
}

// NewServer wires the routes. archive may be nil.
func NewServer(addr string, session Session, archive *store.Store) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		addr:    addr,
		session: session,
		archive: archive,
	}

	router.Get("/healthz", s.health)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/api/v1/session", s.sessionStatus)
	router.Get("/api/v1/session/transcript", s.sessionTranscript)
	router.Get("/api/v1/interviews", s.listInterviews)
	router.Get("/api/v1/interviews/{id}", s.getInterview)

	return s
}

// Start blocks serving HTTP.
func (s *Server) Start() error {
	slog.Info("api server starting", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.router)
}

// Handler returns the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) sessionStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) sessionTranscript(w http.ResponseWriter, r *http.Request) {
	entries := s.session.Transcript()
	if entries == nil {
		entries = []types.TranscriptEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) listInterviews(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusOK, []types.InterviewOutput{})
		return
	}
	outs, err := s.archive.ListInterviews()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if outs == nil {
		outs = []types.InterviewOutput{}
	}
	writeJSON(w, http.StatusOK, outs)
}

func (s *Server) getInterview(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, http.StatusNotFound, store.ErrNotFound)
		return
	}
	out, err := s.archive.GetInterview(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
