// Package server provides the optional run status HTTP server.
//
// When a manifest sets run.status_addr, the run command starts this
// server for the duration of the run. It exposes liveness and progress
// endpoints so long-running batches can be watched without tailing the
// run log.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/evalforge/modelrun/pkg/runner"
)

// ProgressFunc returns the current run progress snapshot.
type ProgressFunc func() runner.Progress

// Info identifies the run being served.
type Info struct {
	RunID   string `json:"run_id"`
	Model   string `json:"model"`
	Version string `json:"version"`
}

// Server is the run status HTTP server.
type Server struct {
	addr       string
	info       Info
	progress   ProgressFunc
	started    time.Time
	httpServer *http.Server
}

// New creates a status server listening on addr.
//
// progress may be nil, in which case /progress reports an empty
// snapshot.
func New(addr string, info Info, progress ProgressFunc) *Server {
	s := &Server{
		addr:     addr,
		info:     info,
		progress: progress,
		started:  time.Now(),
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.buildRouter(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving. It blocks until the server stops and returns
// nil on graceful shutdown.
func (s *Server) Start() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/progress", s.handleProgress)
	r.Get("/version", s.handleVersion)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"run_id":         s.info.RunID,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var p runner.Progress
	if s.progress != nil {
		p = s.progress()
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.info)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
