// Package server provides the HTTP surface of hand-music: presets, session
// control, live event and landmark websockets, and metrics.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/turquoise5/hand-music/internal/server/api"
	"github.com/turquoise5/hand-music/internal/store"
	"github.com/turquoise5/hand-music/pkg/logger"
)

// Engine is the part of the app the server drives.
type Engine interface {
	api.Controller
	FrameHandler
}

// Config holds the server configuration. Routes whose dependency is nil are
// not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Engine    Engine
	Events    *EventHub
	Metrics   http.Handler
	Logger    logger.Logger
}

// Server represents the HTTP server for the hand-music application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logger.Named("server")
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/options", api.HandleOptions)

	if s.config.Store != nil {
		presets := api.NewPresetHandler(s.config.Store)
		s.mux.Handle("/api/presets", presets)
		s.mux.Handle("/api/presets/", presets)
		s.mux.Handle("/api/sessions", api.NewHistoryHandler(s.config.Store))
	}

	if s.config.Engine != nil {
		session := api.NewSessionHandler(s.config.Engine, s.config.Store)
		s.mux.Handle("/api/session", session)
		s.mux.Handle("/api/session/", session)
		s.mux.Handle("/api/landmarks", NewLandmarksHandler(s.config.Engine, s.config.Logger))
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Engine != nil {
		response["session"] = s.config.Engine.Status().Running
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// HTTPServer wraps the server in an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
