package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/turquoise5/hand-music/internal/app"
	"github.com/turquoise5/hand-music/internal/music"
	"github.com/turquoise5/hand-music/internal/store"
	"github.com/turquoise5/hand-music/internal/synth"
)

// Controller is the session surface of *app.App.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Configure(ctx context.Context, s app.Settings) error
	Status() app.Status
}

// SessionHandler starts, stops and reconfigures the tracking session.
type SessionHandler struct {
	app   Controller
	store *store.Store
}

// NewSessionHandler creates a SessionHandler. The store may be nil, in which
// case preset references are rejected.
func NewSessionHandler(c Controller, s *store.Store) *SessionHandler {
	return &SessionHandler{app: c, store: s}
}

// selectionRequest picks a preset or spells out the selection. Fields left
// empty keep their current value.
type selectionRequest struct {
	PresetID string `json:"preset_id"`
	Scale    string `json:"scale"`
	Key      string `json:"key"`
	Timbre   string `json:"timbre"`
}

func (req selectionRequest) empty() bool {
	return req == selectionRequest{}
}

// ServeHTTP routes /api/session, /api/session/start, /api/session/stop and
// /api/session/settings.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/session"), "/")

	switch action {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.app.Status())
	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.start(w, r)
	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stop(w, r)
	case "settings":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.configure(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if h.app.Status().Running {
		writeError(w, http.StatusConflict, "Session already running")
		return
	}
	if !req.empty() && !h.apply(w, r, req) {
		return
	}

	if err := h.app.Start(r.Context()); err != nil {
		if errors.Is(err, app.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "Session already running")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to start session: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.app.Status())
}

func (h *SessionHandler) stop(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Stop(r.Context()); err != nil {
		if errors.Is(err, app.ErrNotRunning) {
			writeError(w, http.StatusConflict, "No session running")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to stop session")
		return
	}
	writeJSON(w, http.StatusOK, h.app.Status())
}

func (h *SessionHandler) configure(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	if req.empty() {
		writeError(w, http.StatusBadRequest, "Nothing to change")
		return
	}
	if !h.apply(w, r, req) {
		return
	}
	writeJSON(w, http.StatusOK, h.app.Status())
}

// decode reads an optional selection body.
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request) (selectionRequest, bool) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return req, false
	}
	return req, true
}

// apply resolves a preset reference and configures the app.
func (h *SessionHandler) apply(w http.ResponseWriter, r *http.Request, req selectionRequest) bool {
	settings := app.Settings{Scale: req.Scale, Key: req.Key, Timbre: req.Timbre}

	if req.PresetID != "" {
		if h.store == nil {
			writeError(w, http.StatusBadRequest, "Presets are not available")
			return false
		}
		p, err := h.store.Presets().GetByID(req.PresetID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Preset not found")
				return false
			}
			writeError(w, http.StatusInternalServerError, "Failed to get preset")
			return false
		}
		settings = app.Settings{PresetID: p.ID, Scale: p.Scale, Key: p.Key, Timbre: p.Timbre}
	}

	if err := h.app.Configure(r.Context(), settings); err != nil {
		if errors.Is(err, music.ErrUnknownScale) || errors.Is(err, music.ErrUnknownKey) || errors.Is(err, synth.ErrUnknownTimbre) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
		writeError(w, http.StatusInternalServerError, "Failed to apply settings")
		return false
	}
	return true
}

// HistoryHandler lists past sessions.
type HistoryHandler struct {
	store *store.Store
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

// ServeHTTP handles GET /api/sessions?limit=N.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

type optionsResponse struct {
	Scales  []string `json:"scales"`
	Keys    []string `json:"keys"`
	Timbres []string `json:"timbres"`
}

// HandleOptions serves GET /api/options: the selectable scales, keys and
// timbres.
func HandleOptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{
		Scales:  music.Names(),
		Keys:    music.Keys(),
		Timbres: synth.Timbres(),
	})
}
