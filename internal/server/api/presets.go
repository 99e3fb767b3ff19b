package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/turquoise5/hand-music/internal/music"
	"github.com/turquoise5/hand-music/internal/store"
	"github.com/turquoise5/hand-music/internal/synth"
)

// PresetHandler handles HTTP requests for preset resources.
type PresetHandler struct {
	store *store.Store
}

// NewPresetHandler creates a PresetHandler.
func NewPresetHandler(s *store.Store) *PresetHandler {
	return &PresetHandler{store: s}
}

// ServeHTTP routes /api/presets and /api/presets/{id}.
func (h *PresetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/presets"), "/")

	if id == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type presetRequest struct {
	Name   string `json:"name"`
	Scale  string `json:"scale"`
	Key    string `json:"key"`
	Timbre string `json:"timbre"`
}

type presetResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Scale     string `json:"scale"`
	Key       string `json:"key"`
	Timbre    string `json:"timbre"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type listPresetsResponse struct {
	Presets []presetResponse `json:"presets"`
}

func toPresetResponse(p *store.Preset) presetResponse {
	return presetResponse{
		ID:        p.ID,
		Name:      p.Name,
		Scale:     p.Scale,
		Key:       p.Key,
		Timbre:    p.Timbre,
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

// validateSelection checks that scale, key and timbre name known entries.
func validateSelection(scale, key, timbre string) error {
	if _, err := music.Resolve(scale, key); err != nil {
		return err
	}
	_, err := synth.Program(timbre)
	return err
}

func (h *PresetHandler) list(w http.ResponseWriter, r *http.Request) {
	presets, err := h.store.Presets().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list presets")
		return
	}

	response := listPresetsResponse{Presets: make([]presetResponse, 0, len(presets))}
	for _, p := range presets {
		response.Presets = append(response.Presets, toPresetResponse(p))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *PresetHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.store.Presets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return
	}
	writeJSON(w, http.StatusOK, toPresetResponse(p))
}

func (h *PresetHandler) create(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.Timbre == "" {
		req.Timbre = synth.DefaultTimbre
	}
	if err := validateSelection(req.Scale, req.Key, req.Timbre); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &store.Preset{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Scale:  req.Scale,
		Key:    req.Key,
		Timbre: req.Timbre,
	}
	if err := h.store.Presets().Create(p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Preset name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create preset")
		return
	}

	writeJSON(w, http.StatusCreated, toPresetResponse(p))
}

func (h *PresetHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.store.Presets().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get preset")
		return
	}

	var req presetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Scale != "" {
		p.Scale = req.Scale
	}
	if req.Key != "" {
		p.Key = req.Key
	}
	if req.Timbre != "" {
		p.Timbre = req.Timbre
	}
	if err := validateSelection(p.Scale, p.Key, p.Timbre); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Presets().Update(p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "Preset name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update preset")
		return
	}

	writeJSON(w, http.StatusOK, toPresetResponse(p))
}

func (h *PresetHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Presets().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Preset not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete preset")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
