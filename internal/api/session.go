package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"vibewalk/pkg/model"
	"vibewalk/pkg/session"
)

// SessionHandler handles the session endpoints.
type SessionHandler struct {
	session *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(m *session.Manager) *SessionHandler {
	return &SessionHandler{session: m}
}

// LocationRequest is a fix pushed by the client.
type LocationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// VibeRequest selects a vibe by id.
type VibeRequest struct {
	Vibe string `json:"vibe"`
}

// HandleState handles GET /api/session
func (h *SessionHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.State())
}

// HandleLocation handles POST /api/session/location
func (h *SessionHandler) HandleLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}
	if req.Lat == nil || req.Lon == nil {
		writeError(w, fmt.Errorf("%w: lat and lon are required", errBadRequest))
		return
	}
	if err := h.session.SetLocation(model.Coordinates{Lat: *req.Lat, Lon: *req.Lon}); err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, h.session.State())
}

// HandleLocate handles POST /api/session/locate
func (h *SessionHandler) HandleLocate(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Locate(r.Context()); err != nil {
		slog.Debug("API: locate failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.State())
}

// HandleVibe handles POST /api/session/vibe
func (h *SessionHandler) HandleVibe(w http.ResponseWriter, r *http.Request) {
	var req VibeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}
	v, err := model.ParseVibe(req.Vibe)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := h.session.SetVibe(v); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.State())
}

func handleVibes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.Vibes())
}
