package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"vibewalk/pkg/audio"
)

// AudioPlayer is the transport surface of the playback controller.
type AudioPlayer interface {
	Play() error
	Pause() error
	Stop() error
	SetVolume(vol float64)
	Status() audio.Status
}

// AudioHandler handles audio control endpoints.
type AudioHandler struct {
	player AudioPlayer
}

// NewAudioHandler creates a new AudioHandler.
func NewAudioHandler(p AudioPlayer) *AudioHandler {
	return &AudioHandler{player: p}
}

// AudioControlRequest represents an audio control command.
type AudioControlRequest struct {
	Action string `json:"action"` // "play", "pause", "resume", "stop"
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume *float64 `json:"volume"`
}

// AudioStatusResponse represents the audio status.
type AudioStatusResponse struct {
	State      audio.State `json:"state"`
	IsPlaying  bool        `json:"is_playing"`
	IsPaused   bool        `json:"is_paused"`
	Loaded     bool        `json:"loaded"`
	PositionMS int64       `json:"position_ms"`
	DurationMS int64       `json:"duration_ms"`
	Volume     float64     `json:"volume"`
}

func newAudioStatus(st audio.Status) AudioStatusResponse {
	return AudioStatusResponse{
		State:      st.State,
		IsPlaying:  st.State == audio.StatePlaying,
		IsPaused:   st.State == audio.StatePaused,
		Loaded:     st.Loaded,
		PositionMS: st.Position.Milliseconds(),
		DurationMS: st.Duration.Milliseconds(),
		Volume:     st.Volume,
	}
}

// HandleControl handles POST /api/audio/control
func (h *AudioHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req AudioControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}

	var err error
	switch req.Action {
	case "play", "resume":
		err = h.player.Play()
	case "pause":
		err = h.player.Pause()
	case "stop":
		err = h.player.Stop()
	default:
		writeError(w, fmt.Errorf("%w: unknown action %q", errBadRequest, req.Action))
		return
	}
	if err != nil {
		slog.Debug("Audio control failed", "action", req.Action, "error", err)
		writeError(w, err)
		return
	}

	st := h.player.Status()
	slog.Debug("Audio control", "action", req.Action, "state", st.State)
	writeJSON(w, http.StatusOK, newAudioStatus(st))
}

// HandleVolume handles POST /api/audio/volume
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		writeError(w, fmt.Errorf("%w: volume is required", errBadRequest))
		return
	}

	h.player.SetVolume(*req.Volume)
	writeJSON(w, http.StatusOK, newAudioStatus(h.player.Status()))
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newAudioStatus(h.player.Status()))
}
