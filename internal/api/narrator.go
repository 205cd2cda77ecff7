package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"vibewalk/pkg/narrator"
)

// Narrator runs generation cycles. *narrator.Pipeline implements it.
type Narrator interface {
	Start(req narrator.Request, regenerate bool) (narrator.RunFunc, error)
	Snapshot() narrator.Snapshot
}

// RequestSource supplies the session context of a cycle.
type RequestSource interface {
	Request() (narrator.Request, error)
}

// NarratorHandler handles the narrator endpoints.
type NarratorHandler struct {
	narrator Narrator
	session  RequestSource

	// run starts a cycle; replaced in tests to run synchronously.
	run func(fn func())
}

// NewNarratorHandler creates a new NarratorHandler.
func NewNarratorHandler(n Narrator, s RequestSource) *NarratorHandler {
	return &NarratorHandler{
		narrator: n,
		session:  s,
		run:      func(fn func()) { go fn() },
	}
}

// GenerateRequest starts a cycle. Regenerate abandons the running one.
type GenerateRequest struct {
	Regenerate bool `json:"regenerate"`
}

// GenerateResponse acknowledges a started cycle.
type GenerateResponse struct {
	Status string `json:"status"`
}

// HandleGenerate handles POST /api/narrator/generate
//
// The cycle outlives the request: progress is reported by
// GET /api/narrator/status and the event stream.
func (h *NarratorHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, fmt.Errorf("%w: invalid request body", errBadRequest))
		return
	}

	genReq, err := h.session.Request()
	if err != nil {
		writeError(w, err)
		return
	}
	cycle, err := h.narrator.Start(genReq, req.Regenerate)
	if err != nil {
		writeError(w, err)
		return
	}

	// Remote calls are not cancelled when the client goes away; the
	// pipeline applies its own timeout.
	ctx := context.WithoutCancel(r.Context())
	h.run(func() {
		if _, err := cycle(ctx); err != nil {
			slog.Debug("API: generation cycle ended with error", "regenerate", req.Regenerate, "error", err)
		}
	})

	writeJSON(w, http.StatusAccepted, GenerateResponse{Status: "started"})
}

// NarratorStatusResponse is the pipeline snapshot plus the HTTP status an
// error maps to.
type NarratorStatusResponse struct {
	narrator.Snapshot
	ErrorCode int `json:"error_code,omitempty"`
}

// HandleStatus handles GET /api/narrator/status
func (h *NarratorHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse(h.narrator.Snapshot()))
}

func statusResponse(s narrator.Snapshot) NarratorStatusResponse {
	resp := NarratorStatusResponse{Snapshot: s}
	if s.Stage == narrator.StageFailed {
		resp.ErrorCode = http.StatusBadGateway
	}
	return resp
}
