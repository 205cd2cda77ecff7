// Package api exposes the session, pipeline and playback over HTTP and a
// WebSocket event stream.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vibewalk/pkg/audio"
	"vibewalk/pkg/narrator"
	"vibewalk/pkg/version"
)

// NewServer creates and configures the HTTP server.
func NewServer(addr string, stats *StatsHandler, sess *SessionHandler, narratorH *NarratorHandler, audioH *AudioHandler, events *EventsHandler, shutdown func()) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     NewMux(stats, sess, narratorH, audioH, events, shutdown),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}
}

// NewMux registers all routes. Nil handlers leave their routes out.
func NewMux(stats *StatsHandler, sess *SessionHandler, narratorH *NarratorHandler, audioH *AudioHandler, events *EventsHandler, shutdown func()) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	if stats != nil {
		mux.Handle("GET /api/stats", stats)
		mux.HandleFunc("DELETE /api/stats", stats.HandleReset)
	}

	if sess != nil {
		mux.HandleFunc("GET /api/session", sess.HandleState)
		mux.HandleFunc("POST /api/session/location", sess.HandleLocation)
		mux.HandleFunc("POST /api/session/locate", sess.HandleLocate)
		mux.HandleFunc("POST /api/session/vibe", sess.HandleVibe)
		mux.HandleFunc("GET /api/vibes", handleVibes)
	}

	if narratorH != nil {
		mux.HandleFunc("POST /api/narrator/generate", narratorH.HandleGenerate)
		mux.HandleFunc("GET /api/narrator/status", narratorH.HandleStatus)
	}

	if audioH != nil {
		mux.HandleFunc("POST /api/audio/control", audioH.HandleControl)
		mux.HandleFunc("POST /api/audio/volume", audioH.HandleVolume)
		mux.HandleFunc("GET /api/audio/status", audioH.HandleStatus)
	}

	if events != nil {
		mux.Handle("GET /api/events", events)
	}

	if shutdown != nil {
		mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			slog.Info("Graceful shutdown initiated via API")
			writeJSON(w, http.StatusOK, map[string]string{"status": "shutting down"})
			// Let the response flush first.
			go func() {
				time.Sleep(100 * time.Millisecond)
				shutdown()
			}()
		})
	}

	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// errorResponse is the body of every non-2xx JSON reply.
type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Status: "error", Message: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, narrator.ErrPipelineBusy), errors.Is(err, audio.ErrNoAudioLoaded):
		return http.StatusConflict
	case errors.Is(err, narrator.ErrGeolocationUnavailable):
		return http.StatusPreconditionFailed
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

var errBadRequest = errors.New("bad request")
