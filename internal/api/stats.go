package api

import (
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"vibewalk/pkg/probe"
	"vibewalk/pkg/tracker"
)

// StatsHandler serves provider statistics, startup probe results and
// process diagnostics.
type StatsHandler struct {
	tracker *tracker.Tracker
	started time.Time

	mu     sync.RWMutex
	probes []probe.Status
	maxMem uint64
}

// NewStatsHandler creates a handler reporting uptime from started.
func NewStatsHandler(t *tracker.Tracker, started time.Time) *StatsHandler {
	return &StatsHandler{tracker: t, started: started}
}

// SetProbes records the startup probe outcome.
func (h *StatsHandler) SetProbes(st []probe.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = st
}

// ProviderStatsDTO is one provider's counters.
type ProviderStatsDTO struct {
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
	SuccessRate   int64 `json:"success_rate"`
	AvgLatencyMS  int64 `json:"avg_latency_ms"`
	LastLatencyMS int64 `json:"last_latency_ms"`
}

// Diagnostics describes the server process.
type Diagnostics struct {
	UptimeSec   int64  `json:"uptime_sec"`
	MemoryMB    uint64 `json:"memory_mb"`
	MemoryMaxMB uint64 `json:"memory_max_mb"`
	Goroutines  int    `json:"goroutines"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Diagnostics Diagnostics                 `json:"diagnostics"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	Probes      []probe.Status              `json:"probes"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := h.tracker.Snapshot()

	resp := StatsResponse{
		Diagnostics: h.diagnostics(),
		Providers:   make(map[string]ProviderStatsDTO, len(snapshot)),
	}

	h.mu.RLock()
	resp.Probes = append([]probe.Status{}, h.probes...)
	h.mu.RUnlock()

	for provider, stats := range snapshot {
		total := stats.APISuccess + stats.APIFailures + stats.APIZeroResult
		rate := int64(0)
		if total > 0 {
			rate = (stats.APISuccess * 100) / total
		}
		resp.Providers[provider] = ProviderStatsDTO{
			APISuccess:    stats.APISuccess,
			APIZeroResult: stats.APIZeroResult,
			APIFailures:   stats.APIFailures,
			SuccessRate:   rate,
			AvgLatencyMS:  stats.AvgLatency().Milliseconds(),
			LastLatencyMS: stats.LastLatencyMS,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleReset handles DELETE /api/stats
func (h *StatsHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.tracker.Reset()
	slog.Info("API: provider statistics reset")
	w.WriteHeader(http.StatusNoContent)
}

func (h *StatsHandler) diagnostics() Diagnostics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Sys > h.maxMem {
		h.maxMem = m.Sys
	}
	maxMem := h.maxMem
	h.mu.Unlock()

	return Diagnostics{
		UptimeSec:   int64(time.Since(h.started).Seconds()),
		MemoryMB:    bToMb(m.Sys),
		MemoryMaxMB: bToMb(maxMem),
		Goroutines:  runtime.NumGoroutine(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
