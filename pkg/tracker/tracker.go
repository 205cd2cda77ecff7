package tracker

import (
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks usage statistics per provider.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	APISuccess     int64 `json:"api_success"`
	APIFailures    int64 `json:"api_failures"`
	APIZeroResult  int64 `json:"api_zero"`
	TotalLatencyMS int64 `json:"total_latency_ms"`
	LastLatencyMS  int64 `json:"last_latency_ms"`
}

// AvgLatency returns the mean latency of successful calls.
func (s ProviderStats) AvgLatency() time.Duration {
	if s.APISuccess == 0 {
		return 0
	}
	return time.Duration(s.TotalLatencyMS/s.APISuccess) * time.Millisecond
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		stats: make(map[string]*ProviderStats),
	}
}

func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackAPISuccess counts a successful call and its latency.
func (t *Tracker) TrackAPISuccess(provider string, latency time.Duration) {
	s := t.getStats(provider)
	atomic.AddInt64(&s.APISuccess, 1)
	atomic.AddInt64(&s.TotalLatencyMS, latency.Milliseconds())
	atomic.StoreInt64(&s.LastLatencyMS, latency.Milliseconds())
}

func (t *Tracker) TrackAPIFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIFailures, 1)
}

// TrackAPIZero counts a call that succeeded but returned nothing usable.
func (t *Tracker) TrackAPIZero(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIZeroResult, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats, len(t.stats))
	for k, v := range t.stats {
		result[k] = ProviderStats{
			APISuccess:     atomic.LoadInt64(&v.APISuccess),
			APIFailures:    atomic.LoadInt64(&v.APIFailures),
			APIZeroResult:  atomic.LoadInt64(&v.APIZeroResult),
			TotalLatencyMS: atomic.LoadInt64(&v.TotalLatencyMS),
			LastLatencyMS:  atomic.LoadInt64(&v.LastLatencyMS),
		}
	}
	return result
}

// Reset zeroes all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats = make(map[string]*ProviderStats)
}
