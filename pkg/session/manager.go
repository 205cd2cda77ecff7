// Package session holds the per-run context a story is generated for: the
// location fix, the time of day captured at start and the chosen vibe.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vibewalk/pkg/geo"
	"vibewalk/pkg/model"
	"vibewalk/pkg/narrator"
)

// Gate reports whether a generation cycle is running.
type Gate interface {
	Busy() bool
}

// State is the session as seen by the UI.
type State struct {
	Coords      *model.Coordinates `json:"coords,omitempty"`
	Cell        string             `json:"cell,omitempty"`
	Source      string             `json:"source,omitempty"`
	LocateError string             `json:"locate_error,omitempty"`
	Bucket      model.TimeBucket   `json:"time_bucket"`
	Vibe        model.Vibe         `json:"vibe"`
	StartedAt   time.Time          `json:"started_at"`
	CanGenerate bool               `json:"can_generate"`
}

// Manager handles the transient session context.
type Manager struct {
	locator geo.Locator
	gate    Gate

	mu        sync.RWMutex
	coords    *model.Coordinates
	source    string
	locateErr string
	bucket    model.TimeBucket
	vibe      model.Vibe
	startedAt time.Time
}

// NewManager starts a session at startedAt. The time bucket is fixed from
// that instant for the lifetime of the session.
func NewManager(locator geo.Locator, gate Gate, vibe model.Vibe, startedAt time.Time) *Manager {
	if locator == nil {
		locator = geo.DisabledLocator{}
	}
	v, err := model.ParseVibe(string(vibe))
	if err != nil {
		v = model.VibeMysterious
	}
	return &Manager{
		locator:   locator,
		gate:      gate,
		bucket:    model.BucketFor(startedAt),
		vibe:      v,
		startedAt: startedAt,
	}
}

// Locate asks the configured locator for a fix. A failure leaves any earlier
// fix in place and records the reason.
func (m *Manager) Locate(ctx context.Context) error {
	c, err := m.locator.Locate(ctx)
	if err != nil {
		m.mu.Lock()
		m.locateErr = err.Error()
		hasFix := m.coords != nil
		m.mu.Unlock()

		slog.Warn("Session: location lookup failed", "error", err, "has_fix", hasFix)
		return fmt.Errorf("%w: %v", narrator.ErrGeolocationUnavailable, err)
	}
	return m.setLocation(c, "locator")
}

// SetLocation stores a fix pushed by the client.
func (m *Manager) SetLocation(c model.Coordinates) error {
	return m.setLocation(c, "client")
}

func (m *Manager) setLocation(c model.Coordinates, source string) error {
	if err := geo.Validate(c); err != nil {
		return err
	}

	m.mu.Lock()
	prev := m.coords
	fix := c
	m.coords = &fix
	m.source = source
	m.locateErr = ""
	m.mu.Unlock()

	if prev != nil {
		slog.Info("Session: location updated", "cell", geo.Cell(c), "moved_m", int(geo.Distance(*prev, c)), "source", source)
	} else {
		slog.Info("Session: location acquired", "cell", geo.Cell(c), "source", source)
	}
	return nil
}

// SetVibe changes the vibe. Not allowed while a cycle is running.
func (m *Manager) SetVibe(v model.Vibe) error {
	v, err := model.ParseVibe(string(v))
	if err != nil {
		return err
	}
	if m.gate != nil && m.gate.Busy() {
		return narrator.ErrPipelineBusy
	}

	m.mu.Lock()
	m.vibe = v
	m.mu.Unlock()
	slog.Debug("Session: vibe set", "vibe", v)
	return nil
}

// Vibe returns the current vibe.
func (m *Manager) Vibe() model.Vibe {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vibe
}

// Request builds the context for a generation cycle.
func (m *Manager) Request() (narrator.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req := narrator.Request{Bucket: m.bucket, Vibe: m.vibe}
	if m.coords == nil {
		return req, narrator.ErrGeolocationUnavailable
	}
	c := *m.coords
	req.Coords = &c
	return req, nil
}

// State returns a copy of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := State{
		Source:      m.source,
		LocateError: m.locateErr,
		Bucket:      m.bucket,
		Vibe:        m.vibe,
		StartedAt:   m.startedAt,
	}
	if m.coords != nil {
		c := *m.coords
		st.Coords = &c
		st.Cell = geo.Cell(c)
		st.CanGenerate = m.gate == nil || !m.gate.Busy()
	}
	return st
}
