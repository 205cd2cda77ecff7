package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrNoAudioLoaded is returned by transport operations when nothing is loaded.
	ErrNoAudioLoaded = errors.New("no audio loaded")
	// ErrAudioSystem is returned when the output device cannot be used.
	ErrAudioSystem = errors.New("audio system unavailable")
)

// Clock reports engine time: a monotonic position on the output's timeline.
type Clock interface {
	Now() time.Duration
}

// Output renders decoded audio.
type Output interface {
	// Start plays a from offset and returns a handle for the new output.
	// onEnd is invoked once the output drains, whether it ran out naturally
	// or was halted. It must not be invoked synchronously from Start.
	Start(a *Decoded, offset time.Duration, onEnd func()) (Handle, error)
}

// Handle is one active output.
type Handle interface {
	Halt()
}

// State is the transport state of the controller.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Status is a snapshot of the controller for observers.
type Status struct {
	State    State         `json:"state"`
	Loaded   bool          `json:"loaded"`
	Position time.Duration `json:"position"`
	Duration time.Duration `json:"duration"`
	Volume   float64       `json:"volume"`
}

// Controller owns the loaded buffer and the pause/resume bookkeeping.
//
// While playing, elapsed time is always derived as now - startRef; only the
// paused offset is stored. At most one output handle is active.
type Controller struct {
	mu           sync.Mutex
	out          Output
	clock        Clock
	endTolerance time.Duration

	audio        *Decoded
	state        State
	pausedOffset time.Duration
	startRef     time.Duration
	handle       Handle
	gen          uint64
	volume       float64

	onChange func(Status)
}

// NewController creates a controller. endTolerance is how far short of the
// track duration a completion signal may arrive and still count as the end.
func NewController(out Output, clock Clock, endTolerance time.Duration) *Controller {
	return &Controller{
		out:          out,
		clock:        clock,
		endTolerance: endTolerance,
		state:        StateStopped,
		volume:       1.0,
	}
}

// SetOnChange registers a callback invoked after every state change.
// It runs outside the controller lock.
func (c *Controller) SetOnChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Load stops anything playing and replaces the buffer.
func (c *Controller) Load(a *Decoded) {
	c.mu.Lock()
	c.resetLocked()
	c.audio = a
	c.mu.Unlock()
	c.notify()
}

// Unload stops playback and discards the buffer.
func (c *Controller) Unload() {
	c.mu.Lock()
	c.resetLocked()
	c.audio = nil
	c.mu.Unlock()
	c.notify()
}

// Play starts (or resumes) playback from the paused offset, wrapped into the
// track length. A second Play while playing supersedes the first output and
// continues from the current position.
func (c *Controller) Play() error {
	c.mu.Lock()
	if c.audio == nil {
		c.mu.Unlock()
		return ErrNoAudioLoaded
	}
	dur := c.audio.Duration()
	if dur <= 0 {
		c.mu.Unlock()
		slog.Debug("Audio: ignoring play of empty buffer")
		return nil
	}

	offset := c.pausedOffset
	if c.state == StatePlaying {
		offset = c.clock.Now() - c.startRef
	}
	c.haltLocked()
	offset = wrap(offset, dur)

	c.gen++
	gen := c.gen
	h, err := c.out.Start(c.audio, offset, func() { c.handleEnd(gen) })
	if err != nil {
		c.state = StateStopped
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("%w: %v", ErrAudioSystem, err)
	}

	c.handle = h
	c.startRef = c.clock.Now() - offset
	c.pausedOffset = offset
	c.state = StatePlaying
	c.mu.Unlock()

	slog.Debug("Audio: playing", "offset", offset, "duration", dur)
	c.notify()
	return nil
}

// Pause halts output and records the elapsed offset. No-op unless playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.audio == nil {
		c.mu.Unlock()
		return ErrNoAudioLoaded
	}
	if c.state != StatePlaying {
		c.mu.Unlock()
		return nil
	}

	elapsed := c.clock.Now() - c.startRef
	c.haltLocked()
	c.pausedOffset = wrap(elapsed, c.audio.Duration())
	c.state = StatePaused
	offset := c.pausedOffset
	c.mu.Unlock()

	slog.Debug("Audio: paused", "offset", offset)
	c.notify()
	return nil
}

// Stop halts output and rewinds to the start.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.audio == nil {
		c.mu.Unlock()
		return ErrNoAudioLoaded
	}
	c.resetLocked()
	c.mu.Unlock()
	c.notify()
	return nil
}

// IsPlaying reports whether an output is active.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StatePlaying
}

// State returns the transport state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Position returns the current offset into the track.
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

// Duration returns the length of the loaded track, or 0.
func (c *Controller) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audio.Duration()
}

// Status returns a snapshot for observers.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// SetVolume sets the playback volume (0.0 to 1.0) and applies it to the
// output if the output supports it.
func (c *Controller) SetVolume(vol float64) {
	if vol < 0 {
		vol = 0
	} else if vol > 1 {
		vol = 1
	}

	c.mu.Lock()
	c.volume = vol
	vs, ok := c.out.(interface{ SetVolume(float64) })
	c.mu.Unlock()

	if ok {
		vs.SetVolume(vol)
	}
	c.notify()
}

// Volume returns the current volume.
func (c *Controller) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *Controller) handleEnd(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StatePlaying {
		c.mu.Unlock()
		return
	}

	dur := c.audio.Duration()
	elapsed := c.clock.Now() - c.startRef
	if elapsed < dur-c.endTolerance {
		c.mu.Unlock()
		slog.Warn("Audio: ignoring early completion signal", "elapsed", elapsed, "duration", dur)
		return
	}

	c.handle = nil
	c.state = StateStopped
	c.pausedOffset = 0
	c.mu.Unlock()

	slog.Debug("Audio: track finished", "duration", dur)
	c.notify()
}

func (c *Controller) haltLocked() {
	if c.handle != nil {
		c.handle.Halt()
		c.handle = nil
	}
	c.gen++
}

func (c *Controller) resetLocked() {
	c.haltLocked()
	c.pausedOffset = 0
	c.state = StateStopped
}

func (c *Controller) positionLocked() time.Duration {
	if c.audio == nil {
		return 0
	}
	if c.state == StatePlaying {
		return wrap(c.clock.Now()-c.startRef, c.audio.Duration())
	}
	return c.pausedOffset
}

func (c *Controller) statusLocked() Status {
	return Status{
		State:    c.state,
		Loaded:   c.audio != nil,
		Position: c.positionLocked(),
		Duration: c.audio.Duration(),
		Volume:   c.volume,
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	st := c.statusLocked()
	c.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

// wrap folds d into [0, dur).
func wrap(d, dur time.Duration) time.Duration {
	if dur <= 0 {
		return 0
	}
	d %= dur
	if d < 0 {
		d += dur
	}
	return d
}
