package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// The speaker is process-wide: initialised once on first use, never closed.
var device struct {
	once sync.Once
	rate beep.SampleRate
	err  error
}

func initDevice(rate beep.SampleRate, buffer time.Duration) (beep.SampleRate, error) {
	device.once.Do(func() {
		device.rate = rate
		device.err = speaker.Init(rate, rate.N(buffer))
		if device.err != nil {
			slog.Error("Failed to initialize speaker", "error", device.err)
			return
		}
		slog.Debug("Audio: speaker initialized", "rate", rate, "buffer", buffer)
	})
	return device.rate, device.err
}

// SpeakerOutput plays decoded buffers on the default sound device and serves
// as the controller's clock.
type SpeakerOutput struct {
	rate   beep.SampleRate
	buffer time.Duration
	epoch  time.Time

	mu      sync.Mutex
	volume  float64
	current *effects.Volume
}

// NewSpeakerOutput creates an output. The device is opened on the first Start.
func NewSpeakerOutput(sampleRate int, buffer time.Duration) *SpeakerOutput {
	return &SpeakerOutput{
		rate:   beep.SampleRate(sampleRate),
		buffer: buffer,
		epoch:  time.Now(),
		volume: 1.0,
	}
}

// Now returns the time elapsed since the output was created.
func (o *SpeakerOutput) Now() time.Duration {
	return time.Since(o.epoch)
}

// Start plays a from offset.
func (o *SpeakerOutput) Start(a *Decoded, offset time.Duration, onEnd func()) (Handle, error) {
	rate, err := initDevice(o.rate, o.buffer)
	if err != nil {
		return nil, fmt.Errorf("speaker init: %w", err)
	}

	var s beep.Streamer = a.Streamer(a.FrameAt(offset))
	if src := beep.SampleRate(a.SampleRate()); src != rate {
		s = beep.Resample(3, src, rate, s)
	}

	o.mu.Lock()
	vol := &effects.Volume{
		Streamer: s,
		Base:     2,
		Volume:   volumeToPower(o.volume),
		Silent:   o.volume <= 0.01,
	}
	o.current = vol
	o.mu.Unlock()

	ctrl := &beep.Ctrl{Streamer: vol}
	// The callback runs on the speaker goroutine with the speaker locked.
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		go onEnd()
	})))
	return &speakerHandle{ctrl: ctrl}, nil
}

// SetVolume updates the volume of the live output and of later ones.
func (o *SpeakerOutput) SetVolume(vol float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.volume = vol
	if o.current == nil {
		return
	}
	speaker.Lock()
	o.current.Volume = volumeToPower(vol)
	o.current.Silent = vol <= 0.01
	speaker.Unlock()
}

type speakerHandle struct {
	ctrl *beep.Ctrl
}

// Halt detaches the streamer; the sequence then drains and fires its callback.
func (h *speakerHandle) Halt() {
	speaker.Lock()
	h.ctrl.Streamer = nil
	speaker.Unlock()
}
