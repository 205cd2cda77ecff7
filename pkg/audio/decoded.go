package audio

import (
	"time"

	"github.com/gopxl/beep/v2"
)

// Decoded is a playback-ready audio buffer. It is immutable once built:
// callers read it through Frame, Len and Streamer only.
type Decoded struct {
	sampleRate int
	channels   int
	frames     [][2]float64
	source     string // "wav", "mp3" or "pcm"
}

func newDecoded(sampleRate, channels int, frames [][2]float64, source string) *Decoded {
	return &Decoded{
		sampleRate: sampleRate,
		channels:   channels,
		frames:     frames,
		source:     source,
	}
}

// SampleRate returns frames per second.
func (d *Decoded) SampleRate() int { return d.sampleRate }

// Channels returns the channel count of the source payload.
func (d *Decoded) Channels() int { return d.channels }

// Source names the decode path that produced the buffer.
func (d *Decoded) Source() string { return d.source }

// Len returns the number of frames.
func (d *Decoded) Len() int { return len(d.frames) }

// Frame returns frame i. Mono buffers carry the same value in both slots.
func (d *Decoded) Frame(i int) [2]float64 { return d.frames[i] }

// Duration returns the total play time.
func (d *Decoded) Duration() time.Duration {
	if d == nil || d.sampleRate <= 0 {
		return 0
	}
	return beep.SampleRate(d.sampleRate).D(len(d.frames))
}

// Format returns the beep format describing the buffer.
func (d *Decoded) Format() beep.Format {
	return beep.Format{
		SampleRate:  beep.SampleRate(d.sampleRate),
		NumChannels: d.channels,
		Precision:   2,
	}
}

// FrameAt converts an offset into a frame index clamped to [0, Len].
func (d *Decoded) FrameAt(offset time.Duration) int {
	if offset <= 0 {
		return 0
	}
	n := beep.SampleRate(d.sampleRate).N(offset)
	if n > len(d.frames) {
		return len(d.frames)
	}
	return n
}

// Streamer returns a seekable streamer over the buffer starting at frame from.
func (d *Decoded) Streamer(from int) beep.StreamSeeker {
	s := &frameStreamer{frames: d.frames}
	_ = s.Seek(from)
	return s
}

// frameStreamer walks a frame slice. It never mutates the frames it reads.
type frameStreamer struct {
	frames [][2]float64
	pos    int
}

func (s *frameStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= len(s.frames) {
		return 0, false
	}
	n = copy(samples, s.frames[s.pos:])
	s.pos += n
	return n, true
}

func (s *frameStreamer) Err() error { return nil }

func (s *frameStreamer) Len() int { return len(s.frames) }

func (s *frameStreamer) Position() int { return s.pos }

func (s *frameStreamer) Seek(p int) error {
	if p < 0 {
		p = 0
	}
	if p > len(s.frames) {
		p = len(s.frames)
	}
	s.pos = p
	return nil
}
