// Package audio decodes synthesized speech and plays it back with
// pause/resume bookkeeping.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// ErrDecode is returned when no decode strategy could produce a buffer.
var ErrDecode = errors.New("audio decode failed")

var errNoContainer = errors.New("no container header")

// Decoder turns an encoded payload into a Decoded buffer. It first tries the
// self-describing containers (WAV, MP3) and falls back to raw PCM.
type Decoder struct {
	fallback PCMFormat
}

// NewDecoder creates a decoder with the given raw PCM fallback format.
func NewDecoder(fallback PCMFormat) *Decoder {
	return &Decoder{fallback: fallback}
}

// Decode decodes payload. It has no side effects beyond allocating the buffer.
func (d *Decoder) Decode(payload []byte) (*Decoded, error) {
	dec, err := decodeContainer(payload)
	if err == nil {
		return dec, nil
	}
	slog.Debug("Audio: container decode rejected payload, using raw PCM", "bytes", len(payload), "reason", err)

	dec, pcmErr := DecodePCM(payload, d.fallback)
	if pcmErr != nil {
		return nil, fmt.Errorf("%w: container: %v; pcm: %v", ErrDecode, err, pcmErr)
	}
	return dec, nil
}

func decodeContainer(payload []byte) (*Decoded, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
		source string
	)

	switch {
	case isWAV(payload):
		source = "wav"
		s, format, err = wav.Decode(bytes.NewReader(payload))
	case isMP3(payload):
		source = "mp3"
		s, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(payload)))
	default:
		return nil, errNoContainer
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	defer s.Close()

	frames, err := drain(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return newDecoded(int(format.SampleRate), format.NumChannels, frames, source), nil
}

func drain(s beep.Streamer) ([][2]float64, error) {
	var frames [][2]float64
	buf := make([][2]float64, 4096)
	for {
		n, ok := s.Stream(buf)
		frames = append(frames, buf[:n]...)
		if !ok {
			break
		}
	}
	return frames, s.Err()
}

func isWAV(b []byte) bool {
	return len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE"
}

func isMP3(b []byte) bool {
	if len(b) >= 3 && string(b[0:3]) == "ID3" {
		return true
	}
	// MPEG frame sync: 11 set bits, layer III.
	return len(b) >= 4 && b[0] == 0xFF && b[1]&0xE0 == 0xE0 && b[1]&0x06 == 0x02
}
