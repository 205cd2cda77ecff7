package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
)

// PCMFormat describes headerless 16-bit little-endian signed PCM.
type PCMFormat struct {
	SampleRate int
	Channels   int
}

// DefaultPCM is the raw format returned by the speech service.
var DefaultPCM = PCMFormat{SampleRate: 24000, Channels: 1}

// DecodePCM interprets payload as interleaved 16-bit little-endian signed
// samples and normalises them to [-1.0, 1.0). A trailing partial frame is
// dropped with a warning; an empty payload yields an empty buffer.
func DecodePCM(payload []byte, f PCMFormat) (*Decoded, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("invalid pcm format %d Hz x %d", f.SampleRate, f.Channels)
	}

	frameBytes := 2 * f.Channels
	n := len(payload) / frameBytes
	if rem := len(payload) % frameBytes; rem != 0 {
		slog.Warn("Audio: PCM payload not frame aligned, truncating", "bytes", len(payload), "dropped", rem)
	}

	frames := make([][2]float64, n)
	for i := range frames {
		base := i * frameBytes
		left := sampleAt(payload, base)
		right := left
		if f.Channels > 1 {
			right = sampleAt(payload, base+2)
		}
		frames[i] = [2]float64{left, right}
	}
	return newDecoded(f.SampleRate, f.Channels, frames, "pcm"), nil
}

func sampleAt(b []byte, off int) float64 {
	return float64(int16(binary.LittleEndian.Uint16(b[off:]))) / 32768
}
