package tts

import (
	"context"
	"errors"
)

// ErrNoAudio is returned when the speech service answers without audio data.
var ErrNoAudio = errors.New("no audio in speech response")

// Asset is a synthesized audio payload as returned by the speech service.
type Asset struct {
	Data     []byte
	MIMEType string
}

// Provider defines the interface for Text-To-Speech engines.
type Provider interface {
	// Synthesize turns text into audio with the provider's configured voice.
	Synthesize(ctx context.Context, text string) (*Asset, error)

	// Voices returns the voices the provider can use.
	Voices() []Voice
}

// Voice represents an available TTS voice.
type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Gender string `json:"gender"`
	Style  string `json:"style"`
}
