// Package gemini implements speech synthesis with Gemini's audio output
// modality and a single prebuilt voice.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/genai"

	"vibewalk/pkg/config"
	"vibewalk/pkg/tracker"
	"vibewalk/pkg/tts"
)

const (
	providerName    = "gemini.tts"
	defaultTTSModel = "gemini-2.5-flash-preview-tts"
)

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider implements tts.Provider for Gemini speech generation.
type Provider struct {
	gen      generator
	model    string
	voice    string
	language string
	tracker  *tracker.Tracker

	mu sync.RWMutex
}

// NewProvider creates the provider. Without an API key every Synthesize
// call fails.
func NewProvider(apiKey string, cfg config.TTSConfig, t *tracker.Tracker) (*Provider, error) {
	p := &Provider{
		model:    cfg.Model,
		voice:    cfg.Voice,
		language: cfg.Language,
		tracker:  t,
	}
	if p.model == "" {
		p.model = defaultTTSModel
	}
	if p.voice == "" {
		p.voice = DefaultVoice
	}
	if v, ok := LookupVoice(p.voice); ok {
		p.voice = v.Name
	} else {
		slog.Warn("TTS: unknown Gemini voice, passing through", "voice", p.voice)
	}

	if apiKey == "" {
		return p, nil
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	p.gen = client.Models
	return p, nil
}

// Voice returns the configured voice name.
func (p *Provider) Voice() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.voice
}

// Voices returns the prebuilt voices.
func (p *Provider) Voices() []tts.Voice {
	return Voices()
}

// Synthesize speaks text with the configured voice and returns the first
// inline audio part of the response.
func (p *Provider) Synthesize(ctx context.Context, text string) (*tts.Asset, error) {
	p.mu.RLock()
	gen, model, voice, lang := p.gen, p.model, p.voice, p.language
	p.mu.RUnlock()

	if gen == nil {
		return nil, fmt.Errorf("gemini tts not configured: missing api key")
	}

	spoken := tts.CleanForSpeech(text)
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
			LanguageCode: lang,
		},
	}

	start := time.Now()
	resp, err := gen.GenerateContent(ctx, model, genai.Text(spoken), cfg)
	if err != nil {
		tts.Log("gemini", voice, spoken, 0, err)
		p.trackFailure()
		return nil, fmt.Errorf("speech request: %w", err)
	}

	asset := inlineAudio(resp)
	if asset == nil {
		tts.Log("gemini", voice, spoken, 0, tts.ErrNoAudio)
		if p.tracker != nil {
			p.tracker.TrackAPIZero(providerName)
		}
		return nil, tts.ErrNoAudio
	}

	latency := time.Since(start)
	tts.Log("gemini", voice, spoken, len(asset.Data), nil)
	if p.tracker != nil {
		p.tracker.TrackAPISuccess(providerName, latency)
	}
	slog.Debug("TTS: synthesized", "voice", voice, "bytes", len(asset.Data), "mime", asset.MIMEType, "latency", latency)
	return asset, nil
}

func (p *Provider) trackFailure() {
	if p.tracker != nil {
		p.tracker.TrackAPIFailure(providerName)
	}
}

// inlineAudio returns the first non-empty inline data part, or nil.
func inlineAudio(resp *genai.GenerateContentResponse) *tts.Asset {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &tts.Asset{Data: part.InlineData.Data, MIMEType: part.InlineData.MIMEType}
			}
		}
	}
	return nil
}
