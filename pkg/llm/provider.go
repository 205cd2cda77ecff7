package llm

import (
	"context"
	"errors"

	"vibewalk/pkg/model"
)

var (
	// ErrNotConfigured is returned when the provider has no credentials.
	ErrNotConfigured = errors.New("llm provider not configured")
	// ErrRefused is returned when the model blocks the prompt or the answer.
	ErrRefused = errors.New("model refused the request")
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("model returned no text")
)

// NarrativeRequest is one story request.
type NarrativeRequest struct {
	// Prompt is the fully rendered instruction.
	Prompt string
	// Coords anchor location grounding. They are passed to the provider's
	// retrieval tools, never echoed into logs.
	Coords model.Coordinates
	// Language is a BCP 47 tag such as "en-US".
	Language string
}

// Provider defines the interface for the narrative text service.
type Provider interface {
	// GenerateNarrative returns the story text with its grounding references.
	GenerateNarrative(ctx context.Context, req NarrativeRequest) (*model.NarrativeResult, error)

	// HealthCheck verifies that the provider is configured and reachable.
	HealthCheck(ctx context.Context) error
}
