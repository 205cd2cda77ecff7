package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"
)

// modelService is the subset of genai.Models used for validation.
type modelService interface {
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
	List(ctx context.Context, config *genai.ListModelsConfig) (genai.Page[genai.Model], error)
}

// validateModel checks that the configured model is available for the key.
// On failure it logs the gemini models the key can see.
func validateModel(ctx context.Context, svc modelService, name string) error {
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}

	_, err := svc.Get(ctx, name, nil)
	if err == nil {
		slog.Debug("Gemini model validation success", "model", name)
		return nil
	}

	slog.Warn("Gemini model validation failed, fetching available models...", "model", name, "error", err)
	it := newModelIterator(ctx, svc)
	var available []string
	for {
		m, nextErr := it.Next()
		if errors.Is(nextErr, iterator.Done) {
			break
		}
		if nextErr != nil {
			slog.Warn("Failed to list models", "error", nextErr)
			break
		}
		if strings.Contains(strings.ToLower(m.Name), "gemini") {
			available = append(available, m.Name)
		}
	}
	if len(available) > 0 {
		slog.Warn("Available 'gemini' models for this key", "models", strings.Join(available, ", "))
	}
	return fmt.Errorf("model %s unavailable: %w", name, err)
}

// modelIterator walks genai model pages one item at a time and reports
// exhaustion with iterator.Done.
type modelIterator struct {
	ctx     context.Context
	svc     modelService
	page    genai.Page[genai.Model]
	started bool
	idx     int
}

func newModelIterator(ctx context.Context, svc modelService) *modelIterator {
	return &modelIterator{ctx: ctx, svc: svc}
}

// Next returns the next model, or iterator.Done.
func (it *modelIterator) Next() (*genai.Model, error) {
	if !it.started {
		page, err := it.svc.List(it.ctx, nil)
		if err != nil {
			return nil, err
		}
		it.page, it.started = page, true
	}

	for it.idx >= len(it.page.Items) {
		next, err := it.page.Next(it.ctx)
		if errors.Is(err, genai.ErrPageDone) {
			return nil, iterator.Done
		}
		if err != nil {
			return nil, err
		}
		it.page, it.idx = next, 0
	}

	m := it.page.Items[it.idx]
	it.idx++
	return m, nil
}
