// Package gemini implements the narrative text provider on the Gemini API
// with Google Search and Google Maps grounding.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"vibewalk/pkg/config"
	"vibewalk/pkg/geo"
	"vibewalk/pkg/llm"
	"vibewalk/pkg/model"
	"vibewalk/pkg/tracker"
)

const (
	providerName     = "gemini.text"
	intentNarrative  = "narrative"
	defaultTextModel = "gemini-2.5-flash"
)

// generator is the subset of genai.Models used for generation.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Provider for Google Gemini.
type Client struct {
	genaiClient *genai.Client
	gen         generator
	apiKey      string
	modelName   string
	profiles    map[string]string // intent -> model
	tracker     *tracker.Tracker
	logPath     string

	searchGrounding bool
	mapsGrounding   bool

	// Temperature is sampled around base with a bell curve of width jitter.
	temperatureBase   float32
	temperatureJitter float32

	mu sync.RWMutex
}

// NewClient creates a new Gemini client. A missing key is not an error:
// the client stays unconfigured and every call fails with llm.ErrNotConfigured.
func NewClient(cfg config.LLMConfig, logPath string, t *tracker.Tracker) (*Client, error) {
	c := &Client{tracker: t, logPath: logPath}
	if err := c.Configure(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure updates the client with new settings.
func (c *Client) Configure(cfg config.LLMConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.apiKey = cfg.Key
	c.modelName = cfg.Model
	c.profiles = cfg.Profiles
	c.searchGrounding = cfg.SearchGrounding
	c.mapsGrounding = cfg.MapsGrounding
	c.temperatureBase = cfg.TemperatureBase
	c.temperatureJitter = cfg.TemperatureJitter

	if c.modelName == "" {
		c.modelName = defaultTextModel
	}

	if c.apiKey == "" {
		c.genaiClient = nil
		c.gen = nil
		return nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}
	c.genaiClient = client
	c.gen = client.Models
	return nil
}

// Close releases the client.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genaiClient = nil
	c.gen = nil
}

// GenerateNarrative asks the model for a grounded story.
func (c *Client) GenerateNarrative(ctx context.Context, req llm.NarrativeRequest) (*model.NarrativeResult, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	if gen == nil {
		return nil, llm.ErrNotConfigured
	}

	modelName, cfg := c.resolveModel(intentNarrative, req)
	logged := redactCoords(req.Prompt, req.Coords)

	slog.Debug("Gemini: generating narrative", "model", modelName, "cell", geo.Cell(req.Coords))
	start := time.Now()
	resp, err := gen.GenerateContent(ctx, modelName, genai.Text(req.Prompt), cfg)
	latency := time.Since(start)
	if err != nil {
		c.logPrompt(intentNarrative, logged, fmt.Sprintf("ERROR: %v", err))
		c.trackFailure()
		return nil, fmt.Errorf("generate narrative: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		c.logPrompt(intentNarrative, logged, fmt.Sprintf("REFUSED: %v", err))
		if c.tracker != nil {
			c.tracker.TrackAPIZero(providerName)
		}
		return nil, err
	}

	var meta *genai.GroundingMetadata
	if len(resp.Candidates) > 0 {
		meta = resp.Candidates[0].GroundingMetadata
	}
	logGroundingUsage(meta)

	result := &model.NarrativeResult{
		Text:        text,
		References:  references(meta),
		Suggestions: searchSuggestions(meta),
		Model:       modelName,
		Latency:     latency,
	}

	c.logPrompt(intentNarrative, logged, text)
	if c.tracker != nil {
		c.tracker.TrackAPISuccess(providerName, latency)
	}
	return result, nil
}

// HealthCheck verifies the key is present and the model is visible to it.
func (c *Client) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	client := c.genaiClient
	name := c.modelName
	c.mu.RUnlock()

	if client == nil {
		return fmt.Errorf("%w: missing api key", llm.ErrNotConfigured)
	}
	return validateModel(ctx, client.Models, name)
}

func (c *Client) trackFailure() {
	if c.tracker != nil {
		c.tracker.TrackAPIFailure(providerName)
	}
}

// refusalReasons are finish reasons that mean the model withheld its answer.
var refusalReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonRecitation:        true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonSPII:              true,
}

// responseText extracts the text of the first candidate, mapping blocked
// prompts, refusals and empty answers to llm errors.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", llm.ErrEmptyResponse
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", llm.ErrRefused, fb.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", llm.ErrEmptyResponse)
	}

	cand := resp.Candidates[0]
	if refusalReasons[cand.FinishReason] {
		return "", fmt.Errorf("%w: finish reason %s", llm.ErrRefused, cand.FinishReason)
	}

	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", llm.ErrEmptyResponse
	}
	return text, nil
}

// redactCoords replaces the rendered fix in a prompt with its H3 cell so the
// history file never holds the exact location.
func redactCoords(prompt string, coords model.Coordinates) string {
	return strings.ReplaceAll(prompt, coords.String(), "<h3:"+geo.Cell(coords)+">")
}

func (c *Client) logPrompt(name, prompt, response string) {
	if c.logPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.logPath), 0o755); err != nil {
		return
	}
	f, err := os.OpenFile(c.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	entry := fmt.Sprintf("[%s] PROMPT: %s\nPROMPT_TEXT:\n%s\n\nRESPONSE:\n%s\n%s\n",
		time.Now().Format("2006-01-02 15:04:05"), name, llm.Indent(prompt, "  "), llm.WordWrap(response, 80), strings.Repeat("-", 80))
	_, _ = f.WriteString(entry)
}
