package gemini

import (
	"math/rand"

	"google.golang.org/genai"

	"vibewalk/pkg/llm"
)

// resolveModel returns the target model name and configuration for the given intent.
func (c *Client) resolveModel(intent string, req llm.NarrativeRequest) (string, *genai.GenerateContentConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	targetModel := c.modelName
	if profileModel, ok := c.profiles[intent]; ok && profileModel != "" {
		targetModel = profileModel
	}

	cfg := &genai.GenerateContentConfig{}

	if c.searchGrounding {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	if c.mapsGrounding {
		cfg.Tools = append(cfg.Tools, &genai.Tool{GoogleMaps: &genai.GoogleMaps{}})

		lat, lon := req.Coords.Lat, req.Coords.Lon
		cfg.ToolConfig = &genai.ToolConfig{
			RetrievalConfig: &genai.RetrievalConfig{
				LatLng:       &genai.LatLng{Latitude: &lat, Longitude: &lon},
				LanguageCode: req.Language,
			},
		}
	}

	if c.temperatureBase > 0 {
		temp := sampleTemperature(c.temperatureBase, c.temperatureJitter)
		cfg.Temperature = &temp
	}

	return targetModel, cfg
}

// sampleTemperature samples from a normal distribution centered on base.
// Uses jitter as the approximate range (±jitter), with σ = jitter/2.
// Result is clamped to [base-jitter, base+jitter] and minimum 0.1.
func sampleTemperature(base, jitter float32) float32 {
	if jitter <= 0 {
		return base
	}

	sigma := float64(jitter) / 2.0
	sample := float64(base) + rand.NormFloat64()*sigma

	sample = max(sample, float64(base)-float64(jitter))
	sample = min(sample, float64(base)+float64(jitter))
	sample = max(sample, 0.1)

	return float32(sample)
}
