package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Request     RequestConfig     `yaml:"request"`
	Log         LogConfig         `yaml:"log"`
	History     HistoryConfig     `yaml:"history"`
	LLM         LLMConfig         `yaml:"llm"`
	TTS         TTSConfig         `yaml:"tts"`
	Audio       AudioConfig       `yaml:"audio"`
	Geolocation GeolocationConfig `yaml:"geolocation"`
	Narrator    NarratorConfig    `yaml:"narrator"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address" validate:"required"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries" validate:"gte=0,lte=10"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path" validate:"required"`
	Level string `yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// HistoryConfig controls the prompt/response history files.
type HistoryConfig struct {
	LLM HistorySettings `yaml:"llm"`
	TTS HistorySettings `yaml:"tts"`
}

// HistorySettings holds settings for one history file.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// LLMConfig holds settings for the narrative text provider.
type LLMConfig struct {
	Key               string            `yaml:"key"`
	Model             string            `yaml:"model" validate:"required"`
	Profiles          map[string]string `yaml:"profiles"` // intent -> model
	TemperatureBase   float32           `yaml:"temperature_base" validate:"gte=0,lte=2"`
	TemperatureJitter float32           `yaml:"temperature_jitter" validate:"gte=0,lte=1"`
	SearchGrounding   bool              `yaml:"search_grounding"`
	MapsGrounding     bool              `yaml:"maps_grounding"`
}

// TTSConfig holds Text-To-Speech settings.
type TTSConfig struct {
	Model    string `yaml:"model" validate:"required"`
	Voice    string `yaml:"voice" validate:"required"`
	Language string `yaml:"language"`
}

// AudioConfig holds decoding and playback settings.
type AudioConfig struct {
	OutputSampleRate   int      `yaml:"output_sample_rate" validate:"gte=8000,lte=192000"`
	BufferSize         Duration `yaml:"buffer_size"`
	EndTolerance       Duration `yaml:"end_tolerance"`
	Volume             float64  `yaml:"volume" validate:"gte=0,lte=1"`
	FallbackSampleRate int      `yaml:"fallback_sample_rate" validate:"gt=0"`
	FallbackChannels   int      `yaml:"fallback_channels" validate:"gte=1,lte=2"`
}

// GeolocationConfig selects where the session's location fix comes from.
type GeolocationConfig struct {
	Provider string              `yaml:"provider" validate:"oneof=static ip none"`
	Static   StaticLocationConfig `yaml:"static"`
	IP       IPLocationConfig     `yaml:"ip"`
}

// StaticLocationConfig is a fixed location fix.
type StaticLocationConfig struct {
	Lat float64 `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `yaml:"lon" validate:"gte=-180,lte=180"`
}

// IPLocationConfig configures the one-shot IP geolocation lookup.
type IPLocationConfig struct {
	URL      string `yaml:"url" validate:"omitempty,url"`
	LatField string `yaml:"lat_field"`
	LonField string `yaml:"lon_field"`
}

// NarratorConfig holds settings for the generation pipeline.
type NarratorConfig struct {
	WordsMin          int      `yaml:"words_min" validate:"gt=0"`
	WordsMax          int      `yaml:"words_max" validate:"gtefield=WordsMin"`
	Radius            Distance `yaml:"radius"`
	GenerationTimeout Duration `yaml:"generation_timeout"`
	DefaultVibe       string   `yaml:"default_vibe"`
	TargetLanguage    string   `yaml:"target_language"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:1971",
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(10 * time.Second),
			},
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		History: HistoryConfig{
			LLM: HistorySettings{Enabled: true, Path: "./logs/gemini.log"},
			TTS: HistorySettings{Enabled: true, Path: "./logs/tts.log"},
		},
		LLM: LLMConfig{
			Model: "gemini-2.5-flash",
			Profiles: map[string]string{
				"narrative": "gemini-2.5-flash",
			},
			TemperatureBase:   1.0,
			TemperatureJitter: 0.2,
			SearchGrounding:   true,
			MapsGrounding:     true,
		},
		TTS: TTSConfig{
			Model: "gemini-2.5-flash-preview-tts",
			Voice: "Kore",
		},
		Audio: AudioConfig{
			OutputSampleRate:   48000,
			BufferSize:         Duration(100 * time.Millisecond),
			EndTolerance:       Duration(250 * time.Millisecond),
			Volume:             1.0,
			FallbackSampleRate: 24000,
			FallbackChannels:   1,
		},
		Geolocation: GeolocationConfig{
			Provider: "ip",
			IP: IPLocationConfig{
				URL:      "http://ip-api.com/json/?fields=status,lat,lon",
				LatField: "lat",
				LonField: "lon",
			},
		},
		Narrator: NarratorConfig{
			WordsMin:          150,
			WordsMax:          200,
			Radius:            Distance(1500),
			GenerationTimeout: Duration(2 * time.Minute),
			DefaultVibe:       "mysterious",
			TargetLanguage:    "en-US",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, defaults are merged with its values but nothing is written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env fallback for secrets; never saved back to disk.
	if cfg.LLM.Key == "" {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			cfg.LLM.Key = key
		} else if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			cfg.LLM.Key = key
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var localePattern = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Narrator.TargetLanguage != "" && !localePattern.MatchString(c.Narrator.TargetLanguage) {
		return fmt.Errorf("invalid target_language format '%s': must be 'xx-YY' (e.g. 'en-US', 'de-DE')", c.Narrator.TargetLanguage)
	}
	if c.Audio.EndTolerance < c.Audio.BufferSize {
		return fmt.Errorf("invalid config: audio.end_tolerance (%s) must not be shorter than audio.buffer_size (%s)",
			time.Duration(c.Audio.EndTolerance), time.Duration(c.Audio.BufferSize))
	}
	if c.Geolocation.Provider == "ip" && c.Geolocation.IP.URL == "" {
		return fmt.Errorf("invalid config: geolocation.ip.url is required for the ip provider")
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# vibewalk configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), mi (miles)
# The Gemini API key may be left empty and provided via GEMINI_API_KEY.

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: static, ip, none\n${1}provider:"))

	reVibe := regexp.MustCompile(`(?m)^(\s+)default_vibe:`)
	data = reVibe.ReplaceAll(data, []byte("${1}# Options: mysterious, whimsical, historical, romantic, eerie, adventurous, serene\n${1}default_vibe:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
