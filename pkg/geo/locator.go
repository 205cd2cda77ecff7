package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vibewalk/pkg/config"
	"vibewalk/pkg/model"
)

// ErrUnavailable is returned when no location fix can be obtained.
var ErrUnavailable = errors.New("geolocation unavailable")

// Locator obtains a single location fix.
type Locator interface {
	Locate(ctx context.Context) (model.Coordinates, error)
}

// Fetcher performs a GET request. It is satisfied by *request.Client.
type Fetcher interface {
	Get(ctx context.Context, u string, headers map[string]string) ([]byte, error)
}

// NewLocator builds the locator named by cfg.Provider.
func NewLocator(cfg config.GeolocationConfig, f Fetcher) (Locator, error) {
	switch cfg.Provider {
	case "static":
		c := model.Coordinates{Lat: cfg.Static.Lat, Lon: cfg.Static.Lon}
		if err := Validate(c); err != nil {
			return nil, err
		}
		return StaticLocator{Fix: c}, nil
	case "ip":
		if f == nil {
			return nil, fmt.Errorf("ip locator requires an http client")
		}
		return &IPLocator{
			fetcher:  f,
			url:      cfg.IP.URL,
			latField: orDefault(cfg.IP.LatField, "lat"),
			lonField: orDefault(cfg.IP.LonField, "lon"),
		}, nil
	case "none", "":
		return DisabledLocator{}, nil
	default:
		return nil, fmt.Errorf("unknown geolocation provider %q", cfg.Provider)
	}
}

// StaticLocator always returns the configured fix.
type StaticLocator struct {
	Fix model.Coordinates
}

func (s StaticLocator) Locate(ctx context.Context) (model.Coordinates, error) {
	return s.Fix, nil
}

// DisabledLocator never yields a fix.
type DisabledLocator struct{}

func (DisabledLocator) Locate(ctx context.Context) (model.Coordinates, error) {
	return model.Coordinates{}, fmt.Errorf("%w: no provider configured", ErrUnavailable)
}

// IPLocator derives an approximate fix from the public IP address using a
// JSON lookup service.
type IPLocator struct {
	fetcher  Fetcher
	url      string
	latField string
	lonField string
}

// Locate performs the lookup. Any failure is reported as ErrUnavailable.
func (l *IPLocator) Locate(ctx context.Context) (model.Coordinates, error) {
	body, err := l.fetcher.Get(ctx, l.url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return model.Coordinates{}, fmt.Errorf("%w: invalid response: %v", ErrUnavailable, err)
	}
	if status, ok := payload["status"].(string); ok && !strings.EqualFold(status, "success") {
		msg, _ := payload["message"].(string)
		return model.Coordinates{}, fmt.Errorf("%w: lookup status %q %s", ErrUnavailable, status, msg)
	}

	lat, err := number(payload, l.latField)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	lon, err := number(payload, l.lonField)
	if err != nil {
		return model.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c := model.Coordinates{Lat: lat, Lon: lon}
	if err := Validate(c); err != nil {
		return model.Coordinates{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c, nil
}

// number reads a numeric field that may be encoded as a JSON number or string.
func number(m map[string]any, field string) (float64, error) {
	switch v := m[field].(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", field, err)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("field %q missing", field)
	default:
		return 0, fmt.Errorf("field %q has unexpected type %T", field, v)
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
