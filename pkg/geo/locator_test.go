package geo

import (
	"context"
	"errors"
	"testing"

	"vibewalk/pkg/config"
	"vibewalk/pkg/model"
)

type fakeFetcher struct {
	body []byte
	err  error
	url  string
}

func (f *fakeFetcher) Get(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	f.url = u
	return f.body, f.err
}

func TestNewLocator(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.GeolocationConfig
		want    string
		wantErr bool
	}{
		{"Static", config.GeolocationConfig{Provider: "static", Static: config.StaticLocationConfig{Lat: 1, Lon: 2}}, "static", false},
		{"IP", config.GeolocationConfig{Provider: "ip", IP: config.IPLocationConfig{URL: "http://x"}}, "ip", false},
		{"None", config.GeolocationConfig{Provider: "none"}, "none", false},
		{"Unknown", config.GeolocationConfig{Provider: "gps"}, "", true},
		{"StaticInvalid", config.GeolocationConfig{Provider: "static", Static: config.StaticLocationConfig{Lat: 100}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLocator(tt.cfg, &fakeFetcher{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var got string
			switch l.(type) {
			case StaticLocator:
				got = "static"
			case *IPLocator:
				got = "ip"
			case DisabledLocator:
				got = "none"
			}
			if got != tt.want {
				t.Errorf("got %s locator, want %s", got, tt.want)
			}
		})
	}
}

func TestStaticLocator(t *testing.T) {
	fix := model.Coordinates{Lat: 37.7749, Lon: -122.4194}
	got, err := StaticLocator{Fix: fix}.Locate(context.Background())
	if err != nil || got != fix {
		t.Errorf("Locate() = %v, %v", got, err)
	}
}

func TestDisabledLocator(t *testing.T) {
	_, err := DisabledLocator{}.Locate(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestIPLocator(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		fetchErr error
		latField string
		want     model.Coordinates
		wantErr  bool
	}{
		{name: "IPAPI", body: `{"status":"success","lat":37.7749,"lon":-122.4194}`, want: model.Coordinates{Lat: 37.7749, Lon: -122.4194}},
		{name: "NoStatus", body: `{"lat":1.5,"lon":2.5}`, want: model.Coordinates{Lat: 1.5, Lon: 2.5}},
		{name: "StringFields", body: `{"latitude":"10.25","lon":"20.5"}`, latField: "latitude", want: model.Coordinates{Lat: 10.25, Lon: 20.5}},
		{name: "StatusFail", body: `{"status":"fail","message":"private range"}`, wantErr: true},
		{name: "MissingField", body: `{"lat":1}`, wantErr: true},
		{name: "BadJSON", body: `not json`, wantErr: true},
		{name: "OutOfRange", body: `{"lat":123,"lon":0}`, wantErr: true},
		{name: "FetchError", fetchErr: errors.New("dial tcp: refused"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{body: []byte(tt.body), err: tt.fetchErr}
			l, err := NewLocator(config.GeolocationConfig{
				Provider: "ip",
				IP:       config.IPLocationConfig{URL: "http://ip.test/json", LatField: tt.latField},
			}, f)
			if err != nil {
				t.Fatal(err)
			}

			got, err := l.Locate(context.Background())
			if f.url != "http://ip.test/json" {
				t.Errorf("fetched %q", f.url)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrUnavailable) {
					t.Errorf("expected ErrUnavailable, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Locate() = %v, want %v", got, tt.want)
			}
		})
	}
}
