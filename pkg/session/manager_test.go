package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibewalk/pkg/geo"
	"vibewalk/pkg/model"
	"vibewalk/pkg/narrator"
)

type fakeGate struct{ busy bool }

func (g *fakeGate) Busy() bool { return g.busy }

type failingLocator struct{ err error }

func (l failingLocator) Locate(ctx context.Context) (model.Coordinates, error) {
	return model.Coordinates{}, l.err
}

var morning = time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)

func TestNewManager(t *testing.T) {
	tests := []struct {
		name       string
		vibe       model.Vibe
		start      time.Time
		wantVibe   model.Vibe
		wantBucket model.TimeBucket
	}{
		{"Morning", model.VibeHistorical, morning, model.VibeHistorical, model.Morning},
		{"Night", model.VibeEerie, time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC), model.VibeEerie, model.Night},
		{"UnknownVibe", model.Vibe("grumpy"), morning, model.VibeMysterious, model.Morning},
		{"LabelCase", model.Vibe("Serene"), morning, model.VibeSerene, model.Morning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(nil, nil, tt.vibe, tt.start)
			st := m.State()
			assert.Equal(t, tt.wantVibe, st.Vibe)
			assert.Equal(t, tt.wantBucket, st.Bucket)
			assert.Nil(t, st.Coords)
			assert.False(t, st.CanGenerate)
		})
	}
}

func TestLocate(t *testing.T) {
	sf := model.Coordinates{Lat: 37.7749, Lon: -122.4194}
	m := NewManager(geo.StaticLocator{Fix: sf}, &fakeGate{}, model.VibeMysterious, morning)

	require.NoError(t, m.Locate(context.Background()))
	st := m.State()
	require.NotNil(t, st.Coords)
	assert.Equal(t, sf, *st.Coords)
	assert.Equal(t, "locator", st.Source)
	assert.Equal(t, geo.Cell(sf), st.Cell)
	assert.True(t, st.CanGenerate)

	req, err := m.Request()
	require.NoError(t, err)
	assert.Equal(t, sf, *req.Coords)
	assert.Equal(t, model.Morning, req.Bucket)
	assert.Equal(t, model.VibeMysterious, req.Vibe)
}

func TestLocate_Failure(t *testing.T) {
	m := NewManager(failingLocator{err: errors.New("permission denied")}, nil, model.VibeMysterious, morning)

	err := m.Locate(context.Background())
	assert.ErrorIs(t, err, narrator.ErrGeolocationUnavailable)

	st := m.State()
	assert.Contains(t, st.LocateError, "permission denied")
	assert.False(t, st.CanGenerate)

	_, err = m.Request()
	assert.ErrorIs(t, err, narrator.ErrGeolocationUnavailable)

	// A pushed fix recovers the session.
	require.NoError(t, m.SetLocation(model.Coordinates{Lat: 48.8584, Lon: 2.2945}))
	st = m.State()
	assert.Empty(t, st.LocateError)
	assert.Equal(t, "client", st.Source)
	_, err = m.Request()
	assert.NoError(t, err)
}

func TestLocate_FailureKeepsPreviousFix(t *testing.T) {
	m := NewManager(geo.DisabledLocator{}, nil, model.VibeMysterious, morning)
	require.NoError(t, m.SetLocation(model.Coordinates{Lat: 51.5, Lon: -0.12}))

	assert.Error(t, m.Locate(context.Background()))
	_, err := m.Request()
	assert.NoError(t, err)
}

func TestSetLocation_Invalid(t *testing.T) {
	m := NewManager(nil, nil, model.VibeMysterious, morning)
	assert.Error(t, m.SetLocation(model.Coordinates{Lat: 91, Lon: 0}))
	assert.Error(t, m.SetLocation(model.Coordinates{Lat: 0, Lon: -180.5}))
	assert.Nil(t, m.State().Coords)
}

func TestRequest_CopiesCoords(t *testing.T) {
	m := NewManager(nil, nil, model.VibeMysterious, morning)
	require.NoError(t, m.SetLocation(model.Coordinates{Lat: 10, Lon: 20}))

	req, err := m.Request()
	require.NoError(t, err)
	req.Coords.Lat = 0

	again, _ := m.Request()
	assert.Equal(t, 10.0, again.Coords.Lat)
}

func TestSetVibe(t *testing.T) {
	gate := &fakeGate{}
	m := NewManager(nil, gate, model.VibeMysterious, morning)

	require.NoError(t, m.SetVibe(model.VibeWhimsical))
	assert.Equal(t, model.VibeWhimsical, m.Vibe())

	assert.Error(t, m.SetVibe(model.Vibe("sarcastic")))
	assert.Equal(t, model.VibeWhimsical, m.Vibe())

	gate.busy = true
	assert.ErrorIs(t, m.SetVibe(model.VibeRomantic), narrator.ErrPipelineBusy)
	assert.Equal(t, model.VibeWhimsical, m.Vibe())

	gate.busy = false
	require.NoError(t, m.SetVibe(model.VibeRomantic))
	assert.Equal(t, model.VibeRomantic, m.Vibe())
}
