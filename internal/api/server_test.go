package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibewalk/pkg/audio"
	"vibewalk/pkg/config"
	"vibewalk/pkg/llm"
	"vibewalk/pkg/llm/prompts"
	"vibewalk/pkg/model"
	"vibewalk/pkg/narrator"
	"vibewalk/pkg/probe"
	"vibewalk/pkg/session"
	"vibewalk/pkg/tracker"
	"vibewalk/pkg/tts"
	"vibewalk/pkg/version"
)

type fakeNarrator struct {
	mu         sync.Mutex
	busy       bool
	startErr   error
	snap       narrator.Snapshot
	generated  []narrator.Request
	regenerate int
	ch         chan narrator.Snapshot
}

func (f *fakeNarrator) Start(req narrator.Request, regenerate bool) (narrator.RunFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	if f.busy && !regenerate {
		return nil, narrator.ErrPipelineBusy
	}
	if regenerate {
		f.regenerate++
	}
	f.generated = append(f.generated, req)
	return func(ctx context.Context) (*model.NarrativeResult, error) {
		return &model.NarrativeResult{Text: "story"}, nil
	}, nil
}

func (f *fakeNarrator) Snapshot() narrator.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeNarrator) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *fakeNarrator) Subscribe() (<-chan narrator.Snapshot, func()) {
	return f.ch, func() {}
}

type fakePlayer struct {
	mu      sync.Mutex
	status  audio.Status
	err     error
	actions []string
}

func (p *fakePlayer) do(action string, st audio.State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, action)
	if p.err != nil {
		return p.err
	}
	p.status.State = st
	return nil
}

func (p *fakePlayer) Play() error  { return p.do("play", audio.StatePlaying) }
func (p *fakePlayer) Pause() error { return p.do("pause", audio.StatePaused) }
func (p *fakePlayer) Stop() error  { return p.do("stop", audio.StateStopped) }

func (p *fakePlayer) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Volume = v
}

func (p *fakePlayer) Status() audio.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

type testServer struct {
	mux      *http.ServeMux
	narrator *fakeNarrator
	player   *fakePlayer
	session  *session.Manager
	feed     *AudioFeed
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		narrator: &fakeNarrator{snap: narrator.Snapshot{Stage: narrator.StageIdle}, ch: make(chan narrator.Snapshot, 4)},
		player:   &fakePlayer{status: audio.Status{State: audio.StateStopped, Volume: 1}},
		feed:     NewAudioFeed(),
	}
	start := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	ts.session = session.NewManager(nil, ts.narrator, model.VibeMysterious, start)

	nh := NewNarratorHandler(ts.narrator, ts.session)
	nh.run = func(fn func()) { fn() }

	stats := NewStatsHandler(tracker.New(), start)
	ts.mux = NewMux(stats, NewSessionHandler(ts.session), nh, NewAudioHandler(ts.player),
		NewEventsHandler(ts.narrator, ts.player, ts.feed), nil)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/version", "")
	assert.Equal(t, version.Version, decode[map[string]string](t, rec)["version"])
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	st := decode[session.State](t, ts.do(t, http.MethodGet, "/api/session", ""))
	assert.Nil(t, st.Coords)
	assert.Equal(t, model.Morning, st.Bucket)
	assert.False(t, st.CanGenerate)

	rec := ts.do(t, http.MethodPost, "/api/session/location", `{"lat":37.7749,"lon":-122.4194}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decode[session.State](t, rec)
	require.NotNil(t, st.Coords)
	assert.Equal(t, 37.7749, st.Coords.Lat)
	assert.True(t, st.CanGenerate)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"LocationMissingLon", "/api/session/location", `{"lat":1}`, http.StatusBadRequest},
		{"LocationOutOfRange", "/api/session/location", `{"lat":95,"lon":0}`, http.StatusBadRequest},
		{"LocationBadJSON", "/api/session/location", `{`, http.StatusBadRequest},
		{"VibeUnknown", "/api/session/vibe", `{"vibe":"grumpy"}`, http.StatusBadRequest},
		{"VibeOK", "/api/session/vibe", `{"vibe":"Serene"}`, http.StatusOK},
		{"LocateDisabled", "/api/session/locate", "", http.StatusPreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, model.VibeSerene, ts.session.Vibe())

	ts.narrator.busy = true
	rec = ts.do(t, http.MethodPost, "/api/session/vibe", `{"vibe":"eerie"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.VibeSerene, ts.session.Vibe())

	vibes := decode[[]model.VibeInfo](t, ts.do(t, http.MethodGet, "/api/vibes", ""))
	assert.Len(t, vibes, 7)
}

func TestHandleGenerate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/narrator/generate", `{}`)
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Empty(t, ts.narrator.generated)

	require.NoError(t, ts.session.SetLocation(model.Coordinates{Lat: 37.7749, Lon: -122.4194}))

	rec = ts.do(t, http.MethodPost, "/api/narrator/generate", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ts.narrator.generated, 1)
	got := ts.narrator.generated[0]
	assert.Equal(t, model.Morning, got.Bucket)
	assert.Equal(t, model.VibeMysterious, got.Vibe)
	assert.Equal(t, -122.4194, got.Coords.Lon)

	ts.narrator.busy = true
	rec = ts.do(t, http.MethodPost, "/api/narrator/generate", `{"regenerate":false}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "generation already in progress", decode[errorResponse](t, rec).Message)

	rec = ts.do(t, http.MethodPost, "/api/narrator/generate", `{"regenerate":true}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, ts.narrator.regenerate)
}

func TestHandleGenerate_StartErrorReported(t *testing.T) {
	ts := newTestServer(t)
	require.NoError(t, ts.session.SetLocation(model.Coordinates{Lat: 37.7749, Lon: -122.4194}))

	// Busy() says idle but the pipeline rejects the start.
	ts.narrator.startErr = narrator.ErrPipelineBusy
	rec := ts.do(t, http.MethodPost, "/api/narrator/generate", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, ts.narrator.generated)
}

type gatedText struct {
	gate chan struct{}
}

func (g *gatedText) GenerateNarrative(ctx context.Context, req llm.NarrativeRequest) (*model.NarrativeResult, error) {
	<-g.gate
	return &model.NarrativeResult{Text: "Gulls over the pier."}, nil
}

func (g *gatedText) HealthCheck(ctx context.Context) error { return nil }

type silentSpeech struct{}

func (silentSpeech) Synthesize(ctx context.Context, text string) (*tts.Asset, error) {
	return &tts.Asset{Data: make([]byte, 4800), MIMEType: "audio/L16;codec=pcm;rate=24000"}, nil
}

func (silentSpeech) Voices() []tts.Voice { return nil }

type stubPlayer struct{}

func (stubPlayer) Load(a *audio.Decoded) {}
func (stubPlayer) Unload()               {}
func (stubPlayer) Play() error           { return nil }

func TestHandleGenerate_ConcurrentStartsOneAccepted(t *testing.T) {
	pm, err := prompts.Default()
	require.NoError(t, err)
	text := &gatedText{gate: make(chan struct{})}
	pipeline := narrator.NewPipeline(text, silentSpeech{}, stubPlayer{}, pm, config.DefaultConfig().Narrator, audio.DefaultPCM)

	sess := session.NewManager(nil, pipeline, model.VibeSerene, time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC))
	require.NoError(t, sess.SetLocation(model.Coordinates{Lat: 37.7749, Lon: -122.4194}))
	nh := NewNarratorHandler(pipeline, sess)

	const n = 8
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			nh.HandleGenerate(rec, httptest.NewRequest(http.MethodPost, "/api/narrator/generate", strings.NewReader(`{}`)))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	accepted, conflicts := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, n-1, conflicts)

	close(text.gate)
	assert.Eventually(t, func() bool {
		return pipeline.Snapshot().Stage == narrator.StageReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandleNarratorStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.narrator.snap = narrator.Snapshot{
		Stage:     narrator.StageFailed,
		Error:     "narrative connection interrupted: 503",
		Narrative: nil,
		Seq:       4,
	}

	resp := decode[NarratorStatusResponse](t, ts.do(t, http.MethodGet, "/api/narrator/status", ""))
	assert.Equal(t, narrator.StageFailed, resp.Stage)
	assert.Equal(t, http.StatusBadGateway, resp.ErrorCode)
	assert.Equal(t, uint64(4), resp.Seq)
	assert.Contains(t, resp.Error, "interrupted")
}

func TestAudioEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/audio/control", `{"action":"play"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[AudioStatusResponse](t, rec).IsPlaying)

	rec = ts.do(t, http.MethodPost, "/api/audio/control", `{"action":"pause"}`)
	assert.True(t, decode[AudioStatusResponse](t, rec).IsPaused)

	rec = ts.do(t, http.MethodPost, "/api/audio/control", `{"action":"resume"}`)
	assert.Equal(t, audio.StatePlaying, decode[AudioStatusResponse](t, rec).State)

	rec = ts.do(t, http.MethodPost, "/api/audio/control", `{"action":"rewind"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/audio/volume", `{"volume":0.4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.4, decode[AudioStatusResponse](t, rec).Volume)

	rec = ts.do(t, http.MethodPost, "/api/audio/volume", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.player.err = audio.ErrNoAudioLoaded
	rec = ts.do(t, http.MethodPost, "/api/audio/control", `{"action":"stop"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	ts.player.err = fmt.Errorf("%w: device gone", audio.ErrAudioSystem)
	rec = ts.do(t, http.MethodPost, "/api/audio/control", `{"action":"play"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	assert.Equal(t, []string{"play", "pause", "play", "stop", "play"}, ts.player.actions)

	rec = ts.do(t, http.MethodGet, "/api/audio/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{narrator.ErrPipelineBusy, http.StatusConflict},
		{audio.ErrNoAudioLoaded, http.StatusConflict},
		{fmt.Errorf("%w: denied", narrator.ErrGeolocationUnavailable), http.StatusPreconditionFailed},
		{fmt.Errorf("%w: x", errBadRequest), http.StatusBadRequest},
		{narrator.ErrTextGeneration, http.StatusBadGateway},
		{errors.New("other"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestStats(t *testing.T) {
	tr := tracker.New()
	tr.TrackAPISuccess("gemini.text", 2*time.Second)
	tr.TrackAPIFailure("gemini.text")
	h := NewStatsHandler(tr, time.Now().Add(-time.Minute))
	h.SetProbes([]probe.Status{{Name: "Gemini API key", Critical: true, Passed: true}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[StatsResponse](t, rec)
	p := resp.Providers["gemini.text"]
	assert.Equal(t, int64(1), p.APISuccess)
	assert.Equal(t, int64(1), p.APIFailures)
	assert.Equal(t, int64(50), p.SuccessRate)
	assert.Equal(t, int64(2000), p.AvgLatencyMS)
	assert.Len(t, resp.Probes, 1)
	assert.GreaterOrEqual(t, resp.Diagnostics.UptimeSec, int64(59))

	rec = httptest.NewRecorder()
	h.HandleReset(rec, httptest.NewRequest(http.MethodDelete, "/api/stats", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, tr.Snapshot())
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() map[string]any {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev map[string]any
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	assert.Equal(t, "pipeline", read()["type"])
	assert.Equal(t, "audio", read()["type"])

	ts.narrator.ch <- narrator.Snapshot{Stage: narrator.StageGeneratingText, Seq: 1}
	ev := read()
	assert.Equal(t, "pipeline", ev["type"])
	assert.Equal(t, "generating_text", ev["data"].(map[string]any)["stage"])

	// The audio subscription is registered before the initial events are sent.
	ts.feed.Publish(audio.Status{State: audio.StatePaused, Loaded: true, Position: 1500 * time.Millisecond})
	ev = read()
	assert.Equal(t, "audio", ev["type"])
	data := ev["data"].(map[string]any)
	assert.Equal(t, "paused", data["state"])
	assert.Equal(t, float64(1500), data["position_ms"])
}

func TestAudioFeed(t *testing.T) {
	f := NewAudioFeed()
	ch, cancel := f.Subscribe()
	f.Publish(audio.Status{State: audio.StatePlaying})
	assert.Equal(t, audio.StatePlaying, (<-ch).State)

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	f.Publish(audio.Status{})
}
