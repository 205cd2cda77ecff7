// Package narrator runs the generation cycle: story text, then speech, then
// decoded audio handed to the player.
package narrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vibewalk/pkg/audio"
	"vibewalk/pkg/config"
	"vibewalk/pkg/geo"
	"vibewalk/pkg/llm"
	"vibewalk/pkg/llm/prompts"
	"vibewalk/pkg/model"
	"vibewalk/pkg/tts"
)

// Player receives the decoded narration. *audio.Controller implements it.
type Player interface {
	Load(a *audio.Decoded)
	Unload()
	Play() error
}

// Pipeline owns the pipeline state. One cycle runs at a time; results of
// abandoned cycles are dropped by sequence number.
type Pipeline struct {
	text     llm.Provider
	speech   tts.Provider
	player   Player
	prompts  *prompts.Manager
	cfg      config.NarratorConfig
	fallback audio.PCMFormat

	mu        sync.Mutex
	stage     Stage
	errMsg    string
	narrative *model.NarrativeResult
	seq       uint64
	inFlight  bool
	cycleID   string
	updatedAt time.Time

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// NewPipeline creates an idle pipeline.
func NewPipeline(text llm.Provider, speech tts.Provider, player Player, pm *prompts.Manager, cfg config.NarratorConfig, fallback audio.PCMFormat) *Pipeline {
	return &Pipeline{
		text:      text,
		speech:    speech,
		player:    player,
		prompts:   pm,
		cfg:       cfg,
		fallback:  fallback,
		stage:     StageIdle,
		updatedAt: time.Now(),
		subs:      make(map[int]chan Snapshot),
	}
}

// RunFunc runs a started cycle to completion.
type RunFunc func(ctx context.Context) (*model.NarrativeResult, error)

// Start claims the pipeline for a new cycle and returns the function that
// runs it. Any loaded audio is stopped and discarded before Start returns.
// Without regenerate it fails with ErrPipelineBusy while another cycle is in
// flight; with regenerate the running cycle is abandoned.
func (p *Pipeline) Start(req Request, regenerate bool) (RunFunc, error) {
	if req.Coords == nil {
		return nil, ErrGeolocationUnavailable
	}
	seq, err := p.begin(regenerate)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*model.NarrativeResult, error) {
		return p.run(ctx, seq, req)
	}, nil
}

// Generate runs one cycle. It fails fast with ErrPipelineBusy while another
// cycle is in flight.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*model.NarrativeResult, error) {
	run, err := p.Start(req, false)
	if err != nil {
		return nil, err
	}
	return run(ctx)
}

// Regenerate abandons any running cycle, stops and unloads the current audio
// and starts a fresh cycle.
func (p *Pipeline) Regenerate(ctx context.Context, req Request) (*model.NarrativeResult, error) {
	run, err := p.Start(req, true)
	if err != nil {
		return nil, err
	}
	return run(ctx)
}

// Busy reports whether a cycle is in flight.
func (p *Pipeline) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inFlight
}

// Snapshot returns the current state.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Subscribe returns a channel receiving every state transition and a
// function that ends the subscription. Slow subscribers miss updates.
func (p *Pipeline) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
			close(ch)
		})
	}
}

func (p *Pipeline) begin(force bool) (uint64, error) {
	p.mu.Lock()
	if p.inFlight && !force {
		p.mu.Unlock()
		return 0, ErrPipelineBusy
	}
	if p.inFlight {
		slog.Info("Narrator: abandoning running cycle", "seq", p.seq)
	}
	p.seq++
	p.inFlight = true
	p.cycleID = uuid.NewString()
	p.narrative = nil
	p.errMsg = ""
	p.setStageLocked(StageGeneratingText)
	if p.player != nil {
		p.player.Unload()
	}
	seq := p.seq
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(snap)
	return seq, nil
}

func (p *Pipeline) run(ctx context.Context, seq uint64, req Request) (*model.NarrativeResult, error) {
	if d := time.Duration(p.cfg.GenerationTimeout); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	start := time.Now()
	coords := *req.Coords
	slog.Info("Narrator: generating", "seq", seq, "cell", geo.Cell(coords), "bucket", req.Bucket, "vibe", req.Vibe)

	// 1. Text
	res, err := p.generateText(ctx, coords, req)
	if err != nil {
		return nil, p.fail(seq, err)
	}
	if !p.advance(seq, StageSynthesizingVoice, res) {
		return nil, ErrSuperseded
	}

	// 2. Speech
	asset, err := p.synthesize(ctx, res.Text)
	if err != nil {
		return res, p.fail(seq, err)
	}
	if !p.advance(seq, StageDecodingAudio, nil) {
		return nil, ErrSuperseded
	}

	// 3. Decode
	decoded, err := p.decode(asset)
	if err != nil {
		return res, p.fail(seq, err)
	}

	// 4. Hand over to the player
	if err := p.commit(seq, decoded); err != nil {
		return res, err
	}

	slog.Info("Narrator: ready", "seq", seq, "words", res.WordCount(), "audio", decoded.Duration(), "total", time.Since(start))
	return res, nil
}

func (p *Pipeline) generateText(ctx context.Context, coords model.Coordinates, req Request) (*model.NarrativeResult, error) {
	if p.text == nil {
		return nil, fmt.Errorf("%w: %v", ErrTextGeneration, llm.ErrNotConfigured)
	}
	prompt, err := p.prompts.RenderNarrative(prompts.NarrativeData{
		Coords:   coords,
		Bucket:   req.Bucket,
		Vibe:     req.Vibe.Info(),
		WordsMin: p.cfg.WordsMin,
		WordsMax: p.cfg.WordsMax,
		RadiusKM: p.cfg.Radius.Kilometers(),
		Language: p.cfg.TargetLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: prompt: %v", ErrTextGeneration, err)
	}

	res, err := p.text.GenerateNarrative(ctx, llm.NarrativeRequest{
		Prompt:   prompt,
		Coords:   coords,
		Language: p.cfg.TargetLanguage,
	})
	if err != nil {
		slog.Warn("Narrator: text generation failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrTextGeneration, err)
	}
	if res == nil || res.Text == "" {
		return nil, fmt.Errorf("%w: %v", ErrTextGeneration, llm.ErrEmptyResponse)
	}

	res.ID = uuid.NewString()
	res.Vibe = req.Vibe
	res.Bucket = req.Bucket
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	if n := res.WordCount(); p.cfg.WordsMax > 0 && n > p.cfg.WordsMax+50 {
		slog.Warn("Narrator: story longer than requested", "words", n, "max", p.cfg.WordsMax)
	}
	return res, nil
}

func (p *Pipeline) synthesize(ctx context.Context, text string) (*tts.Asset, error) {
	if p.speech == nil {
		return nil, fmt.Errorf("%w: no speech provider", ErrSpeechSynthesis)
	}
	asset, err := p.speech.Synthesize(ctx, text)
	if err != nil {
		slog.Warn("Narrator: speech synthesis failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSpeechSynthesis, err)
	}
	if asset == nil || len(asset.Data) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrSpeechSynthesis, tts.ErrNoAudio)
	}
	return asset, nil
}

func (p *Pipeline) decode(asset *tts.Asset) (*audio.Decoded, error) {
	format := p.fallback
	if rate, ok := tts.PCMRate(asset.MIMEType); ok {
		format.SampleRate = rate
	}
	decoded, err := audio.NewDecoder(format).Decode(asset.Data)
	if err != nil {
		return nil, err
	}
	slog.Debug("Narrator: decoded audio", "source", decoded.Source(), "mime", asset.MIMEType, "duration", decoded.Duration())
	return decoded, nil
}

// commit loads and starts the audio if seq is still current.
func (p *Pipeline) commit(seq uint64, decoded *audio.Decoded) error {
	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		return ErrSuperseded
	}
	if p.player == nil {
		p.mu.Unlock()
		return p.fail(seq, fmt.Errorf("%w: no player", ErrAudioSystem))
	}
	p.player.Load(decoded)
	err := p.player.Play()
	p.mu.Unlock()

	if err != nil {
		return p.fail(seq, fmt.Errorf("%w: %v", ErrAudioSystem, err))
	}
	if !p.advance(seq, StageReady, nil) {
		return ErrSuperseded
	}
	return nil
}

// advance moves the current cycle to stage. It returns false if seq was
// superseded. A non-nil narrative is published with the transition.
func (p *Pipeline) advance(seq uint64, stage Stage, res *model.NarrativeResult) bool {
	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		slog.Debug("Narrator: dropping stale result", "seq", seq, "current", p.seq, "stage", stage)
		return false
	}
	if res != nil {
		p.narrative = res
	}
	p.setStageLocked(stage)
	if stage.Settled() {
		p.inFlight = false
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.publish(snap)
	return true
}

// fail ends the cycle with err. Stale cycles get ErrSuperseded instead and
// leave state alone.
func (p *Pipeline) fail(seq uint64, err error) error {
	p.mu.Lock()
	if seq != p.seq {
		p.mu.Unlock()
		slog.Debug("Narrator: ignoring failure of stale cycle", "seq", seq, "error", err)
		return ErrSuperseded
	}
	p.errMsg = err.Error()
	p.inFlight = false
	p.setStageLocked(StageFailed)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	slog.Error("Narrator: cycle failed", "seq", seq, "error", err)
	p.publish(snap)
	return err
}

func (p *Pipeline) setStageLocked(s Stage) {
	p.stage = s
	p.updatedAt = time.Now()
}

func (p *Pipeline) snapshotLocked() Snapshot {
	return Snapshot{
		Stage:     p.stage,
		Error:     p.errMsg,
		Narrative: p.narrative,
		Seq:       p.seq,
		CycleID:   p.cycleID,
		UpdatedAt: p.updatedAt,
	}
}

func (p *Pipeline) publish(s Snapshot) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- s:
		default:
			slog.Debug("Narrator: subscriber lagging, dropping update", "subscriber", id, "stage", s.Stage)
		}
	}
}
