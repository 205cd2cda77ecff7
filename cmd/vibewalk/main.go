package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"vibewalk/internal/api"
	"vibewalk/pkg/audio"
	"vibewalk/pkg/config"
	"vibewalk/pkg/geo"
	"vibewalk/pkg/llm/gemini"
	"vibewalk/pkg/llm/prompts"
	"vibewalk/pkg/logging"
	"vibewalk/pkg/model"
	"vibewalk/pkg/narrator"
	"vibewalk/pkg/probe"
	"vibewalk/pkg/request"
	"vibewalk/pkg/session"
	"vibewalk/pkg/tracker"
	"vibewalk/pkg/tts"
	ttsgemini "vibewalk/pkg/tts/gemini"
	"vibewalk/pkg/version"
)

var (
	app        = kingpin.New("vibewalk", "Location-aware narrated walks")
	configPath = app.Flag("config", "Path to config file").Short('c').Default("configs/vibewalk.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	serveCmd      = app.Command("serve", "Start the server (default)").Default()
	initConfigCmd = app.Command("init-config", "Generate default config file and exit")
	vibesCmd      = app.Command("vibes", "List available vibes and exit")
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	app.Version(version.Version)
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case initConfigCmd.FullCommand():
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", *configPath)
	case vibesCmd.FullCommand():
		printVibes(os.Stdout)
	case serveCmd.FullCommand():
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := run(ctx, *configPath, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
			os.Exit(1)
		}
	}
}

func printVibes(w io.Writer) {
	for _, v := range model.Vibes() {
		fmt.Fprintf(w, "%-12s %s\n", v.ID, v.Description)
	}
}

// components holds the wired parts of a running server.
type components struct {
	tracker  *tracker.Tracker
	llm      *gemini.Client
	player   *audio.Controller
	pipeline *narrator.Pipeline
	session  *session.Manager
}

func run(ctx context.Context, configPath string, debug bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if debug {
		appCfg.Log.Server.Level = "DEBUG"
	}

	cleanupLogs, err := logging.Init(&appCfg.Log, &appCfg.History)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("vibewalk started", "version", version.Version)
	started := time.Now()

	comps, err := wire(appCfg, started)
	if err != nil {
		return err
	}
	defer comps.llm.Close()
	defer comps.player.Unload()

	stats := api.NewStatsHandler(comps.tracker, started)
	if err := runProbes(ctx, appCfg, comps, stats); err != nil {
		return err
	}

	feed := api.NewAudioFeed()
	comps.player.SetOnChange(feed.Publish)

	srv := api.NewServer(appCfg.Server.Address,
		stats,
		api.NewSessionHandler(comps.session),
		api.NewNarratorHandler(comps.pipeline, comps.session),
		api.NewAudioHandler(comps.player),
		api.NewEventsHandler(comps.pipeline, comps.player, feed),
		cancel,
	)
	return serve(ctx, srv)
}

func wire(cfg *config.Config, started time.Time) (*components, error) {
	tr := tracker.New()

	if cfg.History.TTS.Enabled {
		tts.SetLogPath(cfg.History.TTS.Path)
	} else {
		tts.SetLogPath("")
	}
	llmLog := ""
	if cfg.History.LLM.Enabled {
		llmLog = cfg.History.LLM.Path
	}

	reqClient := request.New(cfg.Request, tr)
	locator, err := geo.NewLocator(cfg.Geolocation, reqClient)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize geolocation: %w", err)
	}

	llmClient, err := gemini.NewClient(cfg.LLM, llmLog, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	ttsProv, err := ttsgemini.NewProvider(cfg.LLM.Key, cfg.TTS, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize TTS provider: %w", err)
	}

	promptMgr, err := prompts.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize prompt manager: %w", err)
	}

	out := audio.NewSpeakerOutput(cfg.Audio.OutputSampleRate, time.Duration(cfg.Audio.BufferSize))
	player := audio.NewController(out, out, time.Duration(cfg.Audio.EndTolerance))
	player.SetVolume(cfg.Audio.Volume)

	pipeline := narrator.NewPipeline(llmClient, ttsProv, player, promptMgr, cfg.Narrator, audio.PCMFormat{
		SampleRate: cfg.Audio.FallbackSampleRate,
		Channels:   cfg.Audio.FallbackChannels,
	})

	vibe, err := model.ParseVibe(cfg.Narrator.DefaultVibe)
	if err != nil {
		slog.Warn("Unknown default vibe, using mysterious", "vibe", cfg.Narrator.DefaultVibe)
		vibe = model.VibeMysterious
	}
	sess := session.NewManager(locator, pipeline, vibe, started)
	slog.Info("Session started", "bucket", sess.State().Bucket, "vibe", vibe)

	return &components{
		tracker:  tr,
		llm:      llmClient,
		player:   player,
		pipeline: pipeline,
		session:  sess,
	}, nil
}

func runProbes(ctx context.Context, cfg *config.Config, comps *components, stats *api.StatsHandler) error {
	probes := []probe.Probe{
		{
			Name: "Gemini API key",
			Check: func(context.Context) error {
				if cfg.LLM.Key == "" {
					return errors.New("set llm.key or GEMINI_API_KEY")
				}
				return nil
			},
			Critical: true,
		},
		{
			Name:    "Gemini text model",
			Check:   comps.llm.HealthCheck,
			Timeout: 15 * time.Second,
		},
		{
			// One-shot fix; the client may still push one later.
			Name:  "Location",
			Check: comps.session.Locate,
		},
	}

	results := probe.Run(ctx, probes)
	stats.SetProbes(probe.Statuses(results))
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}
	return nil
}

func serve(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
