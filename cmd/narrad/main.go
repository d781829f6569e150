package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/narralabs/narra-core/internal/artifacts"
	"github.com/narralabs/narra-core/internal/bus"
	"github.com/narralabs/narra-core/internal/cache"
	"github.com/narralabs/narra-core/internal/config"
	"github.com/narralabs/narra-core/internal/dispatcher"
	"github.com/narralabs/narra-core/internal/expander"
	"github.com/narralabs/narra-core/internal/invoker"
	"github.com/narralabs/narra-core/internal/jobstore"
	"github.com/narralabs/narra-core/internal/llm"
	"github.com/narralabs/narra-core/internal/natsserver"
	"github.com/narralabs/narra-core/internal/pipeline"
	"github.com/narralabs/narra-core/internal/runtime"
	"github.com/narralabs/narra-core/internal/service"
	"github.com/narralabs/narra-core/internal/session"
	"github.com/narralabs/narra-core/internal/story"
	"github.com/narralabs/narra-core/internal/stt"
	"github.com/narralabs/narra-core/internal/token"
	"github.com/narralabs/narra-core/internal/tts"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "narra.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Telemetry.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	embedded, err := natsserver.Start(cfg.Bus, logger)
	if err != nil {
		logger.Error("failed to start embedded bus", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer embedded.Shutdown()

	busCfg := cfg.Bus
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}
	busClient, err := bus.Connect(ctx, busCfg, logger)
	if err != nil {
		logger.Error("failed to connect to bus", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer busClient.Close()

	store, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Error("failed to initialize cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if store != nil {
		defer store.Close()
	}

	generator, err := llm.NewGenerator(cfg.Text, logger)
	if err != nil {
		logger.Error("failed to build text generator", slog.String("error", err.Error()))
		os.Exit(1)
	}
	textInvoker := llm.NewInvoker(generator, cfg.Text, cfg.Retry, store, logger)
	exp := expander.New(func(ctx context.Context, p string) (string, error) {
		return textInvoker.Invoke(ctx, invoker.Request{Prompt: p, Model: cfg.Text.Model})
	}, 0, logger)
	writer := story.NewWriter(textInvoker, token.NewEstimator(), cfg.Text, exp, logger)

	synthesizer, err := tts.NewSynthesizer(cfg.Speech, logger)
	if err != nil {
		logger.Error("failed to build synthesizer", slog.String("error", err.Error()))
		os.Exit(1)
	}
	speechInvoker := tts.NewInvoker(synthesizer, cfg.Speech, cfg.Retry, store, logger)

	recognizer, err := stt.NewRecognizer(cfg.Transcribe, logger)
	if err != nil {
		logger.Error("failed to build recognizer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	artifactStore, err := artifacts.NewStore(cfg.Artifacts.Dir)
	if err != nil {
		logger.Error("failed to open artifact store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	jobs, err := jobstore.Open(ctx, cfg.JobStore, logger)
	if err != nil {
		logger.Error("failed to open job store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jobs.Close()

	p := pipeline.New(
		recognizer,
		writer,
		speechInvoker,
		dispatcher.New(cfg.Speech.Parallelism,
			time.Duration(cfg.Speech.BatchPauseMS)*time.Millisecond, logger),
		artifactStore,
		jobs,
		nil,
		cfg.Speech.MaxSegmentChars,
		logger,
	)

	svc := service.NewService(ctx, busClient, p, jobs, session.NewStore(nil), logger)
	if err := svc.Start(); err != nil {
		logger.Error("failed to start job service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer svc.Close()

	rt := runtime.New(cfg, logger)
	rt.RegisterHealthCheck(busClient.Healthy)
	rt.RegisterHealthCheck(svc.Healthy)

	if err := rt.Start(ctx); err != nil {
		logger.Error("runtime exited with error", slog.String("error", err.Error()))
		time.Sleep(1 * time.Second)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
