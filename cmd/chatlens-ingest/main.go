package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatlens/chatlens/internal/config"
	"github.com/chatlens/chatlens/internal/events"
	"github.com/chatlens/chatlens/internal/ingest"
	"github.com/chatlens/chatlens/internal/parser"
	"github.com/chatlens/chatlens/internal/service"
	"github.com/chatlens/chatlens/internal/store"
)

func main() {
	var (
		dir       = flag.String("dir", "", "directory of chat export files (.txt, .json, .jsonl)")
		file      = flag.String("file", "", "process a single export file")
		since     = flag.String("since", "", "skip conversations ending before this date (YYYY-MM-DD)")
		until     = flag.String("until", "", "skip conversations starting after this date (YYYY-MM-DD)")
		dryRun    = flag.Bool("dry-run", false, "discover and deduplicate without analyzing")
		statePath = flag.String("state", "", "state file path (default ~/.chatlens/ingest-state.json)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	if *dir == "" && *file == "" {
		slog.Error("either -dir or -file is required")
		os.Exit(1)
	}

	runCfg := ingest.Config{
		Dir:        *dir,
		SingleFile: *file,
		DryRun:     *dryRun,
		StatePath:  *statePath,
	}
	if *since != "" {
		t, err := time.Parse("2006-01-02", *since)
		if err != nil {
			slog.Error("invalid -since date", "value", *since)
			os.Exit(1)
		}
		runCfg.Since = t
	}
	if *until != "" {
		t, err := time.Parse("2006-01-02", *until)
		if err != nil {
			slog.Error("invalid -until date", "value", *until)
			os.Exit(1)
		}
		runCfg.Until = t
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Interrupts save state and exit cleanly.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("interrupt received")
		cancel()
	}()

	var storage service.Storage
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		storage = db
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set — results will not be persisted")
	}

	var publisher service.Publisher
	if cfg.NatsURL != "" && !*dryRun {
		bus, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Warn("NATS unavailable — ingesting without events", "error", err)
		} else {
			defer bus.Close()
			publisher = bus
		}
	}

	order, err := parser.ParseDateOrder(cfg.DateOrder)
	if err != nil {
		slog.Error("invalid date order", "value", cfg.DateOrder)
		os.Exit(1)
	}

	svc := service.New(storage, publisher, service.Options{
		BatchSize:    cfg.BatchSize,
		Workers:      cfg.Workers,
		BatchTimeout: cfg.BatchTimeout,
		MinLangChars: cfg.MinLangChars,
		TopKeywords:  cfg.TopKeywords,
		DateOrder:    order,
	}, slog.Default())

	runner := ingest.NewRunner(runCfg, svc, slog.Default())
	if _, err := runner.Run(ctx); err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
