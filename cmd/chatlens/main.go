package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatlens/chatlens/internal/api"
	"github.com/chatlens/chatlens/internal/config"
	"github.com/chatlens/chatlens/internal/events"
	"github.com/chatlens/chatlens/internal/parser"
	"github.com/chatlens/chatlens/internal/service"
	"github.com/chatlens/chatlens/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	slog.Info("chatlens starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database (optional — without it analytics are computed but not stored)
	var db *store.Store
	if cfg.DatabaseURL != "" {
		db, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set — results will not be persisted")
	}

	// NATS (optional — without it no events flow)
	var bus *events.Client
	if cfg.NatsURL != "" {
		bus, err = events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS_URL not set — running without events")
	}

	order, err := parser.ParseDateOrder(cfg.DateOrder)
	if err != nil {
		slog.Error("invalid date order", "value", cfg.DateOrder)
		os.Exit(1)
	}

	svc := newService(cfg, db, bus, order)

	// Consume export events when the bus is up.
	if bus != nil {
		if err := bus.Subscribe(events.SubjectExportStored, svc.HandleExportStored); err != nil {
			slog.Error("failed to subscribe to export events", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, svc)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if bus != nil {
		if err := bus.Publish("chatlens.service.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	slog.Info("chatlens ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("chatlens stopped")
}

func newService(cfg config.Config, db *store.Store, bus *events.Client, order parser.DateOrder) *service.Service {
	opts := service.Options{
		BatchSize:    cfg.BatchSize,
		Workers:      cfg.Workers,
		BatchTimeout: cfg.BatchTimeout,
		MinLangChars: cfg.MinLangChars,
		TopKeywords:  cfg.TopKeywords,
		DateOrder:    order,
	}
	// Typed nils must not reach the service's interface fields.
	var storage service.Storage
	if db != nil {
		storage = db
	}
	var publisher service.Publisher
	if bus != nil {
		publisher = bus
	}
	return service.New(storage, publisher, opts, slog.Default())
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
