package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna/crease/internal/api/rest"
	"github.com/fortuna/crease/internal/api/websocket"
	"github.com/fortuna/crease/internal/config"
	"github.com/fortuna/crease/internal/ingest/cricbuzz"
	"github.com/fortuna/crease/internal/logging"
	"github.com/fortuna/crease/internal/metrics"
	"github.com/fortuna/crease/internal/publisher"
	"github.com/fortuna/crease/internal/scheduler"
)

const (
	serviceName    = "crease"
	serviceVersion = "1.0.0"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CREASE_CONFIG"))
	if err != nil {
		return err
	}

	logger, logCloser, err := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	logger.Info("starting", "service", serviceName, "version", serviceVersion,
		"homepage", cfg.Source.HomepageURL, "fetch_mode", cfg.Source.FetchMode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher, closeFetcher := newFetcher(cfg)
	defer closeFetcher()

	listing, err := cricbuzz.NewListingExtractor(cfg.Source.HomepageURL, cfg.Source.MaxMatches, logger, metrics.ObserveStrategy)
	if err != nil {
		return err
	}
	detail := cricbuzz.NewDetailExtractor(logger, metrics.ObserveStrategy)

	// Fan-out: the scheduler publishes into the dispatcher, which delivers to
	// the snapshot, the WebSocket hub and optionally Redis from one goroutine.
	dispatcher := publisher.NewDispatcher(publisher.DefaultQueueSize, logger)
	snapshot := publisher.NewSnapshot()
	hub := websocket.NewHub(logger)
	dispatcher.AddListener(snapshot)
	dispatcher.AddListener(hub)

	if cfg.Redis.URL != "" {
		client, err := publisher.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			// Streams are a side channel; the widget works without them.
			logger.Warn("redis unavailable, stream publishing disabled", "error", err)
		} else {
			streams := publisher.NewRedisStreamPublisher(client, cfg.Redis.StreamMaxLen, logger)
			defer streams.Close()
			dispatcher.AddListener(streams)
			logger.Info("publishing to redis streams")
		}
	}

	orch := scheduler.NewOrchestrator(fetcher, listing, detail, dispatcher, cfg.Scheduler(), logger)
	dispatcher.SetDetailGuard(orch.IsCurrent)
	hub.SetDetailGuard(orch.IsCurrent)

	go dispatcher.Run(ctx)
	go hub.Run(ctx)
	orch.Start(ctx)

	var restServer *rest.Server
	if cfg.API.Enabled {
		handler, err := rest.NewHandler(orch, snapshot, rest.TooltipConfig{
			MaxItems:  cfg.Tooltip.MaxItems,
			MaxLength: cfg.Tooltip.MaxLength,
		}, cfg.Source.HomepageURL)
		if err != nil {
			return err
		}

		wsServer := websocket.NewServer(hub, orch, cfg.Source.HomepageURL, logger)
		restServer = rest.NewServer(cfg.API.Host, cfg.API.Port, handler, wsServer)
		go func() {
			logger.Info("api listening", "addr", cfg.API.Host+":"+cfg.API.Port)
			if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("api server error", "error", err)
				cancel()
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	if err := orch.Stop(); err != nil {
		logger.Warn("scheduler did not stop cleanly", "error", err)
	}

	if restServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := restServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api server shutdown error", "error", err)
		}
	}

	cancel()
	logger.Info("stopped")
	return nil
}

func newFetcher(cfg *config.Config) (cricbuzz.Fetcher, func()) {
	if cfg.Source.FetchMode == config.FetchModeBrowser {
		browser := cricbuzz.NewBrowserClient()
		return browser, browser.Close
	}
	return cricbuzz.NewClient(cfg.Source.HomepageURL), func() {}
}
