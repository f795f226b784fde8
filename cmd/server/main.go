// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package main

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shiba-arcade/hackatime-sync/internal/airtable"
	"github.com/shiba-arcade/hackatime-sync/internal/api"
	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/events"
	"github.com/shiba-arcade/hackatime-sync/internal/hackatime"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/store"
	"github.com/shiba-arcade/hackatime-sync/internal/supervisor"
	"github.com/shiba-arcade/hackatime-sync/internal/supervisor/services"
	"github.com/shiba-arcade/hackatime-sync/internal/sync"
)

// Version is set at build time via -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().Str("version", Version).Msg("Starting hackatime-sync with supervisor tree")

	if !cfg.Airtable.HasCredentials() {
		// Passes fail with a configuration error until credentials are set.
		logging.Warn().Msg("AIRTABLE_API_KEY or AIRTABLE_BASE_ID not set; sync passes will fail")
	}
	logging.Info().
		Str("start_date", cfg.Hackatime.StartDate).
		Dur("interval", cfg.Sync.Interval).
		Bool("scheduler_enabled", cfg.Sync.Enabled).
		Bool("store_enabled", cfg.Store.Enabled).
		Bool("events_enabled", cfg.Events.Enabled).
		Msg("Configuration loaded")

	records := airtable.NewStore(airtable.NewClient(&cfg.Airtable), &cfg.Airtable)
	timeSource := hackatime.NewClient(&cfg.Hackatime)

	runs, err := store.Open(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open run store")
	}
	defer func() {
		if err := runs.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing run store")
		}
	}()

	publisher, err := events.New(&cfg.Events)
	if err != nil {
		// Events are optional; the service keeps running without them.
		logging.Warn().Err(err).Str("nats_url", cfg.Events.NATSURL).Msg("Event publisher unavailable, continuing without events")
		publisher = events.NopPublisher{}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event publisher")
		}
	}()

	syncManager := sync.NewManager(records, timeSource, runs, publisher, cfg)
	apportioner := sync.NewApportioner(records, timeSource, publisher, &cfg.Hackatime)

	var lookups api.StatsFetcher = timeSource
	if cfg.Hackatime.StatsCacheTTL > 0 {
		lookups = hackatime.NewCachedStats(timeSource, cfg.Hackatime.StatsCacheTTL)
	}

	handler := api.NewHandler(syncManager, lookups, apportioner, Version)
	chiMiddleware := api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security))
	router := api.NewRouter(handler, chiMiddleware)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:              addr,
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		// Sync and apportion handlers clear this deadline for their own requests.
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddSyncService(services.NewSyncService(syncManager))
	tree.AddAPIService(services.NewHTTPServerService(server, addr, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		}
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("hackatime-sync stopped")
}
