// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package cli

import (
	"errors"

	"github.com/shiba-arcade/hackatime-sync/internal/airtable"
	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/events"
	"github.com/shiba-arcade/hackatime-sync/internal/hackatime"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/store"
	"github.com/shiba-arcade/hackatime-sync/internal/sync"
)

// BuildServices wires the production clients. The manager is never
// started, so the scheduler stays off and passes run only on demand.
func BuildServices(cfg *config.Config, req Request) (*Services, error) {
	records := airtable.NewStore(airtable.NewClient(&cfg.Airtable), &cfg.Airtable)
	timeSource := hackatime.NewClient(&cfg.Hackatime)

	runs, lister := openRunStore(cfg, req)

	publisher, err := events.New(&cfg.Events)
	if err != nil {
		logging.Warn().Err(err).Msg("Event publisher unavailable, continuing without events")
		publisher = events.NopPublisher{}
	}

	manager := sync.NewManager(records, timeSource, runs, publisher, cfg)
	if lister == nil {
		lister = manager
	}

	return &Services{
		Sync:      manager,
		Runs:      lister,
		Stats:     timeSource,
		Apportion: sync.NewApportioner(records, timeSource, publisher, &cfg.Hackatime),
		Close: func() error {
			return errors.Join(publisher.Close(), runs.Close())
		},
	}, nil
}

// openRunStore opens the run store as req asks. A store locked by the
// running server degrades: passes go unrecorded, and history is read from
// the server instead (the returned lister is non-nil only then).
func openRunStore(cfg *config.Config, req Request) (store.RunStore, RunLister) {
	switch req.Store {
	case StoreReadWrite:
		runs, err := store.Open(&cfg.Store)
		if err != nil {
			logging.Warn().Err(err).Msg("Run store unavailable, this pass will not be recorded")
			return store.NopStore{}, nil
		}
		return runs, nil
	case StoreReadOnly:
		runs, err := store.OpenReadOnly(&cfg.Store)
		if err != nil {
			logging.Info().Err(err).Str("server", req.ServerURL).Msg("Run store locked, reading history from the server")
			return store.NopStore{}, newServerRuns(req.ServerURL, cfg.Server.Timeout)
		}
		return runs, nil
	default:
		return store.NopStore{}, nil
	}
}
