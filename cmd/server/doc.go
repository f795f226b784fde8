// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

/*
Package main is the entry point for the hackatime-sync server.

The server periodically reconciles the HackatimeSeconds field of every
Shiba Arcade game in Airtable against the owner's Hackatime project totals,
and exposes a small HTTP surface for status, manual triggers and per-user
post apportionment.

# Application Architecture

	RootSupervisor ("hackatime-sync")
	├── SyncSupervisor ("sync-layer")
	│   └── Sync Manager (scheduled passes)
	└── APISupervisor ("api-layer")
	    └── HTTP Server

Component initialization order:

 1. Environment: optional .env file via godotenv
 2. Configuration: Koanf v2 with defaults, YAML file and environment variables
 3. Logging: zerolog, bridged to slog for the supervisor
 4. Clients: Airtable (circuit breaker, rate limit) and Hackatime
 5. Run history: BadgerDB store (optional)
 6. Events: Watermill publisher over NATS (optional)
 7. Sync manager, apportioner and HTTP router
 8. Supervisor tree, until SIGINT or SIGTERM

# Configuration

The legacy environment variables keep working:

	AIRTABLE_API_KEY      Airtable personal access token
	AIRTABLE_BASE_ID      Airtable base id
	HACKATIME_START_DATE  Tracking start, YYYY-MM-DD
	HACKATIME_END_DATE    Optional end date, YYYY-MM-DD
	PORT                  HTTP port (default 3001)

See internal/config for the full list.
*/
package main
