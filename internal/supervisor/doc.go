// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

/*
Package supervisor runs the service's long-lived components under suture v4.

The tree has two layers so a crashing scheduler never takes the HTTP
surface down with it:

	RootSupervisor ("hackatime-sync")
	├── SyncSupervisor ("sync-layer")
	│   └── SyncService (scheduler)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events are logged through sutureslog, backed by the zerolog
slog adapter in internal/logging.
*/
package supervisor
