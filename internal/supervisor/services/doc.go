// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

/*
Package services adapts long-running components to suture.Service.

  - HTTPServerService: *http.Server with graceful shutdown
  - SyncService: the sync manager's Start/Stop lifecycle

Each wrapper implements fmt.Stringer so suture can name it in its events.
*/
package services
