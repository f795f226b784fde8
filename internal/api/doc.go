// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

/*
Package api exposes the sync service over HTTP using the chi router.

Endpoints:

	GET       /                              service banner
	GET       /health                        liveness
	GET       /sync-status, /api/sync-status manager status snapshot
	POST      /sync                          run a sync pass now (?dry_run=true)
	GET|POST  /api/SyncAllGames              alias of POST /sync
	GET       /api/sync-runs                 recorded runs, newest first (?limit=N)
	GET       /api/test-hackatime/{slackId}  raw Hackatime stats for one user
	POST      /api/apportion/{slackId}       split tracked time over posts (?dry_run=true)
	GET       /metrics                       Prometheus exposition

Trigger endpoints are rate limited per client IP with go-chi/httprate.
Unknown routes and wrong methods answer with JSON bodies.
*/
package api
