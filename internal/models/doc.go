// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

/*
Package models defines the data shared between the Airtable and Hackatime
clients, the reconciliation logic and the HTTP surface.

Record-store quirks (string-or-list fields, linked records as strings or
objects) are resolved by the airtable package before values reach these
types; everything here is already normalized.

Categories:

 1. Time-tracking data: TrackedProject, UserStats, Span
 2. Record-store data: Game, Post
 3. Run results: GameResult, SyncSummary, SyncStatus, PostHours, ApportionReport
*/
package models
