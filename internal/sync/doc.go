// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

/*
Package sync reconciles Shiba Arcade game records with Hackatime.

Manager runs the sync pass: it reads every game from Airtable, fetches each
owner's tracked projects from Hackatime once, attributes project time to
games with the allocation package and writes HackatimeSeconds back. A
project's seconds are credited to at most one game per owner per pass; the
first game in fetch order that claims a project wins it.

Lifecycle:
  - NewManager(): wire collaborators and configuration
  - Start(): restore the last recorded run and launch the scheduler
  - TriggerSync(): run a pass now unless one is already running
  - Status(): snapshot for /sync-status
  - Stop(): stop the scheduler and wait for it

Only one pass runs at a time. A trigger that finds a pass running returns
ErrSyncInProgress immediately; it never queues.

Apportioner is the per-user companion: it splits a user's tracked spans
over the intervals between their devlog posts and writes HoursSpent on each
post. It has its own single-flight guard.
*/
package sync
