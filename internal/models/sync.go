// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package models

import "time"

// GameResult is the per-game outcome of a sync pass.
type GameResult struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	OwnerID          string `json:"slackId,omitempty"`
	ClaimedProjects  string `json:"hackatimeProjects,omitempty"`
	HackatimeSeconds int64  `json:"seconds"`
	Updated          bool   `json:"updated"`
	Skipped          bool   `json:"skipped,omitempty"`
	Error            string `json:"error,omitempty"`
}

// SyncSummary describes one completed sync pass.
type SyncSummary struct {
	RunID              string       `json:"runId"`
	Success            bool         `json:"success"`
	DryRun             bool         `json:"dryRun,omitempty"`
	TotalGames         int          `json:"totalGames"`
	UniqueUsers        int          `json:"uniqueUsers"`
	SuccessfulUpdates  int          `json:"successfulUpdates"`
	Errors             int          `json:"errors"`
	SkippedGames       int          `json:"skippedGames"`
	OwnerFetchFailures int          `json:"ownerFetchFailures"`
	Games              []GameResult `json:"games"`
	StartedAt          time.Time    `json:"startedAt"`
	CompletedAt        time.Time    `json:"timestamp"`
	DurationMs         int64        `json:"durationMs"`
}

// SyncRun is a persisted pass outcome. Exactly one of Summary and Error is set.
type SyncRun struct {
	RunID       string       `json:"runId"`
	CompletedAt time.Time    `json:"completedAt"`
	Summary     *SyncSummary `json:"summary,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// SyncStatus is the snapshot served by the status endpoint.
type SyncStatus struct {
	State               string       `json:"state"`
	IsRunning           bool         `json:"isRunning"`
	LastSyncTime        *time.Time   `json:"lastSyncTime"`
	LastCompletion      *time.Time   `json:"lastCompletion"`
	LastSyncResult      *SyncSummary `json:"lastSyncResult"`
	LastError           string       `json:"lastError,omitempty"`
	NextSyncInMs        *int64       `json:"nextSyncIn"`
	SyncIntervalMinutes float64      `json:"syncIntervalMinutes"`
	SchedulerEnabled    bool         `json:"schedulerEnabled"`
	Timestamp           time.Time    `json:"timestamp"`
}
