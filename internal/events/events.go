// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package events publishes reconciliation events over Watermill so other
// Shiba services can react to updated game times without polling Airtable.
//
// Publishing is best-effort: a failed publish is logged and counted but
// never fails a sync pass.
package events

import (
	"time"

	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

// Topic suffixes; the configured prefix is prepended.
const (
	TopicGameSecondsUpdated = "game.seconds_updated"
	TopicSyncCompleted      = "sync.completed"
	TopicPostHoursUpdated   = "post.hours_updated"
)

// GameSecondsUpdated is emitted after a successful HackatimeSeconds write.
type GameSecondsUpdated struct {
	RunID           string    `json:"runId"`
	GameID          string    `json:"gameId"`
	OwnerID         string    `json:"slackId"`
	ClaimedProjects []string  `json:"hackatimeProjects"`
	PreviousSeconds int64     `json:"previousSeconds"`
	Seconds         int64     `json:"seconds"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// PostHoursUpdated is emitted after a successful HoursSpent write.
type PostHoursUpdated struct {
	RunID     string    `json:"runId"`
	PostID    string    `json:"postId"`
	GameID    string    `json:"gameId"`
	Hours     float64   `json:"hours"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SyncCompleted is emitted once per finished pass, successful or not.
type SyncCompleted struct {
	RunID       string              `json:"runId"`
	Success     bool                `json:"success"`
	Error       string              `json:"error,omitempty"`
	Summary     *models.SyncSummary `json:"summary,omitempty"`
	CompletedAt time.Time           `json:"completedAt"`
}
