// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package sync

import (
	"context"
	"errors"

	"github.com/shiba-arcade/hackatime-sync/internal/airtable"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

var (
	// ErrMissingCredentials aborts a pass before any request is made.
	ErrMissingCredentials = airtable.ErrMissingCredentials

	// ErrSyncInProgress is returned when a pass is already running.
	ErrSyncInProgress = errors.New("sync already running")

	// ErrApportionInProgress is returned when an apportion run is active.
	ErrApportionInProgress = errors.New("apportion already running")

	// ErrInvalidSlackID rejects identifiers that cannot be a Slack member id.
	ErrInvalidSlackID = errors.New("invalid slack id")
)

// GameStore is the record-store surface the sync pass needs.
// Implemented by *airtable.Store.
type GameStore interface {
	HasCredentials() bool
	ListGames(ctx context.Context) ([]models.Game, error)
	UpdateGameSeconds(ctx context.Context, gameID string, seconds int64) error
}

// StatsSource returns a user's per-project totals.
// Implemented by *hackatime.Client.
type StatsSource interface {
	UserStats(ctx context.Context, slackID string) (*models.UserStats, error)
}

// SpanSource returns the coding spans of one project.
type SpanSource interface {
	ProjectSpans(ctx context.Context, slackID, project string) ([]models.Span, error)
}

// TimeSource is everything the apportioner reads from Hackatime.
type TimeSource interface {
	StatsSource
	SpanSource
}

// RecordStore is the record-store surface the apportioner needs.
type RecordStore interface {
	HasCredentials() bool
	ListGamesForOwner(ctx context.Context, slackID string) ([]models.Game, error)
	UpdateGameSeconds(ctx context.Context, gameID string, seconds int64) error
	ListPosts(ctx context.Context) ([]models.Post, error)
	UpdatePostHours(ctx context.Context, postID string, hours float64) error
	FindSlackIDByEmail(ctx context.Context, email string) (string, error)
}

// PassOptions tunes a single pass or apportion run.
type PassOptions struct {
	// DryRun computes everything but writes nothing back.
	DryRun bool
}
