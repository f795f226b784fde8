// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package models

import "time"

// PostHours is the tracked time attributed to one post's window.
type PostHours struct {
	PostID      string    `json:"postId"`
	GameID      string    `json:"gameId"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	Seconds     float64   `json:"seconds"`
	Hours       float64   `json:"hours"`
	Updated     bool      `json:"updated"`
	Error       string    `json:"error,omitempty"`
}

// GameApportionment groups one game's seconds and its post windows.
type GameApportionment struct {
	GameID           string      `json:"gameId"`
	Name             string      `json:"name,omitempty"`
	ClaimedProjects  []string    `json:"hackatimeProjects"`
	HackatimeSeconds int64       `json:"hackatimeSeconds"`
	GameUpdated      bool        `json:"gameUpdated"`
	Posts            []PostHours `json:"posts"`
}

// ApportionReport is the outcome of one apportion run for a single user.
type ApportionReport struct {
	RunID        string              `json:"runId"`
	SlackID      string              `json:"slackId"`
	DryRun       bool                `json:"dryRun,omitempty"`
	Games        []GameApportionment `json:"games"`
	PostsUpdated int                 `json:"postsUpdated"`
	GamesUpdated int                 `json:"gamesUpdated"`
	Errors       int                 `json:"errors"`
	StartedAt    time.Time           `json:"startedAt"`
	CompletedAt  time.Time           `json:"completedAt"`
}
