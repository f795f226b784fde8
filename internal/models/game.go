// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package models

import (
	"strings"
	"time"
)

// Game is a Games table record.
type Game struct {
	ID      string
	OwnerID string // Slack member id of the owner
	Name    string

	// ClaimedProjectNames is trimmed, blank-free and in declaration order.
	ClaimedProjectNames []string

	// HackatimeSeconds is the value currently stored on the record.
	HackatimeSeconds int64
}

// HasClaims reports whether the game declares at least one project.
func (g *Game) HasClaims() bool {
	return len(g.ClaimedProjectNames) > 0
}

// ClaimedProjects joins the claimed names the way the record stores them.
func (g *Game) ClaimedProjects() string {
	return strings.Join(g.ClaimedProjectNames, ", ")
}

// Post is a Posts table record (a devlog entry linked to games).
type Post struct {
	ID        string
	GameIDs   []string
	CreatedAt time.Time
}

// LinksGame reports whether the post is linked to gameID.
func (p *Post) LinksGame(gameID string) bool {
	for _, id := range p.GameIDs {
		if id == gameID {
			return true
		}
	}
	return false
}
