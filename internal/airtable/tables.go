// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package airtable

import (
	"context"
	"fmt"
	"strings"

	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

// Store exposes the Games, Posts and Users tables of one base.
type Store struct {
	client *Client
	games  string
	posts  string
	users  string
}

// NewStore wraps client with the configured table names.
func NewStore(client *Client, cfg *config.AirtableConfig) *Store {
	return &Store{
		client: client,
		games:  cfg.GamesTable,
		posts:  cfg.PostsTable,
		users:  cfg.UsersTable,
	}
}

// HasCredentials reports whether the underlying client can make requests.
func (s *Store) HasCredentials() bool {
	return s.client.apiKey != "" && s.client.baseID != ""
}

// ListGames returns every game in table order.
func (s *Store) ListGames(ctx context.Context) ([]models.Game, error) {
	records, err := s.client.List(ctx, s.games, ListOptions{})
	if err != nil {
		return nil, err
	}
	return gamesFromRecords(records), nil
}

// ListGamesForOwner returns the games whose owner is slackID.
func (s *Store) ListGamesForOwner(ctx context.Context, slackID string) ([]models.Game, error) {
	records, err := s.client.List(ctx, s.games, ListOptions{Formula: EqualsFormula(FieldSlackID, slackID)})
	if err != nil {
		return nil, err
	}
	return gamesFromRecords(records), nil
}

// UpdateGameSeconds writes HackatimeSeconds on one game.
func (s *Store) UpdateGameSeconds(ctx context.Context, gameID string, seconds int64) error {
	return s.client.Update(ctx, s.games, gameID, map[string]any{FieldHackatimeSeconds: seconds})
}

// ListPosts returns every post ordered by creation time.
func (s *Store) ListPosts(ctx context.Context) ([]models.Post, error) {
	records, err := s.client.List(ctx, s.posts, ListOptions{SortField: FieldCreatedAt, SortDirection: "asc"})
	if err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(records))
	for _, r := range records {
		created, ok := TimeValue(r.Fields[FieldCreatedAt])
		if !ok {
			created = r.CreatedTime.UTC()
		}
		posts = append(posts, models.Post{
			ID:        r.ID,
			GameIDs:   LinkedIDs(r.Fields[FieldGame]),
			CreatedAt: created,
		})
	}
	return posts, nil
}

// UpdatePostHours writes HoursSpent on one post.
func (s *Store) UpdatePostHours(ctx context.Context, postID string, hours float64) error {
	return s.client.Update(ctx, s.posts, postID, map[string]any{FieldHoursSpent: hours})
}

// FindSlackIDByEmail resolves a user's Slack id from the Users table.
func (s *Store) FindSlackIDByEmail(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	records, err := s.client.List(ctx, s.users, ListOptions{Formula: EqualsFormula(FieldEmail, email)})
	if err != nil {
		return "", err
	}
	for _, r := range records {
		if id := StringValue(r.Fields[FieldSlackID]); id != "" {
			if len(records) > 1 {
				logging.Ctx(ctx).Warn().Str("email", email).Int("matches", len(records)).
					Msg("Several users share an email, using the first with a slack id")
			}
			return id, nil
		}
	}
	return "", fmt.Errorf("user with email %q: %w", email, ErrNotFound)
}

func gamesFromRecords(records []Record) []models.Game {
	games := make([]models.Game, 0, len(records))
	for _, r := range records {
		games = append(games, models.Game{
			ID:                  r.ID,
			OwnerID:             StringValue(r.Fields[FieldSlackID]),
			Name:                StringValue(r.Fields[FieldName]),
			ClaimedProjectNames: ProjectNames(r.Fields[FieldHackatimeProjects]),
			HackatimeSeconds:    IntValue(r.Fields[FieldHackatimeSeconds]),
		})
	}
	return games
}
