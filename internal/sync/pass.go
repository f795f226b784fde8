// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shiba-arcade/hackatime-sync/internal/allocation"
	"github.com/shiba-arcade/hackatime-sync/internal/events"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/metrics"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

// runPass performs one full reconciliation. Per-owner fetch failures and
// per-game write failures are folded into the summary; only configuration
// errors, a failed games fetch or cancellation fail the pass.
func (m *Manager) runPass(ctx context.Context, runID string, startedAt time.Time, opts PassOptions) (*models.SyncSummary, error) {
	log := logging.Ctx(ctx)

	if !m.games.HasCredentials() {
		return nil, ErrMissingCredentials
	}

	games, err := m.games.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch games: %w", err)
	}

	owners := qualifyingOwners(games)
	log.Info().Int("games", len(games)).Int("owners", len(owners)).Msg("Fetched games")

	projects, failures := m.fetchOwnerProjects(ctx, owners)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &models.SyncSummary{
		RunID:              runID,
		DryRun:             opts.DryRun,
		TotalGames:         len(games),
		UniqueUsers:        len(owners),
		OwnerFetchFailures: failures,
		Games:              make([]models.GameResult, 0, len(games)),
		StartedAt:          startedAt,
	}

	claims := make(map[string]*allocation.ClaimSet, len(owners))
	for i := range games {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := m.reconcileGame(ctx, &games[i], projects, claims, opts, summary)
		summary.Games = append(summary.Games, result)
	}

	summary.Success = true
	summary.CompletedAt = m.now()
	summary.DurationMs = summary.CompletedAt.Sub(startedAt).Milliseconds()
	return summary, nil
}

// qualifyingOwners lists, in first-seen order, the owners with at least one
// game claiming a project.
func qualifyingOwners(games []models.Game) []string {
	seen := make(map[string]struct{})
	var owners []string
	for i := range games {
		g := &games[i]
		if g.OwnerID == "" || !g.HasClaims() {
			continue
		}
		if _, ok := seen[g.OwnerID]; ok {
			continue
		}
		seen[g.OwnerID] = struct{}{}
		owners = append(owners, g.OwnerID)
	}
	return owners
}

// fetchOwnerProjects fetches each owner's tracked projects once. A failed
// fetch leaves the owner with no projects and is counted, not returned.
func (m *Manager) fetchOwnerProjects(ctx context.Context, owners []string) (map[string][]models.TrackedProject, int) {
	var (
		mu       sync.Mutex
		failures int
	)
	projects := make(map[string][]models.TrackedProject, len(owners))

	fetch := func(ctx context.Context, owner string) {
		if err := m.statsLimiter.Wait(ctx); err != nil {
			return
		}
		stats, err := m.stats.UserStats(ctx, owner)

		mu.Lock()
		defer mu.Unlock()
		if err != nil || stats == nil {
			failures++
			metrics.OwnerFetchFailures.Inc()
			logging.Ctx(ctx).Warn().Err(err).Str("slack_id", owner).
				Msg("Hackatime stats unavailable, treating owner as having no tracked time")
			projects[owner] = nil
			return
		}
		projects[owner] = stats.Projects
		logging.Ctx(ctx).Debug().Str("slack_id", owner).Int("projects", len(stats.Projects)).
			Int64("total_seconds", stats.TotalSeconds).Msg("Fetched Hackatime stats")
	}

	if m.cfg.Sync.FetchConcurrency <= 1 {
		for _, owner := range owners {
			if ctx.Err() != nil {
				break
			}
			fetch(ctx, owner)
		}
		return projects, failures
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Sync.FetchConcurrency)
	for _, owner := range owners {
		g.Go(func() error {
			fetch(gctx, owner)
			return nil
		})
	}
	_ = g.Wait()
	return projects, failures
}

// reconcileGame allocates one game's seconds and writes them back.
func (m *Manager) reconcileGame(
	ctx context.Context,
	g *models.Game,
	projects map[string][]models.TrackedProject,
	claims map[string]*allocation.ClaimSet,
	opts PassOptions,
	summary *models.SyncSummary,
) models.GameResult {
	log := logging.Ctx(ctx).With().Str("game_id", g.ID).Str("slack_id", g.OwnerID).Logger()

	result := models.GameResult{
		ID:              g.ID,
		Name:            g.Name,
		OwnerID:         g.OwnerID,
		ClaimedProjects: g.ClaimedProjects(),
	}
	if g.OwnerID == "" || !g.HasClaims() {
		result.Skipped = true
		summary.SkippedGames++
		log.Debug().Msg("Skipping game without owner or claimed projects")
		return result
	}

	set, ok := claims[g.OwnerID]
	if !ok {
		set = allocation.NewClaimSet()
		claims[g.OwnerID] = set
	}

	seconds, details := allocation.AllocateDetailed(projects[g.OwnerID], g.ClaimedProjectNames, set)
	for _, d := range details {
		switch d.Outcome {
		case allocation.OutcomeAlreadyClaimed:
			log.Debug().Str("project", d.Name).Msg("Project already claimed by an earlier game")
		case allocation.OutcomeNotFound:
			log.Debug().Str("project", d.Name).Msg("Project not found in Hackatime stats")
		}
	}
	result.HackatimeSeconds = seconds

	if opts.DryRun {
		log.Info().Int64("seconds", seconds).Msg("Dry run, not writing HackatimeSeconds")
		return result
	}

	if err := m.games.UpdateGameSeconds(ctx, g.ID, seconds); err != nil {
		result.Error = err.Error()
		summary.Errors++
		metrics.GameUpdateErrors.Inc()
		log.Error().Err(err).Int64("seconds", seconds).Msg("Failed to update HackatimeSeconds")
		return result
	}

	result.Updated = true
	summary.SuccessfulUpdates++
	metrics.GamesUpdated.Inc()
	log.Debug().Int64("seconds", seconds).Int64("previous_seconds", g.HackatimeSeconds).Msg("Updated HackatimeSeconds")

	event := &events.GameSecondsUpdated{
		RunID:           summary.RunID,
		GameID:          g.ID,
		OwnerID:         g.OwnerID,
		ClaimedProjects: g.ClaimedProjectNames,
		PreviousSeconds: g.HackatimeSeconds,
		Seconds:         seconds,
		UpdatedAt:       m.now(),
	}
	if err := m.publisher.PublishGameSecondsUpdated(ctx, event); err != nil {
		log.Warn().Err(err).Msg("Failed to publish game update")
	}
	return result
}
