// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shiba-arcade/hackatime-sync/internal/allocation"
	"github.com/shiba-arcade/hackatime-sync/internal/apportion"
	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/events"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/metrics"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
	"github.com/shiba-arcade/hackatime-sync/internal/validation"
)

// Apportioner writes per-post HoursSpent for one user's games.
type Apportioner struct {
	records   RecordStore
	source    TimeSource
	publisher events.Publisher
	cfg       *config.HackatimeConfig

	spanLimiter *rate.Limiter

	mu      sync.Mutex
	running bool

	now func() time.Time
}

// NewApportioner creates an apportioner. publisher may be nil.
func NewApportioner(records RecordStore, source TimeSource, publisher events.Publisher, cfg *config.HackatimeConfig) *Apportioner {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Apportioner{
		records:     records,
		source:      source,
		publisher:   publisher,
		cfg:         cfg,
		spanLimiter: pacer(cfg.SpanRequestDelay),
		now:         time.Now,
	}
}

func (a *Apportioner) tryAcquire() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return false
	}
	a.running = true
	return true
}

func (a *Apportioner) release() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()
}

// RunForEmail resolves email through the Users table and apportions that
// user's games.
func (a *Apportioner) RunForEmail(ctx context.Context, email string, opts PassOptions) (*models.ApportionReport, error) {
	if !a.records.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	slackID, err := a.records.FindSlackIDByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolve slack id: %w", err)
	}
	return a.RunForSlackID(ctx, slackID, opts)
}

// RunForSlackID recomputes HackatimeSeconds for the user's games and splits
// their tracked time across each game's posts.
func (a *Apportioner) RunForSlackID(ctx context.Context, slackID string, opts PassOptions) (*models.ApportionReport, error) {
	slackID = strings.TrimSpace(slackID)
	if !validation.ValidSlackID(slackID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSlackID, slackID)
	}
	if !a.tryAcquire() {
		return nil, ErrApportionInProgress
	}
	defer a.release()

	if !a.records.HasCredentials() {
		return nil, ErrMissingCredentials
	}
	trackingStart, err := a.cfg.TrackingStart()
	if err != nil {
		return nil, err
	}

	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	log := logging.Ctx(ctx).With().Str("slack_id", slackID).Logger()

	report := &models.ApportionReport{
		RunID:     runID,
		SlackID:   slackID,
		DryRun:    opts.DryRun,
		StartedAt: a.now(),
	}

	games, err := a.records.ListGamesForOwner(ctx, slackID)
	if err != nil {
		return nil, fmt.Errorf("fetch games: %w", err)
	}
	stats, err := a.source.UserStats(ctx, slackID)
	if err != nil {
		return nil, fmt.Errorf("fetch hackatime stats: %w", err)
	}
	if stats == nil {
		stats = &models.UserStats{}
	}
	log.Info().Int("games", len(games)).Int("projects", len(stats.Projects)).Msg("Starting apportion run")

	spans, err := a.fetchSpans(ctx, slackID, stats.Projects, games)
	if err != nil {
		return nil, err
	}

	posts, err := a.records.ListPosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	postsByGame := groupPosts(posts, games)

	claims := allocation.NewClaimSet()
	for i := range games {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g := &games[i]
		if !g.HasClaims() {
			log.Debug().Str("game_id", g.ID).Msg("Skipping game without claimed projects")
			continue
		}
		report.Games = append(report.Games, a.apportionGame(ctx, g, stats.Projects, spans, postsByGame[g.ID], claims, trackingStart, opts, report))
	}

	report.CompletedAt = a.now()
	log.Info().
		Int("games_updated", report.GamesUpdated).
		Int("posts_updated", report.PostsUpdated).
		Int("errors", report.Errors).
		Bool("dry_run", opts.DryRun).
		Msg("Apportion run completed")
	return report, nil
}

// fetchSpans loads spans for every tracked project one of the games claims.
// A project whose spans cannot be fetched simply has none.
func (a *Apportioner) fetchSpans(ctx context.Context, slackID string, tracked []models.TrackedProject, games []models.Game) (map[string][]models.Span, error) {
	wanted := make(map[string]struct{})
	for i := range games {
		for _, name := range games[i].ClaimedProjectNames {
			wanted[strings.ToLower(name)] = struct{}{}
		}
	}

	spans := make(map[string][]models.Span, len(wanted))
	for _, p := range tracked {
		if _, ok := wanted[strings.ToLower(p.Name)]; !ok {
			continue
		}
		if err := a.spanLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		s, err := a.source.ProjectSpans(ctx, slackID, p.Name)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("project", p.Name).Msg("Spans unavailable, project contributes no post hours")
			continue
		}
		spans[p.Name] = s
	}
	return spans, nil
}

// groupPosts keeps the posts linked to one of games, keyed by game id.
func groupPosts(posts []models.Post, games []models.Game) map[string][]models.Post {
	ids := make(map[string]struct{}, len(games))
	for i := range games {
		ids[games[i].ID] = struct{}{}
	}
	byGame := make(map[string][]models.Post)
	for _, p := range posts {
		for _, id := range p.GameIDs {
			if _, ok := ids[id]; ok {
				byGame[id] = append(byGame[id], p)
			}
		}
	}
	return byGame
}

func (a *Apportioner) apportionGame(
	ctx context.Context,
	g *models.Game,
	tracked []models.TrackedProject,
	spans map[string][]models.Span,
	posts []models.Post,
	claims *allocation.ClaimSet,
	trackingStart time.Time,
	opts PassOptions,
	report *models.ApportionReport,
) models.GameApportionment {
	log := logging.Ctx(ctx).With().Str("game_id", g.ID).Logger()

	seconds, details := allocation.AllocateDetailed(tracked, g.ClaimedProjectNames, claims)
	var won []string
	for _, d := range details {
		if d.Outcome == allocation.OutcomeClaimed {
			won = append(won, d.Name)
		}
	}

	result := models.GameApportionment{
		GameID:           g.ID,
		Name:             g.Name,
		ClaimedProjects:  won,
		HackatimeSeconds: seconds,
	}

	if !opts.DryRun {
		if err := a.records.UpdateGameSeconds(ctx, g.ID, seconds); err != nil {
			report.Errors++
			metrics.GameUpdateErrors.Inc()
			log.Error().Err(err).Msg("Failed to update HackatimeSeconds")
		} else {
			result.GameUpdated = true
			report.GamesUpdated++
			metrics.GamesUpdated.Inc()
			a.publishGame(ctx, report.RunID, g, won, seconds)
		}
	}

	// Claims decide HackatimeSeconds only; posts see every claimed project.
	hours := apportion.Apportion(g.ID, posts, spans, g.ClaimedProjectNames, trackingStart)
	for i := range hours {
		ph := &hours[i]
		if opts.DryRun {
			continue
		}
		if err := a.records.UpdatePostHours(ctx, ph.PostID, ph.Hours); err != nil {
			ph.Error = err.Error()
			report.Errors++
			metrics.PostsApportioned.WithLabelValues("failure").Inc()
			log.Error().Err(err).Str("post_id", ph.PostID).Msg("Failed to update HoursSpent")
			continue
		}
		ph.Updated = true
		report.PostsUpdated++
		metrics.PostsApportioned.WithLabelValues("success").Inc()
		log.Debug().Str("post_id", ph.PostID).Float64("hours", ph.Hours).Msg("Updated HoursSpent")

		event := &events.PostHoursUpdated{
			RunID:     report.RunID,
			PostID:    ph.PostID,
			GameID:    g.ID,
			Hours:     ph.Hours,
			UpdatedAt: a.now(),
		}
		if err := a.publisher.PublishPostHoursUpdated(ctx, event); err != nil {
			log.Warn().Err(err).Msg("Failed to publish post update")
		}
	}
	result.Posts = hours
	return result
}

func (a *Apportioner) publishGame(ctx context.Context, runID string, g *models.Game, won []string, seconds int64) {
	event := &events.GameSecondsUpdated{
		RunID:           runID,
		GameID:          g.ID,
		OwnerID:         g.OwnerID,
		ClaimedProjects: won,
		PreviousSeconds: g.HackatimeSeconds,
		Seconds:         seconds,
		UpdatedAt:       a.now(),
	}
	if err := a.publisher.PublishGameSecondsUpdated(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to publish game update")
	}
}
