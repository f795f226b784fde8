// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package hackatime

import (
	"context"
	"time"

	"github.com/shiba-arcade/hackatime-sync/internal/cache"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

// StatsSource is anything that can fetch a user's project totals.
type StatsSource interface {
	UserStats(ctx context.Context, slackID string) (*models.UserStats, error)
}

// CachedStats memoizes successful UserStats lookups for a short TTL. It
// backs the diagnostic lookup endpoint only; sync passes always read
// through the plain client. Errors are never cached.
type CachedStats struct {
	source StatsSource
	cache  *cache.Cache[*models.UserStats]
}

// NewCachedStats wraps source with a ttl cache.
func NewCachedStats(source StatsSource, ttl time.Duration) *CachedStats {
	return &CachedStats{
		source: source,
		cache:  cache.New[*models.UserStats](ttl),
	}
}

// UserStats returns the cached stats for slackID or fetches them.
func (c *CachedStats) UserStats(ctx context.Context, slackID string) (*models.UserStats, error) {
	if stats, ok := c.cache.Get(slackID); ok {
		return stats, nil
	}
	stats, err := c.source.UserStats(ctx, slackID)
	if err != nil {
		return nil, err
	}
	c.cache.Set(slackID, stats)
	if c.cache.GetStats().TotalKeys > maxCachedUsers {
		removed := c.cache.Prune()
		logging.Debug().Int("removed", removed).Float64("hit_rate", c.cache.HitRate()).Msg("Pruned stats cache")
	}
	return stats, nil
}

const maxCachedUsers = 1024
