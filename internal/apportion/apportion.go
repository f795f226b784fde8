// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package apportion splits tracked time across a game's posts.
//
// Posts sorted by creation time cut the timeline into contiguous half-open
// windows: the first runs from the tracking start to the first post, each
// later one from the previous post to the current one. A post is credited
// with the overlap between its window and every span of the game's claimed
// projects.
package apportion

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

// Window is a half-open interval [Start, End) in epoch seconds.
type Window struct {
	PostID string
	Start  float64
	End    float64
}

// Overlap returns max(0, min(spanEnd, windowEnd) - max(spanStart, windowStart)).
func Overlap(spanStart, spanEnd, windowStart, windowEnd float64) float64 {
	return math.Max(0, math.Min(spanEnd, windowEnd)-math.Max(spanStart, windowStart))
}

// SortPosts orders posts by creation time, keeping input order for ties.
// The input slice is not modified.
func SortPosts(posts []models.Post) []models.Post {
	sorted := make([]models.Post, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	return sorted
}

// Windows builds one window per post from already sorted posts.
func Windows(sorted []models.Post, trackingStart time.Time) []Window {
	windows := make([]Window, len(sorted))
	start := epoch(trackingStart)
	for i, p := range sorted {
		end := epoch(p.CreatedAt)
		windows[i] = Window{PostID: p.ID, Start: start, End: end}
		start = end
	}
	return windows
}

// SecondsInWindow sums the overlap of spans with w.
func SecondsInWindow(spans []models.Span, w Window) float64 {
	var total float64
	for _, s := range spans {
		total += Overlap(s.StartTime, s.EndTime, w.Start, w.End)
	}
	return total
}

// Apportion credits each of a game's posts with the tracked seconds in its
// window. spansByProject is keyed by project name; lookups ignore case and
// each claimed project is counted once. The result follows creation order.
func Apportion(gameID string, posts []models.Post, spansByProject map[string][]models.Span, claimed []string, trackingStart time.Time) []models.PostHours {
	if len(posts) == 0 {
		return nil
	}

	spans := collectSpans(spansByProject, claimed)
	sorted := SortPosts(posts)
	windows := Windows(sorted, trackingStart)

	out := make([]models.PostHours, len(windows))
	for i, w := range windows {
		seconds := SecondsInWindow(spans, w)
		out[i] = models.PostHours{
			PostID:      w.PostID,
			GameID:      gameID,
			WindowStart: fromEpoch(w.Start),
			WindowEnd:   fromEpoch(w.End),
			Seconds:     seconds,
			Hours:       seconds / 3600,
		}
	}
	return out
}

// collectSpans gathers the spans of the distinct claimed projects.
func collectSpans(spansByProject map[string][]models.Span, claimed []string) []models.Span {
	byKey := make(map[string][]models.Span, len(spansByProject))
	for name, spans := range spansByProject {
		key := strings.ToLower(strings.TrimSpace(name))
		byKey[key] = append(byKey[key], spans...)
	}

	seen := make(map[string]struct{}, len(claimed))
	var all []models.Span
	for _, name := range claimed {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		all = append(all, byKey[key]...)
	}
	return all
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromEpoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}
