// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package models

// TrackedProject is one project entry from the Hackatime stats endpoint.
type TrackedProject struct {
	Name         string `json:"name"`
	TotalSeconds int64  `json:"total_seconds"`
}

// UserStats is a user's Hackatime project breakdown. The zero value stands
// for "no data" and is what a failed fetch degrades to.
type UserStats struct {
	Projects     []TrackedProject `json:"projects"`
	TotalSeconds int64            `json:"total_seconds"`
}

// Span is a contiguous tracked interval, bounds in epoch seconds.
// ProjectName is not in the upstream payload; the client sets it from the
// project it queried.
type Span struct {
	ProjectName string  `json:"project,omitempty"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
}

// Duration returns the span length in seconds, never negative.
func (s Span) Duration() float64 {
	if s.EndTime <= s.StartTime {
		return 0
	}
	return s.EndTime - s.StartTime
}
