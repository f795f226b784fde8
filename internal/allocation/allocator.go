// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package allocation attributes a user's tracked project seconds to the
// games that claim those projects.
//
// Each tracked project counts toward at most one game per owner per pass:
// the first game, in input order, that names it. Later claims of the same
// project contribute zero. The caller owns the ClaimSet and must use one
// set per owner per pass.
package allocation

import (
	"sort"
	"strings"

	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

// ClaimSet holds the lowercased project names already attributed.
type ClaimSet struct {
	names map[string]struct{}
}

// NewClaimSet returns an empty set.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{names: make(map[string]struct{})}
}

// Claim adds name and reports whether it was newly claimed.
func (c *ClaimSet) Claim(name string) bool {
	key := normalize(name)
	if _, ok := c.names[key]; ok {
		return false
	}
	c.names[key] = struct{}{}
	return true
}

// IsClaimed reports whether name has been claimed.
func (c *ClaimSet) IsClaimed(name string) bool {
	_, ok := c.names[normalize(name)]
	return ok
}

// Len returns the number of claimed names.
func (c *ClaimSet) Len() int {
	return len(c.names)
}

// Names returns the claimed names, sorted.
func (c *ClaimSet) Names() []string {
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Outcome says what happened to one claimed name.
type Outcome string

const (
	OutcomeClaimed        Outcome = "claimed"
	OutcomeAlreadyClaimed Outcome = "already_claimed"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeBlank          Outcome = "blank"
)

// Contribution is the per-name detail of an allocation.
type Contribution struct {
	Name    string
	Seconds int64
	Outcome Outcome
}

// Allocate returns the seconds attributable to a game claiming the given
// names, recording newly claimed names in claims.
func Allocate(tracked []models.TrackedProject, claimed []string, claims *ClaimSet) int64 {
	total, _ := AllocateDetailed(tracked, claimed, claims)
	return total
}

// AllocateDetailed is Allocate plus a per-name breakdown for logging.
// A nil claims behaves as a fresh set that is discarded afterwards.
func AllocateDetailed(tracked []models.TrackedProject, claimed []string, claims *ClaimSet) (int64, []Contribution) {
	if len(claimed) == 0 || len(tracked) == 0 {
		return 0, nil
	}
	if claims == nil {
		claims = NewClaimSet()
	}

	var total int64
	details := make([]Contribution, 0, len(claimed))
	for _, raw := range claimed {
		name := strings.TrimSpace(raw)
		if name == "" {
			details = append(details, Contribution{Name: raw, Outcome: OutcomeBlank})
			continue
		}
		if claims.IsClaimed(name) {
			details = append(details, Contribution{Name: name, Outcome: OutcomeAlreadyClaimed})
			continue
		}

		project, ok := findProject(tracked, name)
		if !ok {
			details = append(details, Contribution{Name: name, Outcome: OutcomeNotFound})
			continue
		}

		total += project.TotalSeconds
		claims.Claim(name)
		details = append(details, Contribution{Name: name, Seconds: project.TotalSeconds, Outcome: OutcomeClaimed})
	}
	return total, details
}

// findProject returns the first tracked project matching name, ignoring case.
func findProject(tracked []models.TrackedProject, name string) (models.TrackedProject, bool) {
	key := normalize(name)
	for _, p := range tracked {
		if normalize(p.Name) == key {
			return p, true
		}
	}
	return models.TrackedProject{}, false
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
