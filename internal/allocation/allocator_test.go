// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package allocation

import (
	"reflect"
	"testing"

	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

func projects(pairs ...any) []models.TrackedProject {
	out := make([]models.TrackedProject, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, models.TrackedProject{Name: pairs[i].(string), TotalSeconds: int64(pairs[i+1].(int))})
	}
	return out
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name        string
		tracked     []models.TrackedProject
		claimed     []string
		preClaimed  []string
		want        int64
		wantClaimed []string
	}{
		{
			name:        "single match",
			tracked:     projects("alpha", 3600),
			claimed:     []string{"alpha"},
			want:        3600,
			wantClaimed: []string{"alpha"},
		},
		{
			name:        "case insensitive match",
			tracked:     projects("MyGame", 120),
			claimed:     []string{"mygame"},
			want:        120,
			wantClaimed: []string{"mygame"},
		},
		{
			name:        "sums several projects",
			tracked:     projects("a", 10, "b", 20, "c", 40),
			claimed:     []string{"a", "c"},
			want:        50,
			wantClaimed: []string{"a", "c"},
		},
		{
			name:        "unmatched name contributes zero",
			tracked:     projects("a", 10),
			claimed:     []string{"ghost", "a"},
			want:        10,
			wantClaimed: []string{"a"},
		},
		{
			name:        "pre-claimed name contributes zero",
			tracked:     projects("a", 10, "b", 5),
			claimed:     []string{"A", "b"},
			preClaimed:  []string{"a"},
			want:        5,
			wantClaimed: []string{"a", "b"},
		},
		{
			name:        "duplicate name within one game counts once",
			tracked:     projects("a", 10),
			claimed:     []string{"a", "A"},
			want:        10,
			wantClaimed: []string{"a"},
		},
		{
			name:        "blank entries skipped",
			tracked:     projects("a", 10),
			claimed:     []string{"", "  ", "a"},
			want:        10,
			wantClaimed: []string{"a"},
		},
		{
			name:        "first matching project wins",
			tracked:     projects("Dup", 7, "dup", 100),
			claimed:     []string{"dup"},
			want:        7,
			wantClaimed: []string{"dup"},
		},
		{
			name:        "empty claimed list",
			tracked:     projects("a", 10),
			claimed:     nil,
			want:        0,
			wantClaimed: []string{},
		},
		{
			name:        "empty tracked list",
			tracked:     nil,
			claimed:     []string{"a"},
			want:        0,
			wantClaimed: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := NewClaimSet()
			for _, n := range tt.preClaimed {
				claims.Claim(n)
			}

			got := Allocate(tt.tracked, tt.claimed, claims)
			if got != tt.want {
				t.Errorf("Allocate() = %d, want %d", got, tt.want)
			}
			if names := claims.Names(); !reflect.DeepEqual(names, tt.wantClaimed) {
				t.Errorf("claims = %v, want %v", names, tt.wantClaimed)
			}
		})
	}
}

// Two games of one owner claiming the same project: only the first gets it.
func TestAllocateAcrossGamesOfOneOwner(t *testing.T) {
	tracked := projects("alpha", 3600)
	claims := NewClaimSet()

	first := Allocate(tracked, []string{"alpha"}, claims)
	second := Allocate(tracked, []string{"alpha"}, claims)

	if first != 3600 || second != 0 {
		t.Errorf("got (%d, %d), want (3600, 0)", first, second)
	}
}

func TestAllocateNeverExceedsTrackedTotal(t *testing.T) {
	tracked := projects("a", 100, "b", 200, "c", 300)
	games := [][]string{{"a", "b"}, {"b", "c"}, {"A", "C", "d"}, {"c"}}

	claims := NewClaimSet()
	var assigned int64
	for _, g := range games {
		assigned += Allocate(tracked, g, claims)
	}
	if assigned != 600 {
		t.Errorf("assigned = %d, want 600", assigned)
	}
}

func TestAllocateDetailedOutcomes(t *testing.T) {
	claims := NewClaimSet()
	claims.Claim("taken")

	total, details := AllocateDetailed(projects("found", 42, "taken", 9), []string{"found", "taken", "missing", " "}, claims)
	if total != 42 {
		t.Errorf("total = %d, want 42", total)
	}
	want := []Outcome{OutcomeClaimed, OutcomeAlreadyClaimed, OutcomeNotFound, OutcomeBlank}
	if len(details) != len(want) {
		t.Fatalf("got %d details, want %d", len(details), len(want))
	}
	for i, d := range details {
		if d.Outcome != want[i] {
			t.Errorf("details[%d].Outcome = %s, want %s", i, d.Outcome, want[i])
		}
	}
}

func TestAllocateNilClaimSet(t *testing.T) {
	if got := Allocate(projects("a", 5), []string{"a", "a"}, nil); got != 5 {
		t.Errorf("Allocate() with nil set = %d, want 5", got)
	}
}
