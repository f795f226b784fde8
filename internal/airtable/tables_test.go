// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package airtable

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func TestListGamesNormalizesFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"records": []map[string]any{
			{"id": "g1", "fields": map[string]any{
				"slack id":           "U1",
				"Name":               "Space Cats",
				"Hackatime Projects": "alpha, beta , ,",
				"HackatimeSeconds":   120.0,
			}},
			{"id": "g2", "fields": map[string]any{
				"slack id":           []any{"U2"},
				"Hackatime Projects": []any{" gamma ", ""},
			}},
			{"id": "g3", "fields": map[string]any{}},
		}})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	store := NewStore(NewClient(cfg), cfg)
	games, err := store.ListGames(context.Background())
	if err != nil {
		t.Fatalf("ListGames() error = %v", err)
	}
	if len(games) != 3 {
		t.Fatalf("got %d games", len(games))
	}

	if games[0].OwnerID != "U1" || games[0].Name != "Space Cats" || games[0].HackatimeSeconds != 120 {
		t.Errorf("game 0 = %+v", games[0])
	}
	if !reflect.DeepEqual(games[0].ClaimedProjectNames, []string{"alpha", "beta"}) {
		t.Errorf("game 0 names = %v", games[0].ClaimedProjectNames)
	}
	if games[1].OwnerID != "U2" || !reflect.DeepEqual(games[1].ClaimedProjectNames, []string{"gamma"}) {
		t.Errorf("game 1 = %+v", games[1])
	}
	if games[2].OwnerID != "" || games[2].HasClaims() {
		t.Errorf("game 2 = %+v", games[2])
	}
}

func TestListPostsFallsBackToCreatedTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"records": []map[string]any{
			{"id": "p1", "createdTime": "2025-09-01T10:00:00.000Z", "fields": map[string]any{
				"Game":       []any{"g1"},
				"Created At": "2025-09-02T12:30:00.000Z",
			}},
			{"id": "p2", "createdTime": "2025-09-03T08:00:00.000Z", "fields": map[string]any{
				"Game": []any{map[string]any{"id": "g2"}},
			}},
		}})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	store := NewStore(NewClient(cfg), cfg)
	posts, err := store.ListPosts(context.Background())
	if err != nil {
		t.Fatalf("ListPosts() error = %v", err)
	}

	if want := time.Date(2025, 9, 2, 12, 30, 0, 0, time.UTC); !posts[0].CreatedAt.Equal(want) {
		t.Errorf("post 0 CreatedAt = %v, want %v", posts[0].CreatedAt, want)
	}
	if want := time.Date(2025, 9, 3, 8, 0, 0, 0, time.UTC); !posts[1].CreatedAt.Equal(want) {
		t.Errorf("post 1 CreatedAt = %v, want %v", posts[1].CreatedAt, want)
	}
	if !posts[1].LinksGame("g2") {
		t.Errorf("post 1 links = %v", posts[1].GameIDs)
	}
}

func TestFindSlackIDByEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filterByFormula") == "{Email} = 'a@b.co'" {
			writeJSON(t, w, map[string]any{"records": []map[string]any{
				{"id": "u1", "fields": map[string]any{"slack id": "U777"}},
			}})
			return
		}
		writeJSON(t, w, map[string]any{"records": []any{}})
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	store := NewStore(NewClient(cfg), cfg)

	id, err := store.FindSlackIDByEmail(context.Background(), " a@b.co ")
	if err != nil || id != "U777" {
		t.Errorf("FindSlackIDByEmail() = %q, %v", id, err)
	}
	if _, err := store.FindSlackIDByEmail(context.Background(), "x@y.z"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
