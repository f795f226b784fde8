// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package sync

import (
	"context"
	"errors"
	"maps"
	"strings"
	"testing"
	"time"

	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

func standardFixture() (*fakeGameStore, *fakeHackatime) {
	games := newFakeGameStore(
		game("g1", "U1", "alpha", "beta"),
		game("g2", "U1", "Alpha", "gamma"),
		game("g3", "U2", "alpha"),
		game("g4", "U2"),
		game("g5", "", "alpha"),
	)
	source := &fakeHackatime{
		stats: map[string]*models.UserStats{
			"U1": projects("alpha", 100, "beta", 50, "gamma", 7),
			"U2": projects("alpha", 30),
		},
	}
	return games, source
}

func TestTriggerSyncAllocatesPerOwner(t *testing.T) {
	games, source := standardFixture()
	pub := &fakePublisher{}
	runs := &fakeRunStore{}
	m := NewManager(games, source, runs, pub, testConfig())

	summary, err := m.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}

	want := map[string]int64{"g1": 150, "g2": 7, "g3": 30}
	for id, seconds := range want {
		got, ok := games.updated(id)
		if !ok {
			t.Errorf("game %s was not written", id)
			continue
		}
		if got != seconds {
			t.Errorf("game %s seconds = %d, want %d", id, got, seconds)
		}
	}
	for _, id := range []string{"g4", "g5"} {
		if _, ok := games.updated(id); ok {
			t.Errorf("game %s should have been skipped", id)
		}
	}

	if !summary.Success || summary.TotalGames != 5 || summary.UniqueUsers != 2 ||
		summary.SuccessfulUpdates != 3 || summary.SkippedGames != 2 || summary.Errors != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(summary.Games) != 5 || summary.Games[0].ID != "g1" || summary.Games[4].ID != "g5" {
		t.Errorf("game results out of fetch order: %+v", summary.Games)
	}
	if summary.RunID == "" {
		t.Error("summary has no run id")
	}

	if len(pub.games) != 3 {
		t.Errorf("published %d game events, want 3", len(pub.games))
	}
	if len(pub.completed) != 1 || !pub.completed[0].Success {
		t.Errorf("sync completion events = %+v", pub.completed)
	}
	if runs.count() != 1 {
		t.Errorf("recorded %d runs, want 1", runs.count())
	}
}

func TestProjectCreditedOncePerOwner(t *testing.T) {
	games := newFakeGameStore(
		game("g1", "U1", "shared"),
		game("g2", "U1", "SHARED", "solo"),
		game("g3", "U1", "shared"),
	)
	source := &fakeHackatime{stats: map[string]*models.UserStats{
		"U1": projects("Shared", 1000, "solo", 10),
	}}
	m := NewManager(games, source, nil, nil, testConfig())

	summary, err := m.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}

	var total int64
	for _, r := range summary.Games {
		total += r.HackatimeSeconds
	}
	if total != 1010 {
		t.Errorf("total credited = %d, want 1010", total)
	}
	if got, _ := games.updated("g3"); got != 0 {
		t.Errorf("g3 = %d, want 0", got)
	}
}

func TestRepeatedPassWritesSameValues(t *testing.T) {
	games, source := standardFixture()
	m := NewManager(games, source, nil, nil, testConfig())

	first, err := m.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("first TriggerSync: %v", err)
	}
	games.mu.Lock()
	firstWrites := maps.Clone(games.updates)
	clear(games.updates)
	games.mu.Unlock()

	second, err := m.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("second TriggerSync: %v", err)
	}
	games.mu.Lock()
	secondWrites := maps.Clone(games.updates)
	games.mu.Unlock()

	if len(firstWrites) != 3 || !maps.Equal(firstWrites, secondWrites) {
		t.Errorf("writes differ between passes: first %v, second %v", firstWrites, secondWrites)
	}
	if first.RunID == second.RunID {
		t.Error("each pass should get its own run id")
	}
	for i := range first.Games {
		if first.Games[i] != second.Games[i] {
			t.Errorf("game %d result = %+v, then %+v", i, first.Games[i], second.Games[i])
		}
	}
}

func TestGameWithBlankProjectsKeepsStoredSeconds(t *testing.T) {
	blank := game("g2", "U1")
	blank.HackatimeSeconds = 900
	games := newFakeGameStore(game("g1", "U1", "alpha"), blank)
	source := &fakeHackatime{stats: map[string]*models.UserStats{
		"U1": projects("alpha", 100, "beta", 50),
	}}
	m := NewManager(games, source, nil, nil, testConfig())

	summary, err := m.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	if _, ok := games.updated("g2"); ok {
		t.Error("a game with no usable project names must not be written")
	}
	if !summary.Games[1].Skipped || summary.SkippedGames != 1 {
		t.Errorf("g2 result = %+v, skipped = %d", summary.Games[1], summary.SkippedGames)
	}
}

func TestOwnerFetchFailureTreatedAsZero(t *testing.T) {
	games, source := standardFixture()
	source.statsErr = map[string]error{"U1": errors.New("hackatime down")}
	m := NewManager(games, source, nil, nil, testConfig())

	summary, err := m.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	if summary.OwnerFetchFailures != 1 {
		t.Errorf("OwnerFetchFailures = %d, want 1", summary.OwnerFetchFailures)
	}
	if summary.Errors != 0 {
		t.Errorf("Errors = %d, want 0", summary.Errors)
	}
	if got, ok := games.updated("g1"); !ok || got != 0 {
		t.Errorf("g1 = %d (written %v), want 0 written", got, ok)
	}
	if got, _ := games.updated("g3"); got != 30 {
		t.Errorf("g3 = %d, want 30", got)
	}
}

func TestWriteFailureCountedAndPassContinues(t *testing.T) {
	games, source := standardFixture()
	games.failUpdate["g1"] = errors.New("airtable 422")
	m := NewManager(games, source, nil, nil, testConfig())

	summary, err := m.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	if summary.Errors != 1 || summary.SuccessfulUpdates != 2 {
		t.Errorf("errors=%d successes=%d, want 1 and 2", summary.Errors, summary.SuccessfulUpdates)
	}
	if summary.Games[0].Error == "" || summary.Games[0].Updated {
		t.Errorf("g1 result = %+v", summary.Games[0])
	}
	// g1's failed write still consumed its claims.
	if got, _ := games.updated("g2"); got != 7 {
		t.Errorf("g2 = %d, want 7", got)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	games, source := standardFixture()
	m := NewManager(games, source, nil, nil, testConfig())

	summary, err := m.TriggerSyncWithOptions(context.Background(), PassOptions{DryRun: true})
	if err != nil {
		t.Fatalf("TriggerSyncWithOptions: %v", err)
	}
	if len(games.updates) != 0 {
		t.Errorf("dry run wrote %v", games.updates)
	}
	if !summary.DryRun || summary.Games[0].HackatimeSeconds != 150 || summary.SuccessfulUpdates != 0 {
		t.Errorf("unexpected dry-run summary: %+v", summary)
	}
}

func TestMissingCredentialsFailsBeforeFetching(t *testing.T) {
	games, source := standardFixture()
	games.noCreds = true
	m := NewManager(games, source, nil, nil, testConfig())

	_, err := m.TriggerSync(context.Background())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
	if games.listCalls != 0 || len(source.calls) != 0 {
		t.Errorf("made requests without credentials: list=%d stats=%d", games.listCalls, len(source.calls))
	}

	status := m.Status()
	if status.IsRunning || status.LastError == "" || status.LastCompletion == nil {
		t.Errorf("status after failure = %+v", status)
	}
	if status.LastSyncTime != nil {
		t.Error("failed pass must not set lastSyncTime")
	}
}

func TestGamesFetchFailureFailsPass(t *testing.T) {
	games, source := standardFixture()
	games.listErr = errors.New("airtable unavailable")
	m := NewManager(games, source, nil, nil, testConfig())

	if _, err := m.TriggerSync(context.Background()); err == nil || !strings.Contains(err.Error(), "fetch games") {
		t.Fatalf("err = %v, want games fetch error", err)
	}
	if m.IsRunning() {
		t.Error("manager still running after failure")
	}
}

func TestPanicRecoveredAndStateReleased(t *testing.T) {
	games, source := standardFixture()
	games.listPanic = true
	runs := &fakeRunStore{}
	m := NewManager(games, source, runs, nil, testConfig())

	_, err := m.TriggerSync(context.Background())
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("err = %v, want panic error", err)
	}
	if m.IsRunning() {
		t.Fatal("state not released after panic")
	}
	if !strings.Contains(m.Status().LastError, "record store exploded") {
		t.Errorf("LastError = %q", m.Status().LastError)
	}

	games.listPanic = false
	if _, err := m.TriggerSync(context.Background()); err != nil {
		t.Fatalf("TriggerSync after panic: %v", err)
	}
	if runs.count() != 2 {
		t.Errorf("recorded %d runs, want 2", runs.count())
	}
}

func TestConcurrentTriggerReturnsInProgress(t *testing.T) {
	games, source := standardFixture()
	games.entered = make(chan struct{})
	games.release = make(chan struct{})
	m := NewManager(games, source, nil, nil, testConfig())

	done := make(chan error, 1)
	go func() {
		_, err := m.TriggerSync(context.Background())
		done <- err
	}()

	<-games.entered
	if !m.Status().IsRunning {
		t.Error("status should report running")
	}
	if _, err := m.TriggerSync(context.Background()); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("second trigger err = %v, want ErrSyncInProgress", err)
	}

	close(games.release)
	if err := <-done; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if games.listCalls != 1 {
		t.Errorf("ListGames called %d times, want 1", games.listCalls)
	}
	if m.IsRunning() {
		t.Error("manager still running")
	}
}

func TestTriggerSyncIgnoresCallerCancellation(t *testing.T) {
	games, source := standardFixture()
	m := NewManager(games, source, nil, nil, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.TriggerSync(ctx); err != nil {
		t.Fatalf("TriggerSync with canceled caller context: %v", err)
	}
	if _, ok := games.updated("g1"); !ok {
		t.Error("pass did not complete")
	}
}

func TestConcurrentFetchMatchesSequential(t *testing.T) {
	games, source := standardFixture()
	cfg := testConfig()
	cfg.Sync.FetchConcurrency = 4
	m := NewManager(games, source, nil, nil, cfg)

	summary, err := m.TriggerSync(context.Background())
	if err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	if len(source.calls) != 2 {
		t.Errorf("stats fetched %d times, want once per owner", len(source.calls))
	}
	if summary.Games[0].HackatimeSeconds != 150 || summary.Games[1].HackatimeSeconds != 7 {
		t.Errorf("unexpected allocation: %+v", summary.Games)
	}
}

func TestStatusNextSync(t *testing.T) {
	games, source := standardFixture()
	cfg := testConfig()
	cfg.Sync.Interval = 5 * time.Minute
	m := NewManager(games, source, nil, nil, cfg)

	status := m.Status()
	if status.NextSyncInMs != nil || status.LastSyncTime != nil {
		t.Errorf("fresh status = %+v", status)
	}
	if status.State != string(StateIdle) || status.SyncIntervalMinutes != 5 {
		t.Errorf("fresh status = %+v", status)
	}

	if _, err := m.TriggerSync(context.Background()); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	status = m.Status()
	if status.NextSyncInMs == nil {
		t.Fatal("NextSyncInMs nil after a successful pass")
	}
	if next := *status.NextSyncInMs; next < 0 || next > cfg.Sync.Interval.Milliseconds() {
		t.Errorf("NextSyncInMs = %d, want within [0, %d]", next, cfg.Sync.Interval.Milliseconds())
	}
	if status.LastSyncResult == nil || status.LastSyncResult.SuccessfulUpdates != 3 {
		t.Errorf("LastSyncResult = %+v", status.LastSyncResult)
	}
}

func TestOnSyncCompleted(t *testing.T) {
	games, source := standardFixture()
	m := NewManager(games, source, nil, nil, testConfig())

	var got *models.SyncSummary
	m.OnSyncCompleted(func(s *models.SyncSummary) { got = s })

	if _, err := m.TriggerSync(context.Background()); err != nil {
		t.Fatalf("TriggerSync: %v", err)
	}
	if got == nil || got.SuccessfulUpdates != 3 {
		t.Errorf("callback summary = %+v", got)
	}
}

func TestStartRestoresLastRun(t *testing.T) {
	games, source := standardFixture()
	completed := time.Now().Add(-time.Minute).UTC()
	runs := &fakeRunStore{runs: []models.SyncRun{{
		RunID:       "abc12345",
		CompletedAt: completed,
		Summary:     &models.SyncSummary{RunID: "abc12345", Success: true, SuccessfulUpdates: 9},
	}}}
	m := NewManager(games, source, runs, nil, testConfig())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = m.Stop() }()

	status := m.Status()
	if status.LastSyncTime == nil || !status.LastSyncTime.Equal(completed) {
		t.Errorf("LastSyncTime = %v, want %v", status.LastSyncTime, completed)
	}
	if status.LastSyncResult == nil || status.LastSyncResult.SuccessfulUpdates != 9 {
		t.Errorf("LastSyncResult = %+v", status.LastSyncResult)
	}
	if status.SchedulerEnabled {
		t.Error("scheduler should be disabled")
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
}

func TestSchedulerRunsAfterInitialDelay(t *testing.T) {
	games, source := standardFixture()
	cfg := testConfig()
	cfg.Sync.Enabled = true
	cfg.Sync.InitialDelay = 10 * time.Millisecond
	cfg.Sync.Interval = time.Hour
	m := NewManager(games, source, nil, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.LastSyncTime().IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("scheduled pass did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !m.Status().SchedulerEnabled {
		t.Error("scheduler should be enabled")
	}

	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := m.Stop(); err == nil {
		t.Error("second Stop should fail")
	}
}
