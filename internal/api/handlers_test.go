// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
	"github.com/shiba-arcade/hackatime-sync/internal/sync"
)

type fakeSync struct {
	summary  *models.SyncSummary
	err      error
	lastSync time.Time
	status   models.SyncStatus
	runs     []models.SyncRun
	gotOpts  sync.PassOptions
	gotLimit int
	calls    int
	delay    time.Duration
}

func (f *fakeSync) TriggerSyncWithOptions(_ context.Context, opts sync.PassOptions) (*models.SyncSummary, error) {
	f.calls++
	f.gotOpts = opts
	time.Sleep(f.delay)
	return f.summary, f.err
}

func (f *fakeSync) Status() models.SyncStatus { return f.status }

func (f *fakeSync) LastSyncTime() time.Time { return f.lastSync }

func (f *fakeSync) RecentRuns(_ context.Context, limit int) ([]models.SyncRun, error) {
	f.gotLimit = limit
	return f.runs, nil
}

type fakeStats struct {
	stats *models.UserStats
	err   error
}

func (f *fakeStats) UserStats(context.Context, string) (*models.UserStats, error) {
	return f.stats, f.err
}

type fakeApportion struct {
	report *models.ApportionReport
	err    error
	gotID  string
	delay  time.Duration
}

func (f *fakeApportion) RunForSlackID(_ context.Context, slackID string, _ sync.PassOptions) (*models.ApportionReport, error) {
	f.gotID = slackID
	time.Sleep(f.delay)
	return f.report, f.err
}

func newTestRouter(s *fakeSync, st *fakeStats, ap *fakeApportion) http.Handler {
	security := config.Default().Security
	security.RateLimitDisabled = true
	var apportion ApportionService
	if ap != nil {
		apportion = ap
	}
	h := NewHandler(s, st, apportion, "test")
	return NewRouter(h, NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&security))).SetupChi()
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, target, err, rec.Body.String())
		}
	}
	return rec, body
}

func TestRootAndHealth(t *testing.T) {
	h := newTestRouter(&fakeSync{}, &fakeStats{}, nil)

	rec, body := do(t, h, http.MethodGet, "/health")
	if rec.Code != http.StatusOK || body["status"] != "healthy" {
		t.Errorf("/health = %d %v", rec.Code, body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	rec, body = do(t, h, http.MethodGet, "/")
	if rec.Code != http.StatusOK || body["version"] != "test" || body["message"] == "" {
		t.Errorf("/ = %d %v", rec.Code, body)
	}
}

func TestTriggerSyncSuccess(t *testing.T) {
	s := &fakeSync{summary: &models.SyncSummary{RunID: "r1", Success: true, SuccessfulUpdates: 4}}
	h := newTestRouter(s, &fakeStats{}, nil)

	rec, body := do(t, h, http.MethodPost, "/sync?dry_run=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["successfulUpdates"] != float64(4) || body["success"] != true {
		t.Errorf("body = %v", body)
	}
	if !s.gotOpts.DryRun {
		t.Error("dry_run not forwarded")
	}

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		if rec, _ := do(t, h, method, "/api/SyncAllGames"); rec.Code != http.StatusOK {
			t.Errorf("%s /api/SyncAllGames = %d", method, rec.Code)
		}
	}
	if s.calls != 3 {
		t.Errorf("trigger calls = %d, want 3", s.calls)
	}
}

func TestTriggerSyncConflict(t *testing.T) {
	last := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	s := &fakeSync{err: sync.ErrSyncInProgress, lastSync: last}
	h := newTestRouter(s, &fakeStats{}, nil)

	rec, body := do(t, h, http.MethodPost, "/sync")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["message"] != "Sync already running" || body["lastSyncTime"] != "2025-09-01T12:00:00Z" {
		t.Errorf("body = %v", body)
	}
}

func TestTriggerSyncFailure(t *testing.T) {
	s := &fakeSync{err: errors.New("airtable unavailable")}
	h := newTestRouter(s, &fakeStats{}, nil)

	rec, body := do(t, h, http.MethodPost, "/sync")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["success"] != false || body["message"] != "Failed to sync games" || body["error"] != "airtable unavailable" {
		t.Errorf("body = %v", body)
	}
}

func TestSyncStatusAliases(t *testing.T) {
	s := &fakeSync{status: models.SyncStatus{State: "idle", SyncIntervalMinutes: 5}}
	h := newTestRouter(s, &fakeStats{}, nil)

	for _, path := range []string{"/sync-status", "/api/sync-status"} {
		rec, body := do(t, h, http.MethodGet, path)
		if rec.Code != http.StatusOK || body["state"] != "idle" || body["syncIntervalMinutes"] != float64(5) {
			t.Errorf("%s = %d %v", path, rec.Code, body)
		}
		if _, ok := body["nextSyncIn"]; !ok {
			t.Errorf("%s missing nextSyncIn", path)
		}
	}
}

func TestSyncRuns(t *testing.T) {
	s := &fakeSync{runs: []models.SyncRun{{RunID: "b"}, {RunID: "a"}}}
	h := newTestRouter(s, &fakeStats{}, nil)

	rec, body := do(t, h, http.MethodGet, "/api/sync-runs?limit=5")
	if rec.Code != http.StatusOK || body["count"] != float64(2) || s.gotLimit != 5 {
		t.Errorf("runs = %d %v limit=%d", rec.Code, body, s.gotLimit)
	}

	if rec, _ := do(t, h, http.MethodGet, "/api/sync-runs?limit=0"); rec.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", rec.Code)
	}
}

func TestTestHackatime(t *testing.T) {
	st := &fakeStats{stats: &models.UserStats{
		Projects:     []models.TrackedProject{{Name: "alpha", TotalSeconds: 60}},
		TotalSeconds: 60,
	}}
	h := newTestRouter(&fakeSync{}, st, nil)

	rec, body := do(t, h, http.MethodGet, "/api/test-hackatime/U123")
	if rec.Code != http.StatusOK || body["success"] != true || body["slackId"] != "U123" {
		t.Fatalf("= %d %v", rec.Code, body)
	}
	data, _ := body["hackatimeData"].(map[string]any)
	if data == nil || data["total_seconds"] != float64(60) {
		t.Errorf("hackatimeData = %v", body["hackatimeData"])
	}

	if rec, _ := do(t, h, http.MethodGet, "/api/test-hackatime/bad!id"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", rec.Code)
	}

	st.err = errors.New("hackatime down")
	if rec, body := do(t, h, http.MethodGet, "/api/test-hackatime/U123"); rec.Code != http.StatusInternalServerError || body["success"] != false {
		t.Errorf("fetch failure = %d %v", rec.Code, body)
	}
}

func TestApportionEndpoint(t *testing.T) {
	ap := &fakeApportion{report: &models.ApportionReport{SlackID: "U1", PostsUpdated: 3}}
	h := newTestRouter(&fakeSync{}, &fakeStats{}, ap)

	rec, body := do(t, h, http.MethodPost, "/api/apportion/U1")
	if rec.Code != http.StatusOK || body["postsUpdated"] != float64(3) || ap.gotID != "U1" {
		t.Errorf("= %d %v", rec.Code, body)
	}

	ap.err = sync.ErrApportionInProgress
	if rec, _ := do(t, h, http.MethodPost, "/api/apportion/U1"); rec.Code != http.StatusConflict {
		t.Errorf("in progress status = %d, want 409", rec.Code)
	}

	if rec, _ := do(t, h, http.MethodPost, "/api/apportion/bad!id"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid id status = %d, want 400", rec.Code)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestRouter(&fakeSync{}, &fakeStats{}, nil)

	rec, body := do(t, h, http.MethodGet, "/nope")
	if rec.Code != http.StatusNotFound || body["error"] != "Route not found" || body["path"] != "/nope" {
		t.Errorf("404 = %d %v", rec.Code, body)
	}

	rec, body = do(t, h, http.MethodDelete, "/health")
	if rec.Code != http.StatusMethodNotAllowed || body["error"] != "Method not allowed" {
		t.Errorf("405 = %d %v", rec.Code, body)
	}

	// Without an apportioner the route does not exist.
	if rec, _ := do(t, h, http.MethodPost, "/api/apportion/U1"); rec.Code != http.StatusNotFound {
		t.Errorf("apportion without runner = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(&fakeSync{}, &fakeStats{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("/metrics = %d", rec.Code)
	}
}

func TestTriggerRateLimit(t *testing.T) {
	security := config.Default().Security
	security.RateLimitReqs = 1
	security.RateLimitWindow = time.Minute
	h := NewRouter(
		NewHandler(&fakeSync{summary: &models.SyncSummary{Success: true}}, &fakeStats{}, nil, "test"),
		NewChiMiddleware(ChiMiddlewareConfigFromSecurity(&security)),
	).SetupChi()

	if rec, _ := do(t, h, http.MethodPost, "/sync"); rec.Code != http.StatusOK {
		t.Fatalf("first trigger = %d", rec.Code)
	}
	rec, body := do(t, h, http.MethodPost, "/sync")
	if rec.Code != http.StatusTooManyRequests || body["error"] != "Too many requests" {
		t.Errorf("second trigger = %d %v", rec.Code, body)
	}
	if rec, _ := do(t, h, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Errorf("health should not be rate limited, got %d", rec.Code)
	}
}

func TestLongRunsOutlastWriteTimeout(t *testing.T) {
	s := &fakeSync{summary: &models.SyncSummary{RunID: "slow", Success: true}, delay: 300 * time.Millisecond}
	ap := &fakeApportion{report: &models.ApportionReport{SlackID: "U1"}, delay: 300 * time.Millisecond}

	srv := httptest.NewUnstartedServer(newTestRouter(s, &fakeStats{}, ap))
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	for _, path := range []string{"/sync", "/api/apportion/U1"} {
		resp, err := srv.Client().Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		var body map[string]any
		decodeErr := json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || decodeErr != nil {
			t.Errorf("POST %s: status %d, decode err %v", path, resp.StatusCode, decodeErr)
		}
	}
	if s.calls != 1 || ap.gotID != "U1" {
		t.Errorf("calls = %d, apportion id = %q", s.calls, ap.gotID)
	}
}
