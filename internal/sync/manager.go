// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package sync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/events"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/metrics"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
	"github.com/shiba-arcade/hackatime-sync/internal/store"
)

// State is the manager's run state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Manager orchestrates sync passes and the periodic scheduler.
type Manager struct {
	games     GameStore
	stats     StatsSource
	runs      store.RunStore
	publisher events.Publisher
	cfg       *config.Config

	// statsLimiter paces Hackatime stats requests across owners.
	statsLimiter *rate.Limiter

	mu              sync.RWMutex
	state           State
	lastSyncTime    time.Time
	lastCompletion  time.Time
	lastResult      *models.SyncSummary
	lastError       string
	onSyncCompleted func(*models.SyncSummary)

	started  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	now func() time.Time
}

// NewManager creates a sync manager. runs and publisher may be nil.
func NewManager(games GameStore, stats StatsSource, runs store.RunStore, publisher events.Publisher, cfg *config.Config) *Manager {
	if runs == nil {
		runs = store.NopStore{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	logging.Info().
		Bool("scheduler_enabled", cfg.Sync.Enabled).
		Dur("interval", cfg.Sync.Interval).
		Dur("initial_delay", cfg.Sync.InitialDelay).
		Int("fetch_concurrency", cfg.Sync.FetchConcurrency).
		Dur("request_delay", cfg.Hackatime.RequestDelay).
		Msg("Sync manager config loaded")

	return &Manager{
		games:        games,
		stats:        stats,
		runs:         runs,
		publisher:    publisher,
		cfg:          cfg,
		statsLimiter: pacer(cfg.Hackatime.RequestDelay),
		state:        StateIdle,
		stopChan:     make(chan struct{}),
		now:          time.Now,
	}
}

// pacer allows one event per delay; a zero delay disables pacing.
func pacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// OnSyncCompleted registers a callback invoked after each successful pass.
func (m *Manager) OnSyncCompleted(fn func(*models.SyncSummary)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSyncCompleted = fn
}

// Start restores the most recent recorded run and launches the scheduler
// when it is enabled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.started = true
	m.mu.Unlock()

	m.restoreLastRun(ctx)

	if !m.cfg.Sync.Enabled {
		logging.Info().Msg("Sync scheduler disabled (SYNC_ENABLED=false), manual triggers only")
		return nil
	}

	m.wg.Add(1)
	go m.schedule(ctx)
	logging.Info().
		Dur("initial_delay", m.cfg.Sync.InitialDelay).
		Dur("interval", m.cfg.Sync.Interval).
		Msg("Sync scheduler started")
	return nil
}

// Stop stops the scheduler and waits for it. A pass in flight on the
// scheduler goroutine finishes first unless its context is canceled.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.started = false
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
	return nil
}

func (m *Manager) restoreLastRun(ctx context.Context) {
	run, err := m.runs.LatestRun(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoRuns) {
			logging.Warn().Err(err).Msg("Failed to load last sync run")
		}
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCompletion = run.CompletedAt
	if run.Error != "" {
		m.lastError = run.Error
	} else if run.Summary != nil {
		m.lastResult = run.Summary
		m.lastSyncTime = run.CompletedAt
	}
	logging.Info().
		Str("run_id", run.RunID).
		Time("completed_at", run.CompletedAt).
		Bool("failed", run.Error != "").
		Msg("Restored last sync run")
}

func (m *Manager) schedule(ctx context.Context) {
	defer m.wg.Done()

	timer := time.NewTimer(m.cfg.Sync.InitialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-m.stopChan:
		return
	case <-timer.C:
		m.scheduledPass(ctx)
	}

	ticker := time.NewTicker(m.cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.scheduledPass(ctx)
		}
	}
}

func (m *Manager) scheduledPass(ctx context.Context) {
	_, err := m.trigger(ctx, PassOptions{})
	switch {
	case errors.Is(err, ErrSyncInProgress):
		logging.Info().Msg("Scheduled sync skipped, a pass is already running")
	case err != nil:
		logging.Error().Err(err).Msg("Scheduled sync failed")
	}
}

// TriggerSync runs a pass now. The pass outlives ctx's cancellation so a
// disconnected HTTP client does not abort it halfway through the writes.
func (m *Manager) TriggerSync(ctx context.Context) (*models.SyncSummary, error) {
	return m.TriggerSyncWithOptions(ctx, PassOptions{})
}

// TriggerSyncWithOptions is TriggerSync with pass options.
func (m *Manager) TriggerSyncWithOptions(ctx context.Context, opts PassOptions) (*models.SyncSummary, error) {
	return m.trigger(context.WithoutCancel(ctx), opts)
}

func (m *Manager) trigger(ctx context.Context, opts PassOptions) (*models.SyncSummary, error) {
	if !m.tryAcquire() {
		metrics.RecordSyncPass(0, metrics.ErrSkipped)
		return nil, ErrSyncInProgress
	}

	runID := logging.GenerateRunID()
	ctx = logging.ContextWithRunID(ctx, runID)
	return m.run(ctx, runID, opts)
}

// tryAcquire moves idle to running. It must stay free of suspension points.
func (m *Manager) tryAcquire() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateRunning {
		return false
	}
	m.state = StateRunning
	metrics.SyncRunning.Set(1)
	return true
}

func (m *Manager) run(ctx context.Context, runID string, opts PassOptions) (summary *models.SyncSummary, err error) {
	startedAt := m.now()
	log := logging.Ctx(ctx)
	log.Info().Bool("dry_run", opts.DryRun).Msg("Starting sync pass")

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Sync pass panicked")
			summary = nil
			err = fmt.Errorf("sync pass panicked: %v", r)
		}
		m.finish(ctx, runID, startedAt, summary, err)
	}()

	return m.runPass(ctx, runID, startedAt, opts)
}

// finish records the outcome and returns the manager to idle.
func (m *Manager) finish(ctx context.Context, runID string, startedAt time.Time, summary *models.SyncSummary, err error) {
	completedAt := m.now()

	m.mu.Lock()
	m.lastCompletion = completedAt
	if err != nil {
		m.lastError = err.Error()
	} else {
		m.lastResult = summary
		m.lastSyncTime = completedAt
		m.lastError = ""
	}
	callback := m.onSyncCompleted
	m.state = StateIdle
	m.mu.Unlock()

	metrics.SyncRunning.Set(0)
	metrics.RecordSyncPass(completedAt.Sub(startedAt), err)

	log := logging.Ctx(ctx)
	if err != nil {
		log.Error().Err(err).Dur("duration", completedAt.Sub(startedAt)).Msg("Sync pass failed")
	} else {
		log.Info().
			Int("total_games", summary.TotalGames).
			Int("unique_users", summary.UniqueUsers).
			Int("successful_updates", summary.SuccessfulUpdates).
			Int("errors", summary.Errors).
			Int("skipped_games", summary.SkippedGames).
			Int("owner_fetch_failures", summary.OwnerFetchFailures).
			Int64("duration_ms", summary.DurationMs).
			Msg("Sync pass completed")
	}

	run := &models.SyncRun{RunID: runID, CompletedAt: completedAt, Summary: summary}
	if err != nil {
		run.Error = err.Error()
	}
	if saveErr := m.runs.SaveRun(ctx, run); saveErr != nil {
		log.Warn().Err(saveErr).Msg("Failed to record sync run")
	}

	completed := &events.SyncCompleted{
		RunID:       runID,
		Success:     err == nil,
		Error:       run.Error,
		Summary:     summary,
		CompletedAt: completedAt,
	}
	if pubErr := m.publisher.PublishSyncCompleted(ctx, completed); pubErr != nil {
		log.Warn().Err(pubErr).Msg("Failed to publish sync completion")
	}

	if err == nil && callback != nil {
		callback(summary)
	}
}

// IsRunning reports whether a pass is in flight.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateRunning
}

// LastSyncTime returns the completion time of the last successful pass.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSyncTime
}

// Status returns a snapshot of the manager's state.
func (m *Manager) Status() models.SyncStatus {
	now := m.now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	status := models.SyncStatus{
		State:               string(m.state),
		IsRunning:           m.state == StateRunning,
		LastSyncResult:      m.lastResult,
		LastError:           m.lastError,
		SyncIntervalMinutes: m.cfg.Sync.Interval.Minutes(),
		SchedulerEnabled:    m.cfg.Sync.Enabled && m.started,
		Timestamp:           now,
	}
	if !m.lastSyncTime.IsZero() {
		t := m.lastSyncTime
		status.LastSyncTime = &t

		next := m.cfg.Sync.Interval - now.Sub(t)
		if next < 0 {
			next = 0
		}
		ms := next.Milliseconds()
		status.NextSyncInMs = &ms
	}
	if !m.lastCompletion.IsZero() {
		t := m.lastCompletion
		status.LastCompletion = &t
	}
	return status
}

// RecentRuns returns up to limit recorded runs, newest first.
func (m *Manager) RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	return m.runs.ListRuns(ctx, limit)
}
