// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
	"github.com/shiba-arcade/hackatime-sync/internal/sync"
	"github.com/shiba-arcade/hackatime-sync/internal/validation"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// SyncService is implemented by *sync.Manager.
type SyncService interface {
	TriggerSyncWithOptions(ctx context.Context, opts sync.PassOptions) (*models.SyncSummary, error)
	Status() models.SyncStatus
	LastSyncTime() time.Time
	RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
}

// StatsFetcher is implemented by *hackatime.Client.
type StatsFetcher interface {
	UserStats(ctx context.Context, slackID string) (*models.UserStats, error)
}

// ApportionService is implemented by *sync.Apportioner.
type ApportionService interface {
	RunForSlackID(ctx context.Context, slackID string, opts sync.PassOptions) (*models.ApportionReport, error)
}

// Handler holds the HTTP handlers and their collaborators.
type Handler struct {
	sync      SyncService
	stats     StatsFetcher
	apportion ApportionService
	version   string
	now       func() time.Time
}

// NewHandler creates the handler set. apportion may be nil, in which case
// the apportion endpoint is not registered.
func NewHandler(syncSvc SyncService, stats StatsFetcher, apportion ApportionService, version string) *Handler {
	return &Handler{
		sync:      syncSvc,
		stats:     stats,
		apportion: apportion,
		version:   version,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Root handles GET /.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bannerResponse{
		Message:   "Shiba Hackatime Sync Service",
		Timestamp: h.now(),
		Version:   h.version,
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: h.now()})
}

// SyncStatus handles GET /sync-status.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sync.Status())
}

// TriggerSync handles POST /sync. The pass runs to completion even if the
// client goes away.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	log := logging.Ctx(r.Context())
	opts := sync.PassOptions{DryRun: dryRun(r)}

	clearWriteDeadline(w, r)
	summary, err := h.sync.TriggerSyncWithOptions(r.Context(), opts)
	switch {
	case errors.Is(err, sync.ErrSyncInProgress):
		log.Info().Msg("Manual sync rejected, a pass is already running")
		var last *time.Time
		if t := h.sync.LastSyncTime(); !t.IsZero() {
			last = &t
		}
		writeJSON(w, http.StatusConflict, conflictResponse{
			Message:      "Sync already running",
			LastSyncTime: last,
			Timestamp:    h.now(),
		})
	case err != nil:
		log.Error().Err(err).Msg("Manual sync failed")
		writeJSON(w, http.StatusInternalServerError, failureResponse{
			Success:   false,
			Message:   "Failed to sync games",
			Error:     err.Error(),
			Timestamp: h.now(),
		})
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

// SyncRuns handles GET /api/sync-runs.
func (h *Handler) SyncRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunsLimit {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:     "limit must be between 1 and " + strconv.Itoa(maxRunsLimit),
				Path:      r.URL.Path,
				Timestamp: h.now(),
			})
			return
		}
		limit = n
	}

	runs, err := h.sync.RecentRuns(r.Context(), limit)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to list sync runs")
		writeJSON(w, http.StatusInternalServerError, failureResponse{
			Message:   "Failed to list sync runs",
			Error:     err.Error(),
			Timestamp: h.now(),
		})
		return
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}
	writeJSON(w, http.StatusOK, runsResponse{Runs: runs, Count: len(runs), Timestamp: h.now()})
}

// TestHackatime handles GET /api/test-hackatime/{slackId}.
func (h *Handler) TestHackatime(w http.ResponseWriter, r *http.Request) {
	slackID := chi.URLParam(r, "slackId")
	if err := validation.ValidateVar("slackId", slackID, "required,slackid"); err != nil {
		writeJSON(w, http.StatusBadRequest, hackatimeResponse{
			Success:   false,
			SlackID:   slackID,
			Error:     err.Error(),
			Timestamp: h.now(),
		})
		return
	}

	stats, err := h.stats.UserStats(r.Context(), slackID)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("slack_id", slackID).Msg("Hackatime test fetch failed")
		writeJSON(w, http.StatusInternalServerError, hackatimeResponse{
			Success:   false,
			SlackID:   slackID,
			Error:     err.Error(),
			Timestamp: h.now(),
		})
		return
	}

	writeJSON(w, http.StatusOK, hackatimeResponse{
		Success:       true,
		SlackID:       slackID,
		HackatimeData: stats,
		Timestamp:     h.now(),
	})
}

// Apportion handles POST /api/apportion/{slackId}.
func (h *Handler) Apportion(w http.ResponseWriter, r *http.Request) {
	slackID := chi.URLParam(r, "slackId")
	if err := validation.ValidateVar("slackId", slackID, "required,slackid"); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Path: r.URL.Path, Timestamp: h.now()})
		return
	}

	clearWriteDeadline(w, r)
	report, err := h.apportion.RunForSlackID(context.WithoutCancel(r.Context()), slackID, sync.PassOptions{DryRun: dryRun(r)})
	switch {
	case errors.Is(err, sync.ErrApportionInProgress):
		writeJSON(w, http.StatusConflict, conflictResponse{
			Message:   "Apportion already running",
			Timestamp: h.now(),
		})
	case errors.Is(err, sync.ErrInvalidSlackID):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Path: r.URL.Path, Timestamp: h.now()})
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Str("slack_id", slackID).Msg("Apportion run failed")
		writeJSON(w, http.StatusInternalServerError, failureResponse{
			Success:   false,
			Message:   "Failed to apportion hours",
			Error:     err.Error(),
			Timestamp: h.now(),
		})
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

// NotFound answers unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "Route not found", Path: r.URL.Path, Timestamp: h.now()})
}

// MethodNotAllowed answers a known route with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{
		Error:     "Method not allowed",
		Path:      r.URL.Path,
		Method:    r.Method,
		Timestamp: h.now(),
	})
}

// clearWriteDeadline lifts the server WriteTimeout for handlers that answer
// only after a full pass, which routinely outlasts it.
func clearWriteDeadline(w http.ResponseWriter, r *http.Request) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Cannot clear write deadline")
	}
}

// dryRun reads ?dry_run=true|1.
func dryRun(r *http.Request) bool {
	v := strings.ToLower(r.URL.Query().Get("dry_run"))
	return v == "true" || v == "1"
}
