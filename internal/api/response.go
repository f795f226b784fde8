// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

type bannerResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// conflictResponse answers a trigger that found a run in progress.
type conflictResponse struct {
	Message      string     `json:"message"`
	LastSyncTime *time.Time `json:"lastSyncTime"`
	Timestamp    time.Time  `json:"timestamp"`
}

// failureResponse answers a run that failed as a whole.
type failureResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type hackatimeResponse struct {
	Success       bool              `json:"success"`
	SlackID       string            `json:"slackId"`
	HackatimeData *models.UserStats `json:"hackatimeData,omitempty"`
	Error         string            `json:"error,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

type runsResponse struct {
	Runs      []models.SyncRun `json:"runs"`
	Count     int              `json:"count"`
	Timestamp time.Time        `json:"timestamp"`
}

// errorBody is used for routing and validation errors.
type errorBody struct {
	Error     string    `json:"error"`
	Path      string    `json:"path,omitempty"`
	Method    string    `json:"method,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// writeJSON sends v as JSON with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}
