// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package metrics holds the Prometheus collectors for the sync service.
// All collectors register with the default registry via promauto and are
// exposed on /metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync pass metrics
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hackatime_sync_duration_seconds",
			Help:    "Duration of sync passes in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackatime_sync_passes_total",
			Help: "Sync passes by outcome",
		},
		[]string{"outcome"}, // "success", "failure", "skipped"
	)

	SyncRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackatime_sync_running",
			Help: "1 while a sync pass is in progress",
		},
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hackatime_sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync pass",
		},
	)

	GamesUpdated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hackatime_games_updated_total",
			Help: "Games whose HackatimeSeconds were written",
		},
	)

	GameUpdateErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hackatime_game_update_errors_total",
			Help: "Failed HackatimeSeconds writes",
		},
	)

	OwnerFetchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hackatime_owner_fetch_failures_total",
			Help: "Owners whose Hackatime stats could not be fetched and were treated as zero",
		},
	)

	PostsApportioned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackatime_posts_apportioned_total",
			Help: "Post HoursSpent writes by outcome",
		},
		[]string{"outcome"}, // "success", "failure"
	)

	// Upstream API metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackatime_upstream_requests_total",
			Help: "Requests to Airtable and Hackatime",
		},
		[]string{"upstream", "method", "status"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hackatime_upstream_request_duration_seconds",
			Help:    "Duration of requests to Airtable and Hackatime",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream", "method"},
	)

	// HTTP surface metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker by result",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event publishing
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hackatime_events_published_total",
			Help: "Events published by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)
)

// ErrSkipped marks a trigger that found a pass already running.
var ErrSkipped = errors.New("sync skipped")

// RecordSyncPass records a finished (or skipped) pass.
func RecordSyncPass(duration time.Duration, err error) {
	switch {
	case errors.Is(err, ErrSkipped):
		SyncPasses.WithLabelValues("skipped").Inc()
		return
	case err != nil:
		SyncPasses.WithLabelValues("failure").Inc()
	default:
		SyncPasses.WithLabelValues("success").Inc()
		SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
	SyncDuration.Observe(duration.Seconds())
}

// RecordUpstreamRequest records one request to an upstream API. status is
// the HTTP status code, or 0 for a transport error.
func RecordUpstreamRequest(upstream, method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(upstream, method, label).Inc()
	UpstreamRequestDuration.WithLabelValues(upstream, method).Observe(duration.Seconds())
}

// RecordAPIRequest records a request to the HTTP surface.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEventPublish records one event publish attempt.
func RecordEventPublish(topic string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	EventsPublished.WithLabelValues(topic, outcome).Inc()
}
