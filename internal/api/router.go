// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiba-arcade/hackatime-sync/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global for OPTIONS preflight
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(router.handler.NotFound)
	r.MethodNotAllowed(router.handler.MethodNotAllowed)

	r.Get("/", router.handler.Root)
	r.Get("/health", router.handler.Health)
	r.Get("/sync-status", router.handler.SyncStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Trigger endpoints start upstream work and are rate limited per IP.
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Post("/sync", router.handler.TriggerSync)
		r.Get("/api/SyncAllGames", router.handler.TriggerSync)
		r.Post("/api/SyncAllGames", router.handler.TriggerSync)
		r.Get("/api/test-hackatime/{slackId}", router.handler.TestHackatime)
		if router.handler.apportion != nil {
			r.Post("/api/apportion/{slackId}", router.handler.Apportion)
		}
	})

	r.Get("/api/sync-status", router.handler.SyncStatus)
	r.Get("/api/sync-runs", router.handler.SyncRuns)

	return r
}
