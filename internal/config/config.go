// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package config loads service configuration.
//
// Loading order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig()
//  2. Config file: optional YAML (CONFIG_PATH, config.yaml, /etc/hackatime-sync/config.yaml)
//  3. Environment variables: override any setting; the legacy variable
//     names (AIRTABLE_API_KEY, HACKATIME_START_DATE, PORT, ...) still work
//
// Config is immutable after Load and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for Hackatime date bounds.
const DateLayout = "2006-01-02"

// Config holds all service configuration.
type Config struct {
	Airtable  AirtableConfig  `koanf:"airtable"`
	Hackatime HackatimeConfig `koanf:"hackatime"`
	Sync      SyncConfig      `koanf:"sync"`
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Store     StoreConfig     `koanf:"store"`
	Events    EventsConfig    `koanf:"events"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// AirtableConfig configures the record-store client.
//
// APIKey and BaseID are deliberately not required at startup: a pass run
// without them fails with a configuration error instead.
type AirtableConfig struct {
	APIKey            string        `koanf:"api_key"`
	BaseID            string        `koanf:"base_id"`
	APIBase           string        `koanf:"api_base" validate:"required,url"`
	GamesTable        string        `koanf:"games_table" validate:"required"`
	PostsTable        string        `koanf:"posts_table" validate:"required"`
	UsersTable        string        `koanf:"users_table" validate:"required"`
	PageSize          int           `koanf:"page_size" validate:"min=1,max=100"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
	RetryAttempts     int           `koanf:"retry_attempts" validate:"min=1,max=10"`
	RetryDelay        time.Duration `koanf:"retry_delay" validate:"gte=0"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
}

// HasCredentials reports whether both the API key and base id are set.
func (c AirtableConfig) HasCredentials() bool {
	return c.APIKey != "" && c.BaseID != ""
}

// HackatimeConfig configures the time-tracking client.
type HackatimeConfig struct {
	APIBase     string `koanf:"api_base" validate:"required,url"`
	APIKey      string `koanf:"api_key"`
	BypassToken string `koanf:"bypass_token"`

	// StartDate is the tracking start (YYYY-MM-DD). It bounds stats queries
	// and opens the first post window.
	StartDate string `koanf:"start_date" validate:"required"`

	// EndDate (YYYY-MM-DD) bounds stats queries; empty means today.
	EndDate string `koanf:"end_date"`

	RequestDelay     time.Duration `koanf:"request_delay" validate:"gte=0"`
	SpanRequestDelay time.Duration `koanf:"span_request_delay" validate:"gte=0"`
	MaxRetries       int           `koanf:"max_retries" validate:"min=0,max=5"`
	RetryDelay       time.Duration `koanf:"retry_delay" validate:"gte=0"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`

	// StatsCacheTTL caches lookups served by the diagnostic endpoint.
	// Zero disables the cache.
	StatsCacheTTL time.Duration `koanf:"stats_cache_ttl" validate:"gte=0"`
}

// TrackingStart parses StartDate as UTC midnight.
func (c HackatimeConfig) TrackingStart() (time.Time, error) {
	t, err := time.Parse(DateLayout, c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hackatime start date %q: %w", c.StartDate, err)
	}
	return t.UTC(), nil
}

// EndDateOn returns EndDate, or the calendar date of now when unset.
func (c HackatimeConfig) EndDateOn(now time.Time) string {
	if c.EndDate != "" {
		return c.EndDate
	}
	return now.UTC().Format(DateLayout)
}

// SyncConfig controls the scheduler and the sync pass.
type SyncConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Interval     time.Duration `koanf:"interval" validate:"gt=0"`
	InitialDelay time.Duration `koanf:"initial_delay" validate:"gte=0"`

	// FetchConcurrency > 1 fetches owner stats through a bounded worker
	// group. Allocation and writes stay in fetch order regardless.
	FetchConcurrency int `koanf:"fetch_concurrency" validate:"min=1,max=16"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// SecurityConfig holds CORS and rate-limit settings for the HTTP surface.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// StoreConfig configures the BadgerDB run-history store.
type StoreConfig struct {
	Enabled      bool   `koanf:"enabled"`
	Path         string `koanf:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory     bool   `koanf:"in_memory"`
	HistoryLimit int    `koanf:"history_limit" validate:"min=1"`
}

// EventsConfig configures the optional NATS event publisher.
type EventsConfig struct {
	Enabled     bool   `koanf:"enabled"`
	NATSURL     string `koanf:"nats_url" validate:"required_if=Enabled true"`
	TopicPrefix string `koanf:"topic_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
