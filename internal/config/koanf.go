// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/hackatime-sync/config.yaml",
	"/etc/hackatime-sync/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Airtable: AirtableConfig{
			APIBase:           "https://api.airtable.com/v0",
			GamesTable:        "Games",
			PostsTable:        "Posts",
			UsersTable:        "Users",
			PageSize:          100,
			RequestsPerSecond: 5, // Airtable's per-base limit
			RetryAttempts:     3,
			RetryDelay:        500 * time.Millisecond,
			Timeout:           30 * time.Second,
		},
		Hackatime: HackatimeConfig{
			APIBase:          "https://hackatime.hackclub.com/api/v1",
			StartDate:        "2025-08-18",
			RequestDelay:     200 * time.Millisecond,
			SpanRequestDelay: 100 * time.Millisecond,
			MaxRetries:       0,
			RetryDelay:       time.Second,
			Timeout:          30 * time.Second,
			StatsCacheTTL:    time.Minute,
		},
		Sync: SyncConfig{
			Enabled:          true,
			Interval:         5 * time.Minute,
			InitialDelay:     10 * time.Second,
			FetchConcurrency: 1,
		},
		Server: ServerConfig{
			Port:            3001,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   30,
			RateLimitWindow: time.Minute,
		},
		Store: StoreConfig{
			Enabled:      true,
			Path:         "/data/hackatime-sync",
			HistoryLimit: 100,
		},
		Events: EventsConfig{
			Enabled:     false,
			NATSURL:     "nats://127.0.0.1:4222",
			TopicPrefix: "hackatime",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration with layered sources:
//  1. Defaults
//  2. Config file (optional)
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Default returns a fresh copy of the built-in defaults. Tests and the
// CLI start from it.
func Default() *Config {
	return defaultConfig()
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields splits comma-separated env values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) == 0 {
			continue
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	// Airtable (legacy variable names)
	"airtable_api_key":             "airtable.api_key",
	"airtable_base_id":             "airtable.base_id",
	"airtable_api_base":            "airtable.api_base",
	"airtable_games_table":         "airtable.games_table",
	"airtable_posts_table":         "airtable.posts_table",
	"airtable_users_table":         "airtable.users_table",
	"airtable_page_size":           "airtable.page_size",
	"airtable_requests_per_second": "airtable.requests_per_second",
	"airtable_retry_attempts":      "airtable.retry_attempts",
	"airtable_retry_delay":         "airtable.retry_delay",
	"airtable_timeout":             "airtable.timeout",

	// Hackatime
	"hackatime_api_base":           "hackatime.api_base",
	"hackatime_api_key":            "hackatime.api_key",
	"rack_attack_bypass":           "hackatime.bypass_token",
	"hackatime_start_date":         "hackatime.start_date",
	"hackatime_end_date":           "hackatime.end_date",
	"hackatime_request_delay":      "hackatime.request_delay",
	"hackatime_span_request_delay": "hackatime.span_request_delay",
	"hackatime_max_retries":        "hackatime.max_retries",
	"hackatime_retry_delay":        "hackatime.retry_delay",
	"hackatime_timeout":            "hackatime.timeout",
	"hackatime_stats_cache_ttl":    "hackatime.stats_cache_ttl",

	// Sync
	"sync_enabled":           "sync.enabled",
	"sync_interval":          "sync.interval",
	"sync_initial_delay":     "sync.initial_delay",
	"sync_fetch_concurrency": "sync.fetch_concurrency",

	// Server
	"port":                  "server.port",
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_timeout":          "server.timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "security.cors_origins",
	"rate_limit_requests":   "security.rate_limit_reqs",
	"rate_limit_window":     "security.rate_limit_window",
	"disable_rate_limit":    "security.rate_limit_disabled",
	"store_enabled":         "store.enabled",
	"store_path":            "store.path",
	"store_in_memory":       "store.in_memory",
	"store_history_limit":   "store.history_limit",
	"events_enabled":        "events.enabled",
	"nats_url":              "events.nats_url",
	"events_topic_prefix":   "events.topic_prefix",
	"log_level":             "logging.level",
	"log_format":            "logging.format",
	"log_caller":            "logging.caller",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped variables are dropped.
//
//   - AIRTABLE_API_KEY -> airtable.api_key
//   - RACK_ATTACK_BYPASS -> hackatime.bypass_token
//   - PORT -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
