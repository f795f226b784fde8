// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package hackatime reads per-user project totals and heartbeat spans from
// the Hackatime API.
//
// Non-success responses are returned as errors (ErrRateLimited for 429,
// *StatusError otherwise). Callers in this service treat any error as
// "no data" for the user or project concerned.
package hackatime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/metrics"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

const (
	maxErrorBodySize = 64 * 1024

	// BypassHeader carries the token that exempts this service from
	// Hackatime's Rack::Attack throttling.
	BypassHeader = "Rack-Attack-Bypass"
)

// ErrRateLimited is returned when Hackatime answers 429 after all retries.
var ErrRateLimited = errors.New("hackatime: rate limited")

// StatusError is any other non-2xx response.
type StatusError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hackatime %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client is a Hackatime API client.
type Client struct {
	httpClient  *http.Client
	apiBase     string
	apiKey      string
	bypassToken string
	cfg         config.HackatimeConfig
	maxRetries  int
	retryDelay  time.Duration
	now         func() time.Time
}

// NewClient builds a client from configuration.
func NewClient(cfg *config.HackatimeConfig) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		apiKey:      cfg.APIKey,
		bypassToken: cfg.BypassToken,
		cfg:         *cfg,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		now:         time.Now,
	}
}

type statsResponse struct {
	Data struct {
		Projects []struct {
			Name         string  `json:"name"`
			TotalSeconds float64 `json:"total_seconds"`
		} `json:"projects"`
		TotalSeconds float64 `json:"total_seconds"`
	} `json:"data"`
}

// UserStats returns the user's per-project totals between the configured
// start date and the end date (today when unset).
func (c *Client) UserStats(ctx context.Context, slackID string) (*models.UserStats, error) {
	q := url.Values{}
	q.Set("features", "projects")
	q.Set("start_date", c.cfg.StartDate)
	q.Set("end_date", c.cfg.EndDateOn(c.now()))

	var resp statsResponse
	if err := c.get(ctx, "stats", "/users/"+url.PathEscape(slackID)+"/stats", q, &resp); err != nil {
		return nil, err
	}

	stats := &models.UserStats{
		Projects:     make([]models.TrackedProject, 0, len(resp.Data.Projects)),
		TotalSeconds: int64(math.Round(resp.Data.TotalSeconds)),
	}
	for _, p := range resp.Data.Projects {
		stats.Projects = append(stats.Projects, models.TrackedProject{
			Name:         p.Name,
			TotalSeconds: int64(math.Round(p.TotalSeconds)),
		})
	}
	return stats, nil
}

type spansResponse struct {
	Spans []models.Span `json:"spans"`
}

// ProjectSpans returns the heartbeat spans of one project since the
// configured start date.
func (c *Client) ProjectSpans(ctx context.Context, slackID, project string) ([]models.Span, error) {
	q := url.Values{}
	q.Set("start_date", c.cfg.StartDate)
	q.Set("project", project)

	var resp spansResponse
	if err := c.get(ctx, "spans", "/users/"+url.PathEscape(slackID)+"/heartbeats/spans", q, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Spans {
		resp.Spans[i].ProjectName = project
	}
	return resp.Spans, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out any) error {
	reqURL := c.apiBase + path + "?" + q.Encode()

	resp, err := c.doRequestWithRateLimit(ctx, endpoint, reqURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Endpoint: endpoint, Body: string(readBodyForError(resp.Body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode hackatime %s response: %w", endpoint, err)
	}
	return nil
}

// doRequestWithRateLimit retries HTTP 429 up to maxRetries times with
// exponential backoff, honoring Retry-After.
func (c *Client) doRequestWithRateLimit(ctx context.Context, endpoint, reqURL string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if c.bypassToken != "" {
			req.Header.Set(BypassHeader, c.bypassToken)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordUpstreamRequest("hackatime", endpoint, 0, time.Since(start))
			return nil, fmt.Errorf("hackatime %s request failed: %w", endpoint, err)
		}
		metrics.RecordUpstreamRequest("hackatime", endpoint, resp.StatusCode, time.Since(start))

		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		_ = resp.Body.Close()

		if attempt >= c.maxRetries {
			return nil, ErrRateLimited
		}

		delay := c.retryDelay * time.Duration(1<<uint(attempt))
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			delay = time.Duration(secs) * time.Second
		}
		logging.Ctx(ctx).Warn().Str("endpoint", endpoint).Dur("retry_delay", delay).
			Int("attempt", attempt+1).Int("max_retries", c.maxRetries).Msg("Hackatime rate limited, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	return body
}
