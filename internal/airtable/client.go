// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package airtable is the record-store client: paginated listing, formula
// filters and single-record PATCH against the Airtable REST API, plus the
// Games, Posts and Users table adapters that normalize Airtable's loosely
// typed fields into models values.
//
// Every request passes a client-side rate limiter, is retried with
// exponential backoff on transport errors, 429 and 5xx, and runs through a
// circuit breaker.
package airtable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/shiba-arcade/hackatime-sync/internal/breaker"
	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/metrics"
)

const maxErrorBodySize = 64 * 1024

var (
	// ErrMissingCredentials is returned before any request when the API key
	// or base id is not configured.
	ErrMissingCredentials = errors.New("airtable: missing API key or base id")

	// ErrCircuitOpen is returned while the breaker rejects requests.
	ErrCircuitOpen = errors.New("airtable: circuit breaker open")

	// ErrNotFound is returned by lookups that match no record.
	ErrNotFound = errors.New("airtable: record not found")
)

// APIError is a non-2xx response from Airtable.
type APIError struct {
	StatusCode int
	Method     string
	Table      string
	Body       string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("airtable %s %s: status %d: %s", e.Method, e.Table, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Record is one Airtable record. Field values keep Airtable's JSON shape
// (string, float64, bool, []any, map[string]any).
type Record struct {
	ID          string         `json:"id"`
	CreatedTime time.Time      `json:"createdTime"`
	Fields      map[string]any `json:"fields"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// ListOptions narrows a List call.
type ListOptions struct {
	Formula       string
	SortField     string
	SortDirection string // "asc" (default) or "desc"
	Fields        []string
}

// Client talks to one Airtable base.
type Client struct {
	httpClient    *http.Client
	apiBase       string
	baseID        string
	apiKey        string
	pageSize      int
	retryAttempts int
	retryDelay    time.Duration
	limiter       *rate.Limiter
	breaker       *breaker.Breaker[[]byte]
}

// NewClient builds a client from configuration. Missing credentials are
// not an error here; each request fails with ErrMissingCredentials instead.
func NewClient(cfg *config.AirtableConfig) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}

	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		apiBase:       strings.TrimRight(cfg.APIBase, "/"),
		baseID:        cfg.BaseID,
		apiKey:        cfg.APIKey,
		pageSize:      pageSize,
		retryAttempts: attempts,
		retryDelay:    cfg.RetryDelay,
		limiter:       rate.NewLimiter(limit, 1),
		breaker: breaker.New[[]byte]("airtable-api", breaker.Options{
			IsSuccessful: func(err error) bool {
				var apiErr *APIError
				if errors.As(err, &apiErr) {
					return !apiErr.Retryable()
				}
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// List returns every record of table matching opts, following the offset
// cursor until Airtable stops returning one.
func (c *Client) List(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	var (
		all    []Record
		offset string
		page   int
	)
	for {
		query := c.listQuery(opts, offset)
		body, err := c.do(ctx, http.MethodGet, table, "", query, nil)
		if err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", table, page+1, err)
		}

		var resp listResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("decode %s page %d: %w", table, page+1, err)
		}
		all = append(all, resp.Records...)
		page++

		logging.Ctx(ctx).Debug().Str("table", table).Int("page", page).
			Int("records", len(resp.Records)).Bool("more", resp.Offset != "").Msg("Fetched Airtable page")

		if resp.Offset == "" {
			return all, nil
		}
		offset = resp.Offset
	}
}

func (c *Client) listQuery(opts ListOptions, offset string) url.Values {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	if offset != "" {
		q.Set("offset", offset)
	}
	if opts.Formula != "" {
		q.Set("filterByFormula", opts.Formula)
	}
	if opts.SortField != "" {
		dir := opts.SortDirection
		if dir == "" {
			dir = "asc"
		}
		q.Set("sort[0][field]", opts.SortField)
		q.Set("sort[0][direction]", dir)
	}
	for _, f := range opts.Fields {
		q.Add("fields[]", f)
	}
	return q
}

// Update PATCHes the given fields on one record.
func (c *Client) Update(ctx context.Context, table, recordID string, fields map[string]any) error {
	payload, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return fmt.Errorf("encode update for %s/%s: %w", table, recordID, err)
	}
	if _, err := c.do(ctx, http.MethodPatch, table, recordID, nil, payload); err != nil {
		return fmt.Errorf("update %s/%s: %w", table, recordID, err)
	}
	return nil
}

// do runs one logical request through the breaker, retrying transient
// failures with exponential backoff. It returns the response body.
func (c *Client) do(ctx context.Context, method, table, recordID string, query url.Values, payload []byte) ([]byte, error) {
	if c.apiKey == "" || c.baseID == "" {
		return nil, ErrMissingCredentials
	}

	reqURL := c.apiBase + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
	if recordID != "" {
		reqURL += "/" + url.PathEscape(recordID)
	}
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.retryWithBackoff(ctx, func() ([]byte, error) {
			return c.attempt(ctx, method, table, reqURL, payload)
		})
	})
	if breaker.IsRejected(err) {
		return nil, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return body, err
}

func (c *Client) retryWithBackoff(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := fn()
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.retryAttempts {
			break
		}

		wait := delay
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		logging.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Int("max_attempts", c.retryAttempts).
			Dur("delay", wait).Msg("Airtable request failed, retrying")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return true
}

func (c *Client) attempt(ctx context.Context, method, table, reqURL string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest("airtable", method, 0, time.Since(start))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.RecordUpstreamRequest("airtable", method, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			Table:      table,
			Body:       string(readBodyForError(resp.Body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
