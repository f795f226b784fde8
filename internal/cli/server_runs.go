// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

const maxServerErrorBody = 4 * 1024

// serverRuns reads run history from a running server's /api/sync-runs.
type serverRuns struct {
	baseURL    string
	httpClient *http.Client
}

func newServerRuns(baseURL string, timeout time.Duration) *serverRuns {
	return &serverRuns{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type serverRunsBody struct {
	Runs []models.SyncRun `json:"runs"`
}

// RecentRuns implements RunLister.
func (s *serverRuns) RecentRuns(ctx context.Context, limit int) ([]models.SyncRun, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	reqURL := s.baseURL + "/api/sync-runs?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query server run history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxServerErrorBody))
		return nil, fmt.Errorf("server run history: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out serverRunsBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode server run history: %w", err)
	}
	return out.Runs, nil
}
