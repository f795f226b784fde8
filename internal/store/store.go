// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

// Package store persists sync run history in BadgerDB so the status
// endpoint can report the last outcome across restarts.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/shiba-arcade/hackatime-sync/internal/config"
	"github.com/shiba-arcade/hackatime-sync/internal/logging"
	"github.com/shiba-arcade/hackatime-sync/internal/models"
)

const runKeyPrefix = "run:"

// ErrNoRuns is returned by LatestRun on an empty history.
var ErrNoRuns = errors.New("store: no sync runs recorded")

// RunStore records sync pass outcomes.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.SyncRun) error
	LatestRun(ctx context.Context) (*models.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]models.SyncRun, error)
	Close() error
}

// Open returns the store described by cfg: Badger on disk, Badger in
// memory, or a no-op store when disabled.
func Open(cfg *config.StoreConfig) (RunStore, error) {
	if !cfg.Enabled {
		return NopStore{}, nil
	}

	opts := badger.DefaultOptions(cfg.Path).WithLogger(badgerLogger{})
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run store at %q: %w", cfg.Path, err)
	}
	return NewBadgerRunStore(db, cfg.HistoryLimit), nil
}

// OpenReadOnly opens the on-disk store for reading only. It fails while
// another process holds the database, since Badger's directory lock is
// exclusive to the writer. An in-memory store has nothing to read.
func OpenReadOnly(cfg *config.StoreConfig) (RunStore, error) {
	if !cfg.Enabled || cfg.InMemory {
		return NopStore{}, nil
	}
	opts := badger.DefaultOptions(cfg.Path).WithReadOnly(true).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open run store read-only at %q: %w", cfg.Path, err)
	}
	return NewBadgerRunStore(db, cfg.HistoryLimit), nil
}

// BadgerRunStore keeps the newest historyLimit runs. Keys sort by
// completion time so iteration order is chronological.
type BadgerRunStore struct {
	db           *badger.DB
	historyLimit int
}

// NewBadgerRunStore wraps an open database.
func NewBadgerRunStore(db *badger.DB, historyLimit int) *BadgerRunStore {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &BadgerRunStore{db: db, historyLimit: historyLimit}
}

func runKey(run *models.SyncRun) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", runKeyPrefix, run.CompletedAt.UnixNano(), run.RunID))
}

// SaveRun stores run and trims history beyond the limit.
func (s *BadgerRunStore) SaveRun(ctx context.Context, run *models.SyncRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(runKey(run), data)
	}); err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return s.trim(ctx)
}

// trim deletes the oldest runs beyond historyLimit.
func (s *BadgerRunStore) trim(ctx context.Context) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(runKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan runs: %w", err)
	}

	excess := len(keys) - s.historyLimit
	if excess <= 0 {
		return nil
	}
	logging.Ctx(ctx).Debug().Int("deleted", excess).Msg("Trimming sync run history")
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys[:excess] {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete run: %w", err)
			}
		}
		return nil
	})
}

// LatestRun returns the most recently completed run.
func (s *BadgerRunStore) LatestRun(ctx context.Context) (*models.SyncRun, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return &runs[0], nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *BadgerRunStore) ListRuns(_ context.Context, limit int) ([]models.SyncRun, error) {
	var runs []models.SyncRun
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the largest key under the prefix.
		seek := append([]byte(runKeyPrefix), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			var run models.SyncRun
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			}); err != nil {
				return fmt.Errorf("decode run %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, run)
			if limit > 0 && len(runs) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Close closes the database.
func (s *BadgerRunStore) Close() error {
	return s.db.Close()
}

// NopStore discards runs.
type NopStore struct{}

func (NopStore) SaveRun(context.Context, *models.SyncRun) error { return nil }

func (NopStore) LatestRun(context.Context) (*models.SyncRun, error) { return nil, ErrNoRuns }

func (NopStore) ListRuns(context.Context, int) ([]models.SyncRun, error) { return nil, nil }

func (NopStore) Close() error { return nil }

// badgerLogger routes Badger's internal logging to zerolog. Badger is
// chatty at info, so info is demoted to debug.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logging.Trace().Str("component", "badger").Msgf(format, args...)
}
