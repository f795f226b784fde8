// Shiba Hackatime Sync - Game time reconciliation for Shiba Arcade
// Copyright 2026 Shiba Arcade contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shiba-arcade/hackatime-sync

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration) (*Cache[string], *clock) {
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New[string](ttl)
	c.now = clk.now
	return c, clk
}

func TestCacheBasicOperations(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("key1", "value1")
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	if _, exists := c.Get("key2"); exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestCacheExpiration(t *testing.T) {
	c, clk := newTestCache(time.Minute)

	c.Set("key1", "value1")
	clk.advance(59 * time.Second)
	if _, exists := c.Get("key1"); !exists {
		t.Error("Expected key1 to exist before the TTL")
	}

	clk.advance(time.Second)
	if _, exists := c.Get("key1"); exists {
		t.Error("Expected key1 to be expired at the TTL")
	}

	stats := c.GetStats()
	if stats.Evictions != 1 || stats.TotalKeys != 0 {
		t.Errorf("stats = %+v, want 1 eviction and 0 keys", stats)
	}
}

func TestCachePrune(t *testing.T) {
	c, clk := newTestCache(time.Minute)

	c.Set("old", "a")
	clk.advance(30 * time.Second)
	c.Set("new", "b")
	clk.advance(30 * time.Second)

	if removed := c.Prune(); removed != 1 {
		t.Errorf("Prune() = %d, want 1", removed)
	}
	if _, exists := c.Get("new"); !exists {
		t.Error("Expected unexpired key to survive Prune")
	}
}

func TestCacheHitRate(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	if rate := c.HitRate(); rate != 0 {
		t.Errorf("HitRate on empty cache = %v, want 0", rate)
	}

	c.Set("key", "v")
	c.Get("key")
	c.Get("key")
	c.Get("key")
	c.Get("missing")

	if rate := c.HitRate(); rate != 75 {
		t.Errorf("HitRate = %v, want 75", rate)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New[int](time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				c.Set(key, j)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if got := c.GetStats().TotalKeys; got != 1000 {
		t.Errorf("TotalKeys = %d, want 1000", got)
	}
}
