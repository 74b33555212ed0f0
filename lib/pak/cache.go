// Copyright 2026 The Gatehouse Authors
// SPDX-License-Identifier: Apache-2.0

package pak

import (
	"fmt"
	"sync"
	"time"

	"github.com/gatehouse-project/gatehouse/lib/clock"
)

// Cache TTL bounds. MaxCacheTTL is the revocation propagation window:
// a revoked key must stop verifying everywhere within it, and cache
// TTL is the dominant term when pushes do not deliver.
const (
	DefaultCacheTTL = 10 * time.Second
	MaxCacheTTL     = 60 * time.Second
)

// VerifyCache is a read-through cache of token ID to key row for the
// verification path. Only positive, active rows are cached; absence
// and inactive rows always re-read the store. Safe for concurrent use.
type VerifyCache struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	key       Key
	expiresAt time.Time
}

// NewVerifyCache creates a cache with the given entry TTL. Zero means
// DefaultCacheTTL; values above MaxCacheTTL are rejected because they
// would break the revocation propagation bound. A nil clk means the
// real clock.
func NewVerifyCache(ttl time.Duration, clk clock.Clock) (*VerifyCache, error) {
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if ttl < 0 {
		return nil, fmt.Errorf("pak: cache TTL must be positive")
	}
	if ttl > MaxCacheTTL {
		return nil, fmt.Errorf("pak: cache TTL %v exceeds the %v propagation window", ttl, MaxCacheTTL)
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &VerifyCache{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}, nil
}

// Get returns the cached row for a token ID when present and fresh.
func (c *VerifyCache) Get(tokenID string) (Key, bool) {
	c.mu.RLock()
	entry, ok := c.entries[tokenID]
	c.mu.RUnlock()

	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		return Key{}, false
	}
	return entry.key, true
}

// Put caches a row for the TTL. Rows that are not active right now are
// ignored: a revoked or expired key must never be served from cache.
// Expired entries are swept opportunistically on each write.
func (c *VerifyCache) Put(key Key) {
	now := c.clock.Now()
	if !key.Active(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
	c.entries[key.TokenID] = cacheEntry{key: key, expiresAt: now.Add(c.ttl)}
}

// Drop removes the entry for a token ID. Called when a revocation
// notice names the token, making the revocation visible before TTL
// expiry.
func (c *VerifyCache) Drop(tokenID string) {
	c.mu.Lock()
	delete(c.entries, tokenID)
	c.mu.Unlock()
}

// DropKeyID removes the entry whose row has the given key ID. Local
// revocations know the row ID, not the token ID.
func (c *VerifyCache) DropKeyID(keyID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for tokenID, entry := range c.entries {
		if entry.key.ID == keyID {
			delete(c.entries, tokenID)
			return
		}
	}
}

// sweepLocked discards expired entries so the map does not accumulate
// dead rows between natural lookups. Caller holds the write lock.
func (c *VerifyCache) sweepLocked(now time.Time) {
	for tokenID, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, tokenID)
		}
	}
}
