package relay

import (
	"strings"
	"sync"
	"time"
)

// NonceCache remembers recently used register nonces so a captured register
// frame cannot be replayed inside the clock-skew window.
type NonceCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	max     int

	lastSweep time.Time
}

func NewNonceCache(ttl time.Duration, max int) *NonceCache {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	if max <= 0 {
		max = DefaultNonceMax
	}
	return &NonceCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		max:     max,
	}
}

// Use records the nonce if it has not been seen recently. Returns true if
// accepted, false if the nonce was already used.
func (c *NonceCache) Use(nonce string, now time.Time) bool {
	if c == nil {
		return true
	}
	n := strings.TrimSpace(nonce)
	if n == "" {
		return false
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entries == nil {
		c.entries = make(map[string]time.Time)
	}

	// Opportunistic sweep.
	if c.lastSweep.IsZero() || now.Sub(c.lastSweep) > c.ttl/2 {
		c.sweepLocked(now)
		c.lastSweep = now
	}

	if exp, ok := c.entries[n]; ok && now.Before(exp) {
		return false
	}

	if len(c.entries) >= c.max {
		c.sweepLocked(now)
		if len(c.entries) >= c.max {
			c.entries = make(map[string]time.Time)
		}
	}

	c.entries[n] = now.Add(c.ttl)
	return true
}

func (c *NonceCache) sweepLocked(now time.Time) {
	for k, exp := range c.entries {
		if now.After(exp) {
			delete(c.entries, k)
		}
	}
}
