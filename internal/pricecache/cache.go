// Package pricecache holds the latest known USD price per tracked coin
// identifier. Entries never expire; a refresh overwrites only the keys it
// received, so a failed or partial refresh leaves older values readable.
package pricecache

import "sync"

// Cache is a thread-safe map from coin identifier to USD price.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{prices: make(map[string]float64)}
}

// Get returns the cached price for id.
func (c *Cache) Get(id string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[id]
	return p, ok
}

// Set stores a single price.
func (c *Cache) Set(id string, price float64) {
	c.mu.Lock()
	c.prices[id] = price
	c.mu.Unlock()
}

// Merge overwrites every key present in prices and returns how many were
// written. Keys not in prices are left untouched.
func (c *Cache) Merge(prices map[string]float64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range prices {
		c.prices[id] = p
	}
	return len(prices)
}

// Snapshot returns a copy of the cache contents.
func (c *Cache) Snapshot() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.prices))
	for id, p := range c.prices {
		out[id] = p
	}
	return out
}

// Len returns the number of cached prices.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.prices = make(map[string]float64)
	c.mu.Unlock()
}
