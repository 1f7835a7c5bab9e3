// Package price implements the engine's Price Source: a streaming ticker
// with REST LTP polling fallback, feeding a single last-price cache keyed
// by instrument token.
package price

import "sync"

// Cache holds the most recently observed price per instrument token. The
// price source is the sole writer; Trigger Evaluation is the reader. Only
// the latest value is kept — there is no history.
type Cache struct {
	mu     sync.RWMutex
	prices map[uint32]float64
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{prices: make(map[uint32]float64)}
}

// Set records price as the latest observation for token.
func (c *Cache) Set(token uint32, price float64) {
	c.mu.Lock()
	c.prices[token] = price
	c.mu.Unlock()
}

// Get returns the cached price for token, if any has been observed.
func (c *Cache) Get(token uint32) (float64, bool) {
	c.mu.RLock()
	p, ok := c.prices[token]
	c.mu.RUnlock()
	return p, ok
}

// GetOrFallback returns the cached price for token, or fallback (typically
// the Position's last_price from the most recent poll diff) if the token
// has never been observed by the price source.
func (c *Cache) GetOrFallback(token uint32, fallback float64) float64 {
	if p, ok := c.Get(token); ok {
		return p
	}
	return fallback
}

// Delete removes a token's cached price, called when its last tracking
// ActiveTrade closes.
func (c *Cache) Delete(token uint32) {
	c.mu.Lock()
	delete(c.prices, token)
	c.mu.Unlock()
}

// Len reports how many tokens currently have a cached price.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}
