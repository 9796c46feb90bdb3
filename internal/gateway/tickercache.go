package gateway

import (
	"sync"

	"coinsight/internal/domain/models"
)

// TickerCache holds the latest ticker per symbol, last-write-wins.
// Written only by the owning ticker streams, read by arbitrary callers.
type TickerCache struct {
	mu      sync.RWMutex
	tickers map[string]models.Ticker
}

func NewTickerCache() *TickerCache {
	return &TickerCache{tickers: make(map[string]models.Ticker)}
}

// Put stores the latest ticker for its symbol.
func (c *TickerCache) Put(t models.Ticker) {
	c.mu.Lock()
	c.tickers[t.Symbol] = t
	c.mu.Unlock()
}

// Get returns the cached ticker and whether one exists.
func (c *TickerCache) Get(symbol string) (models.Ticker, bool) {
	c.mu.RLock()
	t, ok := c.tickers[symbol]
	c.mu.RUnlock()
	return t, ok
}

// Symbols lists symbols with a cached ticker.
func (c *TickerCache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.tickers))
	for s := range c.tickers {
		out = append(out, s)
	}
	return out
}
