package feed

import (
	"sync"

	"github.com/sand/crypto-stream-client/internal/entities"
)

// PriceCache keeps the latest price snapshot per coin symbol, last write
// wins. History is an external collaborator's concern.
type PriceCache struct {
	mu        sync.RWMutex
	snapshots map[string]entities.PriceSnapshot
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{snapshots: make(map[string]entities.PriceSnapshot)}
}

// Put stores the snapshot for its coin symbol, replacing any previous one.
func (c *PriceCache) Put(snapshot entities.PriceSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[snapshot.CoinSymbol] = snapshot
}

// Get returns the latest snapshot for the symbol, if any.
func (c *PriceCache) Get(coinSymbol string) (entities.PriceSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[coinSymbol]
	return s, ok
}

// Len returns the number of symbols with a cached snapshot.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snapshots)
}
