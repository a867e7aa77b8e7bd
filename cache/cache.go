// Package cache provides an in-memory front-cache for entity dedup
// checks: consulting it before the authoritative SeenEntities store
// turns the hot path of re-delivered entities into an in-memory LRU
// lookup instead of a KV round trip.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lightchain-network/lightchain/identifier"
)

// SeenCache is a bounded, thread-safe front-cache over entity ids. It is
// an optimization only: a miss here is not proof of absence, the engine
// must still consult SeenEntities. A hit, however, is conclusive — ids
// are only ever added here after they are durably recorded as seen.
type SeenCache struct {
	mu  sync.RWMutex
	lru *lru.Cache[identifier.Identifier, struct{}]
}

// New creates a SeenCache holding up to size recently-seen ids.
func New(size int) (*SeenCache, error) {
	l, err := lru.New[identifier.Identifier, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &SeenCache{lru: l}, nil
}

// Has reports whether id was recently marked seen. A false result does
// not mean id is unseen, only that it is not in the cache.
func (c *SeenCache) Has(id identifier.Identifier) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.lru.Get(id)
	return ok
}

// Mark records id as seen in the cache.
func (c *SeenCache) Mark(id identifier.Identifier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(id, struct{}{})
}

// Clear removes every cached entry.
func (c *SeenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
}
