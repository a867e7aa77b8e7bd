package model

import (
	"sync"

	"github.com/lightchain-network/lightchain/identifier"
)

// ChainTip tracks the highest ingested block by height, the way the
// teacher's HeaderChain tracks a bitcoin tip. LightChain is append-only
// under BFT certification (spec §6): a block only ever extends the
// parent it names, so there is no reorg case to handle here.
type ChainTip struct {
	mu     sync.RWMutex
	byID   map[identifier.Identifier]uint64
	tipID  identifier.Identifier
	height uint64
	set    bool
}

// NewChainTip returns an empty tip tracker.
func NewChainTip() *ChainTip {
	return &ChainTip{
		byID: make(map[identifier.Identifier]uint64),
	}
}

// Advance records a block's height and, if it extends the current tip,
// moves the tip forward. Blocks are expected to arrive in causal order
// (parent before child) because the ingest engine resolves
// UNKNOWN_PARENT before advancing; Advance itself does not re-check
// that invariant.
func (c *ChainTip) Advance(id identifier.Identifier, height uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.byID[id] = height
	if !c.set || height > c.height {
		c.tipID = id
		c.height = height
		c.set = true
	}
}

// Height returns the height of a previously advanced block, or false if
// unknown.
func (c *ChainTip) Height(id identifier.Identifier) (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	h, ok := c.byID[id]
	return h, ok
}

// Tip returns the id and height of the current chain tip. ok is false
// until the first block has been advanced.
func (c *ChainTip) Tip() (id identifier.Identifier, height uint64, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.tipID, c.height, c.set
}
