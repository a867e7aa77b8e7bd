package state

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/model"
)

// Store is the persistence backing for State: given a block id it
// returns that block's committed account set and height, or
// (nil, 0, nil) if the block is unknown. A concrete Store lives in
// state/sqlite.
type Store interface {
	Accounts(ctx context.Context, blockID identifier.Identifier) (accounts map[identifier.Identifier]model.Account, height uint64, err error)
	PutSnapshot(ctx context.Context, blockID identifier.Identifier, height uint64, accounts map[identifier.Identifier]model.Account) error
}

// State resolves the Snapshot valid at any previously-committed block.
// Snapshots are immutable once built, so an LRU cache in front of Store
// is safe: a cached Snapshot never goes stale.
type State struct {
	store Store
	cache *lru.Cache[identifier.Identifier, *Snapshot]
}

// New returns a State backed by store, caching up to cacheSize resolved
// snapshots.
func New(store Store, cacheSize int) (*State, error) {
	cache, err := lru.New[identifier.Identifier, *Snapshot](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("state: new cache: %w", err)
	}
	return &State{store: store, cache: cache}, nil
}

// AtBlockID returns the Snapshot valid as of blockID, or nil if blockID
// is not a known committed block (spec §4.5 step 2: "If null, the block
// is future/unknown-parent").
func (s *State) AtBlockID(ctx context.Context, blockID identifier.Identifier) (*Snapshot, error) {
	if snap, ok := s.cache.Get(blockID); ok {
		return snap, nil
	}

	accounts, height, err := s.store.Accounts(ctx, blockID)
	if err != nil {
		return nil, fmt.Errorf("state: %w", err)
	}
	if accounts == nil {
		return nil, nil
	}

	snap := NewSnapshot(blockID, height, accounts)
	s.cache.Add(blockID, snap)
	return snap, nil
}

// Commit persists a new snapshot of accounts as of blockID/height, and
// makes it immediately resolvable through AtBlockID.
func (s *State) Commit(ctx context.Context, blockID identifier.Identifier, height uint64, accounts map[identifier.Identifier]model.Account) error {
	if err := s.store.PutSnapshot(ctx, blockID, height, accounts); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	s.cache.Add(blockID, NewSnapshot(blockID, height, accounts))
	return nil
}
