package storage

import (
	"context"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/kvstore"
)

// SeenEntityStore is the set of entity ids kept for idempotence (spec §3
// SeenEntities). The ingest engine adds the ids of blocks and validated
// transactions it accepts, and of validated transactions that arrive
// after a committed block already carried them. It does not add the ids
// of entities it rejects.
type SeenEntityStore struct {
	set *idSet
}

// NewSeenEntityStore opens a SeenEntityStore backed by kv.
func NewSeenEntityStore(ctx context.Context, kv kvstore.KVStore) (*SeenEntityStore, error) {
	set, err := newIDSet(ctx, kv)
	if err != nil {
		return nil, err
	}
	return &SeenEntityStore{set: set}, nil
}

// Has reports whether id has been seen before.
func (s *SeenEntityStore) Has(id identifier.Identifier) bool {
	return s.set.has(id)
}

// Add records id as seen. Returns true iff it was not already present.
func (s *SeenEntityStore) Add(ctx context.Context, id identifier.Identifier) (bool, error) {
	return s.set.add(ctx, id)
}

// Len returns the number of seen entity ids.
func (s *SeenEntityStore) Len() int {
	return s.set.len()
}
