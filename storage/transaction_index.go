package storage

import (
	"context"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/kvstore"
)

// TransactionIndex is the set of ids of transactions included in some
// committed block (spec §3 TransactionIds). Membership is monotone
// non-decreasing: once a transaction id is added it is never removed.
type TransactionIndex struct {
	set *idSet
}

// NewTransactionIndex opens a TransactionIndex backed by kv.
func NewTransactionIndex(ctx context.Context, kv kvstore.KVStore) (*TransactionIndex, error) {
	set, err := newIDSet(ctx, kv)
	if err != nil {
		return nil, err
	}
	return &TransactionIndex{set: set}, nil
}

// Has reports whether id is a committed transaction id.
func (t *TransactionIndex) Has(id identifier.Identifier) bool {
	return t.set.has(id)
}

// Add records id as committed. Returns true iff it was not already
// present.
func (t *TransactionIndex) Add(ctx context.Context, id identifier.Identifier) (bool, error) {
	return t.set.add(ctx, id)
}

// All returns every committed transaction id.
func (t *TransactionIndex) All() []identifier.Identifier {
	return t.set.all()
}

// Len returns the number of committed transaction ids.
func (t *TransactionIndex) Len() int {
	return t.set.len()
}
