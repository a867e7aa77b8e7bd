package storage

import (
	"context"
	"fmt"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/kvstore"
	"github.com/lightchain-network/lightchain/model"
)

// PendingTransactionStore is the map of validated-but-not-yet-committed
// transactions (spec §3 PendingTransactions). Values are stored under
// the key 'v' followed by their id; the set of known ids is tracked separately
// by an idSet so All() does not depend on kvstore.KVStore range scans.
type PendingTransactionStore struct {
	kv  kvstore.KVStore
	set *idSet
}

// NewPendingTransactionStore opens a PendingTransactionStore backed by kv.
func NewPendingTransactionStore(ctx context.Context, kv kvstore.KVStore) (*PendingTransactionStore, error) {
	set, err := newIDSet(ctx, kv)
	if err != nil {
		return nil, err
	}
	return &PendingTransactionStore{kv: kv, set: set}, nil
}

func valueKey(id identifier.Identifier) []byte {
	key := make([]byte, 0, 1+32)
	key = append(key, 'v')
	return append(key, id.Bytes()...)
}

// Has reports whether id is currently pending.
func (p *PendingTransactionStore) Has(id identifier.Identifier) bool {
	return p.set.has(id)
}

// Add stores vt as pending. Returns true iff it was not already
// present.
func (p *PendingTransactionStore) Add(ctx context.Context, vt *model.ValidatedTransaction) (bool, error) {
	id := vt.ID()
	if p.set.has(id) {
		return false, nil
	}

	encoded, err := model.EncodeValidatedTransaction(vt)
	if err != nil {
		return false, fmt.Errorf("storage: encode pending transaction: %w", err)
	}
	if err := p.kv.Put(ctx, valueKey(id), encoded); err != nil {
		return false, fmt.Errorf("storage: %w", err)
	}

	inserted, err := p.set.add(ctx, id)
	if err != nil {
		_ = p.kv.Delete(ctx, valueKey(id))
		return false, err
	}
	return inserted, nil
}

// Remove drops id from the pending set. Returns true iff it was
// present.
func (p *PendingTransactionStore) Remove(ctx context.Context, id identifier.Identifier) (bool, error) {
	removed, err := p.set.remove(ctx, id)
	if err != nil || !removed {
		return removed, err
	}
	if err := p.kv.Delete(ctx, valueKey(id)); err != nil {
		return true, fmt.Errorf("storage: %w", err)
	}
	return true, nil
}

// Get returns the pending transaction for id, or nil if absent.
func (p *PendingTransactionStore) Get(ctx context.Context, id identifier.Identifier) (*model.ValidatedTransaction, error) {
	if !p.set.has(id) {
		return nil, nil
	}
	raw, err := p.kv.Get(ctx, valueKey(id))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	return model.DecodeValidatedTransaction(raw)
}

// Len returns the number of pending transactions.
func (p *PendingTransactionStore) Len() int {
	return p.set.len()
}
