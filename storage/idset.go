// Package storage implements the persistent indexes the ingest engine
// reads and mutates: Blocks, TransactionIds, PendingTransactions, and
// SeenEntities.
package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/kvstore"
)

// indexKey is the reserved key under which an idSet persists its full
// membership list as a single record, so All() and restart-recovery do
// not depend on kvstore.KVStore supporting range scans (it deliberately
// does not — see kvstore.KVStore).
var indexKey = []byte("\x00index")

// idSet is a set of Identifier backed by a kvstore.KVStore, with an
// in-memory mirror under a mutex for fast has/add/remove. The set's
// member list is itself persisted as one record (indexKey), loaded once
// at construction.
//
// has/add/remove compare identifiers by VALUE (Go struct/array equality,
// map key equality) never by reference — the class of bug named in spec
// §9 ("objects[0] == blockId.getBytes()") cannot arise here because Go
// gives no way to compare a byte array by pointer identity through a map
// key or a struct literal equality check.
type idSet struct {
	mu  sync.RWMutex
	kv  kvstore.KVStore
	ids map[identifier.Identifier]struct{}
}

func newIDSet(ctx context.Context, kv kvstore.KVStore) (*idSet, error) {
	s := &idSet{kv: kv, ids: make(map[identifier.Identifier]struct{})}

	raw, err := kv.Get(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("storage: load index: %w", err)
	}
	if raw == nil {
		return s, nil
	}

	var list [][32]byte
	if err := cbor.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("storage: decode index: %w", err)
	}
	for _, b := range list {
		s.ids[identifier.Identifier(b)] = struct{}{}
	}
	return s, nil
}

// persist writes the full membership list. Must be called with mu held.
func (s *idSet) persist(ctx context.Context) error {
	list := make([][32]byte, 0, len(s.ids))
	for id := range s.ids {
		list = append(list, id)
	}
	encoded, err := cbor.Marshal(list)
	if err != nil {
		return fmt.Errorf("storage: encode index: %w", err)
	}
	if err := s.kv.Put(ctx, indexKey, encoded); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func (s *idSet) has(id identifier.Identifier) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// add reports whether id was newly inserted. The index record is
// persisted before add returns, so a crash after add() returns true
// never loses durability of that membership fact.
func (s *idSet) add(ctx context.Context, id identifier.Identifier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false, nil
	}
	s.ids[id] = struct{}{}
	if err := s.persist(ctx); err != nil {
		delete(s.ids, id)
		return false, err
	}
	return true, nil
}

func (s *idSet) remove(ctx context.Context, id identifier.Identifier) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; !ok {
		return false, nil
	}
	delete(s.ids, id)
	if err := s.persist(ctx); err != nil {
		s.ids[id] = struct{}{}
		return false, err
	}
	return true, nil
}

func (s *idSet) all() []identifier.Identifier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]identifier.Identifier, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	return out
}

func (s *idSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}
