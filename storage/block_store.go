package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/kvstore"
	"github.com/lightchain-network/lightchain/model"
)

// blockIndexKey is the reserved key under which BlockStore persists its
// id -> height membership map, the same one-record-index trick idSet
// uses, extended to carry the height each id was committed at.
var blockIndexKey = []byte("\x00blockindex")

type blockIndexEntry struct {
	ID     [32]byte
	Height uint64
}

// BlockStore is the set of committed blocks (spec §3 Blocks), keyed
// uniquely by block id. Per spec §6 it is backed by two files: primary,
// keyed by id+height, and a secondary index keyed by height alone so
// AtHeight does not need to scan the primary.
type BlockStore struct {
	mu       sync.RWMutex
	primary  kvstore.KVStore // key = id(32) || height(8 BE), value = encoded block
	byHeight kvstore.KVStore // key = height(8 BE), value = id(32)
	index    map[identifier.Identifier]uint64
}

// NewBlockStore opens a BlockStore over its two backing stores.
func NewBlockStore(ctx context.Context, primary, byHeight kvstore.KVStore) (*BlockStore, error) {
	bs := &BlockStore{
		primary:  primary,
		byHeight: byHeight,
		index:    make(map[identifier.Identifier]uint64),
	}

	raw, err := primary.Get(ctx, blockIndexKey)
	if err != nil {
		return nil, fmt.Errorf("storage: load block index: %w", err)
	}
	if raw != nil {
		var entries []blockIndexEntry
		if err := cbor.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("storage: decode block index: %w", err)
		}
		for _, e := range entries {
			bs.index[identifier.Identifier(e.ID)] = e.Height
		}
	}
	return bs, nil
}

func primaryKey(id identifier.Identifier, height uint64) []byte {
	key := make([]byte, 0, 40)
	key = append(key, id.Bytes()...)
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], height)
	return append(key, h[:]...)
}

func heightKey(height uint64) []byte {
	var h [8]byte
	binary.BigEndian.PutUint64(h[:], height)
	return h[:]
}

// persistIndex writes the full id->height map. Must be called with mu held.
func (bs *BlockStore) persistIndex(ctx context.Context) error {
	entries := make([]blockIndexEntry, 0, len(bs.index))
	for id, height := range bs.index {
		entries = append(entries, blockIndexEntry{ID: id, Height: height})
	}
	encoded, err := cbor.Marshal(entries)
	if err != nil {
		return fmt.Errorf("storage: encode block index: %w", err)
	}
	if err := bs.primary.Put(ctx, blockIndexKey, encoded); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// Has reports whether a block with blockID exists. Comparison is by
// value (Go map key equality on the fixed-size Identifier array), never
// by reference — see storage.idSet's doc comment for the bug class this
// rules out.
func (bs *BlockStore) Has(blockID identifier.Identifier) bool {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	_, ok := bs.index[blockID]
	return ok
}

// Add stores block, keyed by its own id and height. Returns true iff
// block.id was not already present.
func (bs *BlockStore) Add(ctx context.Context, block *model.Block) (bool, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	id := block.ID()
	if _, ok := bs.index[id]; ok {
		return false, nil
	}

	height := block.Height()
	encoded, err := model.EncodeBlock(block)
	if err != nil {
		return false, fmt.Errorf("storage: encode block: %w", err)
	}
	if err := bs.primary.Put(ctx, primaryKey(id, height), encoded); err != nil {
		return false, fmt.Errorf("storage: %w", err)
	}
	if err := bs.byHeight.Put(ctx, heightKey(height), id.Bytes()); err != nil {
		return false, fmt.Errorf("storage: %w", err)
	}

	bs.index[id] = height
	if err := bs.persistIndex(ctx); err != nil {
		delete(bs.index, id)
		return false, err
	}
	return true, nil
}

// Remove deletes the block with blockID. Returns true iff it was
// present.
func (bs *BlockStore) Remove(ctx context.Context, blockID identifier.Identifier) (bool, error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	height, ok := bs.index[blockID]
	if !ok {
		return false, nil
	}

	delete(bs.index, blockID)
	if err := bs.persistIndex(ctx); err != nil {
		bs.index[blockID] = height
		return false, err
	}
	if err := bs.primary.Delete(ctx, primaryKey(blockID, height)); err != nil {
		return true, fmt.Errorf("storage: %w", err)
	}
	if err := bs.byHeight.Delete(ctx, heightKey(height)); err != nil {
		return true, fmt.Errorf("storage: %w", err)
	}
	return true, nil
}

// ByID returns the block with blockID, or nil if absent.
func (bs *BlockStore) ByID(ctx context.Context, blockID identifier.Identifier) (*model.Block, error) {
	bs.mu.RLock()
	height, ok := bs.index[blockID]
	bs.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	raw, err := bs.primary.Get(ctx, primaryKey(blockID, height))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	return model.DecodeBlock(raw)
}

// AtHeight returns the block committed at height, or nil if none.
func (bs *BlockStore) AtHeight(ctx context.Context, height uint64) (*model.Block, error) {
	raw, err := bs.byHeight.Get(ctx, heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	id, err := identifier.New(raw)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return bs.ByID(ctx, id)
}

// All returns every committed block.
func (bs *BlockStore) All(ctx context.Context) ([]*model.Block, error) {
	bs.mu.RLock()
	ids := make([]identifier.Identifier, 0, len(bs.index))
	for id := range bs.index {
		ids = append(ids, id)
	}
	bs.mu.RUnlock()

	blocks := make([]*model.Block, 0, len(ids))
	for _, id := range ids {
		b, err := bs.ByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if b != nil {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

// Len returns the number of committed blocks.
func (bs *BlockStore) Len() int {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return len(bs.index)
}
