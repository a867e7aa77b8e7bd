// Package assigner picks the validator set a block or transaction's
// certificates must come from: a deterministic K-of-N draw over a
// snapshot's staked accounts, seeded by the entity being assigned for.
package assigner

import (
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/state"
)

// Assignment is the set of account ids picked for one entity, at one
// snapshot, for one K. It answers only membership.
type Assignment struct {
	ids map[identifier.Identifier]struct{}
}

// Has reports whether id was picked in this assignment.
func (a *Assignment) Has(id identifier.Identifier) bool {
	_, ok := a.ids[id]
	return ok
}

// Len returns the number of ids in the assignment.
func (a *Assignment) Len() int {
	return len(a.ids)
}

type cacheKey struct {
	entityID   identifier.Identifier
	referenceBlockID identifier.Identifier
	k          int
}

// Assigner draws deterministic validator assignments from a snapshot's
// staked accounts, with a bounded LRU cache since the same (entity,
// snapshot) pair is frequently re-assigned during certificate checks.
type Assigner struct {
	minStake uint64

	mu    sync.Mutex
	cache *lru.Cache[cacheKey, *Assignment]
}

// New returns an Assigner that only considers accounts staked at least
// minStake eligible, caching up to cacheSize resolved assignments.
func New(minStake uint64, cacheSize int) (*Assigner, error) {
	cache, err := lru.New[cacheKey, *Assignment](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("assigner: new cache: %w", err)
	}
	return &Assigner{minStake: minStake, cache: cache}, nil
}

// Assign returns the Assignment of exactly k account ids drawn
// deterministically from snap's staked accounts, seeded by entityID.
// The same (entityID, snap, k) always yields the same Assignment on
// every node.
func (a *Assigner) Assign(entityID identifier.Identifier, snap *state.Snapshot, k int) (*Assignment, error) {
	if snap == nil {
		return nil, fmt.Errorf("assigner: nil snapshot")
	}
	if k <= 0 {
		return nil, fmt.Errorf("assigner: k must be positive, got %d", k)
	}

	key := cacheKey{entityID: entityID, referenceBlockID: snap.ReferenceBlockID(), k: k}

	a.mu.Lock()
	if cached, ok := a.cache.Get(key); ok {
		a.mu.Unlock()
		return cached, nil
	}
	a.mu.Unlock()

	staked := snap.StakedAccounts(a.minStake)
	ids := make([]identifier.Identifier, len(staked))
	for i, acc := range staked {
		ids[i] = acc.ID
	}
	if k > len(ids) {
		return nil, fmt.Errorf("assigner: k=%d exceeds %d staked accounts", k, len(ids))
	}

	picked := draw(entityID, ids, k)

	assignment := &Assignment{ids: make(map[identifier.Identifier]struct{}, k)}
	for _, id := range picked {
		assignment.ids[id] = struct{}{}
	}

	a.mu.Lock()
	a.cache.Add(key, assignment)
	a.mu.Unlock()

	return assignment, nil
}

// draw performs a deterministic partial Fisher-Yates shuffle over the
// lexicographically sorted ids, using a keystream derived from entityID
// in place of a seeded PRNG: round i's swap index is H(entityID || i)
// reduced modulo the remaining pool size.
func draw(entityID identifier.Identifier, ids []identifier.Identifier, k int) []identifier.Identifier {
	sorted := make([]identifier.Identifier, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return identifier.Less(sorted[i], sorted[j]) })

	picked := make([]identifier.Identifier, 0, k)
	n := len(sorted)
	for i := 0; i < k; i++ {
		remaining := n - i
		idx := keystreamIndex(entityID, i, remaining)
		picked = append(picked, sorted[idx])
		sorted[idx] = sorted[remaining-1]
	}
	return picked
}

func keystreamIndex(entityID identifier.Identifier, round int, modulus int) int {
	var roundBytes [8]byte
	binary.BigEndian.PutUint64(roundBytes[:], uint64(round))
	seed := append(append([]byte{}, entityID.Bytes()...), roundBytes[:]...)
	digest := identifier.H(seed)
	val := binary.BigEndian.Uint64(digest.Bytes()[:8])
	return int(val % uint64(modulus))
}
