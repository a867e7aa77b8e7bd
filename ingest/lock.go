package ingest

import (
	"encoding/binary"
	"sync"

	"github.com/lightchain-network/lightchain/identifier"
)

// stripedLock gives the engine a per-id critical section without
// allocating a mutex per id: every id hashes to one of a fixed number of
// stripes, and two different ids occasionally sharing a stripe is
// harmless contention, never an incorrect result (spec §4.5's ordering
// requirement is "per-id", a stripe is just how that is implemented with
// bounded memory).
type stripedLock struct {
	mus []sync.Mutex
}

func newStripedLock(stripes int) *stripedLock {
	if stripes <= 0 {
		stripes = 256
	}
	return &stripedLock{mus: make([]sync.Mutex, stripes)}
}

func (s *stripedLock) stripe(id identifier.Identifier) *sync.Mutex {
	idx := binary.BigEndian.Uint64(id.Bytes()[:8]) % uint64(len(s.mus))
	return &s.mus[idx]
}

// lock acquires id's stripe and returns the function that releases it.
func (s *stripedLock) lock(id identifier.Identifier) func() {
	m := s.stripe(id)
	m.Lock()
	return m.Unlock
}
