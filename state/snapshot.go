// Package state holds the per-block account view the ingest engine
// verifies certificates against: Snapshot is a pure lookup structure,
// State resolves a Snapshot at an arbitrary previously-committed block.
package state

import (
	"github.com/lightchain-network/lightchain/identifier"
	"github.com/lightchain-network/lightchain/model"
)

// Snapshot is an immutable view of every account's balance and stake as
// of a specific committed block. Once constructed it never mutates;
// a new block produces a new Snapshot rather than an update to an old
// one.
type Snapshot struct {
	referenceBlockID     identifier.Identifier
	referenceBlockHeight uint64
	accounts             map[identifier.Identifier]model.Account
}

// NewSnapshot builds a Snapshot from its reference block and account
// set. The caller's map is copied so later mutation of the input cannot
// reach back into the Snapshot.
func NewSnapshot(referenceBlockID identifier.Identifier, referenceBlockHeight uint64, accounts map[identifier.Identifier]model.Account) *Snapshot {
	copied := make(map[identifier.Identifier]model.Account, len(accounts))
	for id, a := range accounts {
		copied[id] = a
	}
	return &Snapshot{
		referenceBlockID:     referenceBlockID,
		referenceBlockHeight: referenceBlockHeight,
		accounts:             copied,
	}
}

// ReferenceBlockID returns the id of the block this snapshot is valid
// against.
func (s *Snapshot) ReferenceBlockID() identifier.Identifier {
	return s.referenceBlockID
}

// ReferenceBlockHeight returns the height of the reference block.
func (s *Snapshot) ReferenceBlockHeight() uint64 {
	return s.referenceBlockHeight
}

// Account returns the account with the given id and whether it exists
// in this snapshot.
func (s *Snapshot) Account(id identifier.Identifier) (model.Account, bool) {
	a, ok := s.accounts[id]
	return a, ok
}

// All returns every account in the snapshot.
func (s *Snapshot) All() []model.Account {
	out := make([]model.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out
}

// StakedAccounts returns every account whose stake meets minStake, the
// pool the assigner draws validator assignments from (spec §4.3).
func (s *Snapshot) StakedAccounts(minStake uint64) []model.Account {
	out := make([]model.Account, 0)
	for _, a := range s.accounts {
		if a.IsValidator(minStake) {
			out = append(out, a)
		}
	}
	return out
}
