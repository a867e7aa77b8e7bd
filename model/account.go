package model

import (
	"github.com/lightchain-network/lightchain/chaincrypto"
	"github.com/lightchain-network/lightchain/identifier"
)

// Account is a balance-and-stake record tracked by a Snapshot. Unlike
// Transaction/Block it is not an Entity on the wire: it is derived state,
// never ingested directly.
type Account struct {
	ID          identifier.Identifier
	PublicKey   chaincrypto.PublicKey
	Balance     uint64
	Stake       uint64
	LastBlockID identifier.Identifier
}

// IsValidator reports whether the account holds enough stake to be
// eligible for validator assignment, per spec §5 (MIN_STAKE).
func (a Account) IsValidator(minStake uint64) bool {
	return a.Stake >= minStake
}

// WithBalance returns a copy of the account with its balance replaced.
// Accounts are treated as immutable once placed in a Snapshot; state
// transitions build a new Account rather than mutate in place.
func (a Account) WithBalance(balance uint64) Account {
	a.Balance = balance
	return a
}

// WithLastBlockID returns a copy of the account with its last-block
// pointer replaced.
func (a Account) WithLastBlockID(id identifier.Identifier) Account {
	a.LastBlockID = id
	return a
}
