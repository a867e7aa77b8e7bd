// Package model defines the tagged entity kinds that flow through
// LightChain: transactions, validated transactions, block proposals,
// blocks, and the accounts they act on.
package model

import "github.com/lightchain-network/lightchain/identifier"

// Kind tags the concrete type of an Entity. Wire envelopes carry it so
// the receiver can decode the payload into the right concrete type; the
// ingest engine itself dispatches with a type switch.
type Kind uint8

const (
	// KindUnknown marks an entity of a kind the ingest engine does not
	// accept; any wire entity that cannot be decoded into one of the
	// kinds below carries this tag.
	KindUnknown Kind = iota
	KindTransaction
	KindValidatedTransaction
	KindBlockProposal
	KindBlock
)

func (k Kind) String() string {
	switch k {
	case KindTransaction:
		return "Transaction"
	case KindValidatedTransaction:
		return "ValidatedTransaction"
	case KindBlockProposal:
		return "BlockProposal"
	case KindBlock:
		return "Block"
	default:
		return "Unknown"
	}
}

// Entity is any message that flows through the system. Its id is the
// hash of its canonical encoding, excluding any attached signatures or
// certificates.
type Entity interface {
	// ID returns H(canonical encoding of self, excluding signatures).
	ID() identifier.Identifier

	// Kind reports the entity's tagged variant.
	Kind() Kind
}
