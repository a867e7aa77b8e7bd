package model

import (
	"fmt"

	"github.com/lightchain-network/lightchain/chaincrypto"
	"github.com/lightchain-network/lightchain/identifier"
)

// BlockHeader carries the fields that identify a proposal's position in
// the chain and the root of its payload's merkle tree.
type BlockHeader struct {
	Height            uint64
	PreviousBlockID   identifier.Identifier
	ProposerID        identifier.Identifier
	PayloadMerkleRoot identifier.Identifier
}

func (h *BlockHeader) canonicalBytes() []byte {
	w := newCanonicalWriter()
	w.writeUint64(h.Height)
	w.writeIdentifier(h.PreviousBlockID)
	w.writeIdentifier(h.ProposerID)
	w.writeIdentifier(h.PayloadMerkleRoot)
	return w.bytes()
}

// BlockProposal is a proposer's candidate block: a header, its ordered
// payload of validated transactions, and the proposer's own signature
// over the header.
type BlockProposal struct {
	Header           BlockHeader
	Payload          []*ValidatedTransaction
	ProposerSignature chaincrypto.Signature
}

func (p *BlockProposal) canonicalBytes() []byte {
	w := newCanonicalWriter()
	w.buf.Write(p.Header.canonicalBytes())
	w.writeUint64(uint64(len(p.Payload)))
	for _, tx := range p.Payload {
		w.writeIdentifier(tx.ID())
	}
	return w.bytes()
}

// ID implements Entity: the proposer's signature is excluded, matching
// Transaction's "ex. signature" rule.
func (p *BlockProposal) ID() identifier.Identifier {
	return identifier.H(p.canonicalBytes())
}

// SigningPayload returns the bytes a validator certificate over this
// proposal is computed against: the same canonical fields its id
// hashes, minus the proposer's own signature.
func (p *BlockProposal) SigningPayload() []byte {
	return p.canonicalBytes()
}

// Kind implements Entity.
func (p *BlockProposal) Kind() Kind {
	return KindBlockProposal
}

// Block is a BlockProposal accompanied by certificates from its assigned
// validators attesting to its acceptance.
type Block struct {
	Proposal     BlockProposal
	Certificates []chaincrypto.Signature
}

// ID implements Entity: identical to the wrapped proposal's id, since a
// block's identity is the proposal it certifies, not the certificates.
func (b *Block) ID() identifier.Identifier {
	return b.Proposal.ID()
}

// Kind implements Entity.
func (b *Block) Kind() Kind {
	return KindBlock
}

// Height is a convenience accessor used by storage.BlockStore for its
// compound (id, height) key.
func (b *Block) Height() uint64 {
	return b.Proposal.Header.Height
}

// PreviousBlockID is a convenience accessor.
func (b *Block) PreviousBlockID() identifier.Identifier {
	return b.Proposal.Header.PreviousBlockID
}

// Validate checks the structural invariant from spec §3: a Block must
// carry at least SIGNATURE_THRESHOLD certificates. Cryptographic
// verification against assigned validators is the ingest engine's job.
func (b *Block) Validate(signatureThreshold int) error {
	if len(b.Certificates) < signatureThreshold {
		return fmt.Errorf("block %s: %d certificates, need >= %d",
			b.ID(), len(b.Certificates), signatureThreshold)
	}
	return nil
}
