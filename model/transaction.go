package model

import (
	"fmt"

	"github.com/lightchain-network/lightchain/chaincrypto"
	"github.com/lightchain-network/lightchain/identifier"
)

// Transaction is an unvalidated transfer, signed by its sender.
type Transaction struct {
	RefBlockID identifier.Identifier // block whose snapshot the sender/receiver/amount are valid against
	Sender     identifier.Identifier
	Receiver   identifier.Identifier
	Amount     uint64
	Signature  chaincrypto.Signature
}

// canonicalBytes encodes every field except Signature, per spec:
// "id = H(canonical fields ex. signature)".
func (t *Transaction) canonicalBytes() []byte {
	w := newCanonicalWriter()
	w.writeIdentifier(t.RefBlockID)
	w.writeIdentifier(t.Sender)
	w.writeIdentifier(t.Receiver)
	w.writeUint64(t.Amount)
	return w.bytes()
}

// ID implements Entity.
func (t *Transaction) ID() identifier.Identifier {
	return identifier.H(t.canonicalBytes())
}

// SigningPayload returns the bytes a certificate over this transaction
// is computed against: the same canonical fields its id hashes, minus
// the signature.
func (t *Transaction) SigningPayload() []byte {
	return t.canonicalBytes()
}

// Kind implements Entity.
func (t *Transaction) Kind() Kind {
	return KindTransaction
}

// ValidatedTransaction is a Transaction accompanied by certificates from
// its assigned validators.
type ValidatedTransaction struct {
	Transaction
	Certificates []chaincrypto.Signature
}

// ID implements Entity. Certificates are excluded from the hash, matching
// the base Transaction (certificates attest to the transaction, they are
// not part of its identity).
func (vt *ValidatedTransaction) ID() identifier.Identifier {
	return vt.Transaction.ID()
}

// Kind implements Entity.
func (vt *ValidatedTransaction) Kind() Kind {
	return KindValidatedTransaction
}

// Validate checks the structural invariant from spec §3: a
// ValidatedTransaction must carry at least SIGNATURE_THRESHOLD
// certificates. Cryptographic verification against assigned validators is
// the ingest engine's job (it needs the snapshot and assigner); this only
// enforces the count.
func (vt *ValidatedTransaction) Validate(signatureThreshold int) error {
	if len(vt.Certificates) < signatureThreshold {
		return fmt.Errorf("validated transaction %s: %d certificates, need >= %d",
			vt.ID(), len(vt.Certificates), signatureThreshold)
	}
	return nil
}
