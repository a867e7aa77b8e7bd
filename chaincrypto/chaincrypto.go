// Package chaincrypto provides the signature scheme black box (Σ) that
// the rest of the node treats opaquely: generate a keypair, sign a
// canonical payload, verify a signature against a public key.
//
// The concrete instantiation here is deliberately standard-library only.
// Primitive cryptography is explicitly out of scope for this spec ("we
// assume a hash H and a signature scheme Σ as black boxes"), so there is
// no third-party curve/signature library to wire in without implementing
// something the spec asks to leave as a black box.
package chaincrypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/lightchain-network/lightchain/identifier"
)

// PublicKey verifies signatures produced by the matching PrivateKey.
type PublicKey interface {
	Verify(payload []byte, sig Signature) bool
	Bytes() []byte
}

// PrivateKey signs payloads and exposes its PublicKey.
type PrivateKey interface {
	Sign(signerID SignerIdentifier, payload []byte) (Signature, error)
	Public() PublicKey
}

// Signature is an opaque Σ-scheme signature over a payload, tagged with
// the identifier of the account that produced it. The scheme itself
// (ECDSA) has no way to recover a signer's identity from a signature
// alone, so the signer travels alongside it — the ingest engine needs it
// to look up the right account's public key in a Snapshot and to check a
// certificate set for distinct signers (spec §4.5 step 3).
type Signature struct {
	SignerID SignerIdentifier
	R, S     *big.Int
}

// SignerIdentifier is the identifier of the account whose key produced a
// Signature — used by the ingest engine to check a certificate was
// signed by a distinct assigned validator.
type SignerIdentifier = identifier.Identifier

type ecdsaPublicKey struct {
	key *ecdsa.PublicKey
}

type ecdsaPrivateKey struct {
	key *ecdsa.PrivateKey
}

// GenerateKeyPair creates a new P-256 ECDSA keypair.
func GenerateKeyPair() (PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("chaincrypto: failed to generate keypair: %w", err)
	}
	return &ecdsaPrivateKey{key: key}, nil
}

func (p *ecdsaPrivateKey) Sign(signerID SignerIdentifier, payload []byte) (Signature, error) {
	digest := identifier.H(payload)
	r, s, err := ecdsa.Sign(rand.Reader, p.key, digest[:])
	if err != nil {
		return Signature{}, fmt.Errorf("chaincrypto: sign failed: %w", err)
	}
	return Signature{SignerID: signerID, R: r, S: s}, nil
}

func (p *ecdsaPrivateKey) Public() PublicKey {
	return &ecdsaPublicKey{key: &p.key.PublicKey}
}

func (pub *ecdsaPublicKey) Verify(payload []byte, sig Signature) bool {
	if sig.R == nil || sig.S == nil {
		return false
	}
	digest := identifier.H(payload)
	return ecdsa.Verify(pub.key, digest[:], sig.R, sig.S)
}

func (pub *ecdsaPublicKey) Bytes() []byte {
	return elliptic.Marshal(pub.key.Curve, pub.key.X, pub.key.Y)
}

// PublicKeyFromBytes reconstructs a PublicKey from its marshaled form, as
// stored in an Account.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	x, y := elliptic.Unmarshal(elliptic.P256(), b)
	if x == nil {
		return nil, fmt.Errorf("chaincrypto: invalid public key bytes")
	}
	return &ecdsaPublicKey{key: &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}}, nil
}
