// Package identifier defines the 32-byte opaque identifier used to name
// every entity in the chain: blocks, transactions, proposals, accounts.
package identifier

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	mh "github.com/multiformats/go-multihash"
	_ "github.com/multiformats/go-multihash/register/blake3"
	"lukechampine.com/blake3"
)

// Identifier is a value-equal, orderable, hashable 32-byte identifier.
type Identifier [32]byte

// Zero is the identifier with all bytes zero, used as the previous-block
// id of the genesis block.
var Zero Identifier

// New wraps a 32-byte slice as an Identifier.
func New(b []byte) (Identifier, error) {
	var id Identifier
	if len(b) != 32 {
		return id, fmt.Errorf("identifier: expected 32 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// H is the chain's concrete instantiation of the hash black box: BLAKE3
// over the given bytes, truncated to 32 bytes.
func H(data []byte) Identifier {
	return Identifier(blake3.Sum256(data))
}

// Bytes returns the identifier's raw 32 bytes.
func (id Identifier) Bytes() []byte {
	return id[:]
}

// Equal reports whether two identifiers hold the same bytes.
func (id Identifier) Equal(other Identifier) bool {
	return id == other
}

// Compare returns -1, 0 or 1, ordering identifiers lexicographically by
// byte value. Used by the assigner to deterministically sort staked
// account ids.
func (id Identifier) Compare(other Identifier) int {
	return bytes.Compare(id[:], other[:])
}

// IsZero reports whether the identifier is the all-zero value.
func (id Identifier) IsZero() bool {
	return id == Zero
}

// Hex returns the lowercase hex encoding of the identifier.
func (id Identifier) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements fmt.Stringer.
func (id Identifier) String() string {
	return id.Hex()
}

// Multihash wraps the identifier in a self-describing BLAKE3 multihash
// envelope, so that identifiers can be verified against arbitrary source
// bytes by callers that only hold the envelope.
func (id Identifier) Multihash() (mh.Multihash, error) {
	h, err := mh.Encode(id[:], mh.BLAKE3)
	if err != nil {
		return nil, fmt.Errorf("identifier: failed to encode multihash: %w", err)
	}
	return h, nil
}

// FromMultihash extracts a 32-byte BLAKE3 digest from its multihash
// envelope as an Identifier.
func FromMultihash(h mh.Multihash) (Identifier, error) {
	decoded, err := mh.Decode(h)
	if err != nil {
		return Identifier{}, fmt.Errorf("identifier: invalid multihash: %w", err)
	}
	if decoded.Code != mh.BLAKE3 {
		return Identifier{}, fmt.Errorf("identifier: expected BLAKE3 code 0x%x, got 0x%x", mh.BLAKE3, decoded.Code)
	}
	return New(decoded.Digest)
}

// Less reports whether id sorts before other. A thin convenience wrapper
// over Compare for use with sort.Slice.
func Less(id, other Identifier) bool {
	return id.Compare(other) < 0
}

// ChainHash aliases the identifier as a chainhash.Hash, the same 32-byte
// array type kvstore used for transaction/block hashes before this
// package existed. Kept so code that talks to chainhash-typed helpers
// (wire-compatible hash formatting, reversed-hex display) can interop
// without a copy.
func (id Identifier) ChainHash() chainhash.Hash {
	return chainhash.Hash(id)
}

// FromChainHash wraps a chainhash.Hash as an Identifier.
func FromChainHash(h chainhash.Hash) Identifier {
	return Identifier(h)
}
