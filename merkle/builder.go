// Package merkle implements the two merkle structures the chain needs:
// a per-block payload root (this file) and the append-only authenticated
// entity set queried by clients for inclusion proofs (ads.go).
package merkle

import "github.com/lightchain-network/lightchain/identifier"

// BuildPayloadRoot computes a block's payload merkle root over its
// ordered validated-transaction ids: balanced binary, duplicate the
// last leaf at each level when the count is odd, same as the
// authenticated set's own tree shape in ads.go. A proposal's payload is
// fixed once assembled, so the root is computed fresh rather than kept
// as a standing, incrementally-updated structure.
func BuildPayloadRoot(txIDs []identifier.Identifier) identifier.Identifier {
	if len(txIDs) == 0 {
		return identifier.Zero
	}

	level := make([]identifier.Identifier, len(txIDs))
	copy(level, txIDs)

	for len(level) > 1 {
		next := make([]identifier.Identifier, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashPair(left, right))
		}
		level = next
	}
	return level[0]
}

// hashPair computes H(left || right), the internal-node hash used by
// both the payload root and the authenticated entity set.
func hashPair(left, right identifier.Identifier) identifier.Identifier {
	combined := make([]byte, 0, 64)
	combined = append(combined, left.Bytes()...)
	combined = append(combined, right.Bytes()...)
	return identifier.H(combined)
}
