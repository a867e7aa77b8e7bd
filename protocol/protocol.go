// Package protocol holds the protocol-level constants of LightChain.
// These are compiled-in invariants of the wire format and validation
// rules, not runtime configuration — nodes that disagree on them cannot
// interoperate, so they are not exposed as flags.
package protocol

const (
	// ValidatorThreshold (K) is the number of validators deterministically
	// assigned to certify a given block or transaction.
	ValidatorThreshold = 7

	// SignatureThreshold is the minimum number of valid certificates
	// required to accept a block or validated transaction. Must be <= ValidatorThreshold.
	SignatureThreshold = 5

	// MinStake is the minimum stake, in the snapshot of interest, for an
	// account to be eligible for validator assignment.
	MinStake = 1000

	// BlockHeightBits is the bit width of a block height field.
	BlockHeightBits = 64
)

// Channel names well-known across the network (spec §6).
const (
	ChannelBroadcast             = "broadcast-channel"
	ChannelProposedBlocks        = "proposed-blocks"
	ChannelValidatedBlocks       = "validated-blocks"
	ChannelValidatedTransactions = "validated-transactions"
	ChannelProposalsVoting       = "proposals-voting"
)

func init() {
	if SignatureThreshold > ValidatorThreshold {
		panic("protocol: SignatureThreshold must not exceed ValidatorThreshold")
	}
}
