package model

import (
	"math/big"
	"testing"

	"github.com/lightchain-network/lightchain/chaincrypto"
	"github.com/lightchain-network/lightchain/identifier"
)

func TestTransactionIDExcludesSignature(t *testing.T) {
	tx := &Transaction{
		RefBlockID: identifier.H([]byte("block")),
		Sender:     identifier.H([]byte("alice")),
		Receiver:   identifier.H([]byte("bob")),
		Amount:     42,
	}
	before := tx.ID()

	tx.Signature = chaincrypto.Signature{SignerID: identifier.H([]byte("alice")), R: big.NewInt(1), S: big.NewInt(2)}
	after := tx.ID()

	if before != after {
		t.Fatalf("signature must not affect transaction id: %s != %s", before, after)
	}
}

func TestTransactionIDChangesWithFields(t *testing.T) {
	tx1 := &Transaction{
		RefBlockID: identifier.H([]byte("block")),
		Sender:     identifier.H([]byte("alice")),
		Receiver:   identifier.H([]byte("bob")),
		Amount:     42,
	}
	tx2 := *tx1
	tx2.Amount = 43

	if tx1.ID() == tx2.ID() {
		t.Fatal("differing amount must produce differing id")
	}
}

func TestValidatedTransactionIDMatchesBase(t *testing.T) {
	tx := Transaction{
		RefBlockID: identifier.H([]byte("block")),
		Sender:     identifier.H([]byte("alice")),
		Receiver:   identifier.H([]byte("bob")),
		Amount:     42,
	}
	vt := &ValidatedTransaction{Transaction: tx}

	if vt.ID() != tx.ID() {
		t.Fatal("validated transaction id must match its base transaction id")
	}
}

func TestValidatedTransactionValidateThreshold(t *testing.T) {
	vt := &ValidatedTransaction{
		Certificates: make([]chaincrypto.Signature, 4),
	}
	if err := vt.Validate(5); err == nil {
		t.Fatal("expected error for too few certificates")
	}
	vt.Certificates = make([]chaincrypto.Signature, 5)
	if err := vt.Validate(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBlockProposalIDExcludesProposerSignature(t *testing.T) {
	p := &BlockProposal{
		Header: BlockHeader{
			Height:          1,
			PreviousBlockID: identifier.H([]byte("genesis")),
			ProposerID:      identifier.H([]byte("proposer")),
		},
	}
	before := p.ID()
	p.ProposerSignature = chaincrypto.Signature{SignerID: identifier.H([]byte("proposer")), R: big.NewInt(1), S: big.NewInt(2)}
	after := p.ID()

	if before != after {
		t.Fatal("proposer signature must not affect proposal id")
	}
}

func TestBlockIDMatchesProposal(t *testing.T) {
	p := BlockProposal{
		Header: BlockHeader{Height: 1},
	}
	b := &Block{Proposal: p}

	if b.ID() != p.ID() {
		t.Fatal("block id must equal its proposal id")
	}
}

func TestBlockValidateThreshold(t *testing.T) {
	b := &Block{Certificates: make([]chaincrypto.Signature, 3)}
	if err := b.Validate(5); err == nil {
		t.Fatal("expected error for too few certificates")
	}
	b.Certificates = make([]chaincrypto.Signature, 5)
	if err := b.Validate(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChainTipAdvance(t *testing.T) {
	tip := NewChainTip()

	if _, _, ok := tip.Tip(); ok {
		t.Fatal("expected no tip before any advance")
	}

	genesis := identifier.H([]byte("genesis"))
	tip.Advance(genesis, 0)

	child := identifier.H([]byte("child"))
	tip.Advance(child, 1)

	id, height, ok := tip.Tip()
	if !ok || id != child || height != 1 {
		t.Fatalf("expected tip to be child at height 1, got %s/%d/%v", id, height, ok)
	}

	if h, ok := tip.Height(genesis); !ok || h != 0 {
		t.Fatalf("expected genesis height 0, got %d/%v", h, ok)
	}
}

func TestAccountIsValidator(t *testing.T) {
	a := Account{Stake: 500}
	if a.IsValidator(1000) {
		t.Fatal("expected account below min stake to not be a validator")
	}
	a = a.WithBalance(10)
	a.Stake = 1000
	if !a.IsValidator(1000) {
		t.Fatal("expected account at min stake to be a validator")
	}
}
