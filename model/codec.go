package model

import (
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/lightchain-network/lightchain/chaincrypto"
	"github.com/lightchain-network/lightchain/identifier"
)

// wireSignature is chaincrypto.Signature's storable form: cbor has no
// native big.Int support, so R/S travel as big-endian byte slices.
type wireSignature struct {
	SignerID [32]byte
	R        []byte
	S        []byte
}

func toWireSignature(sig chaincrypto.Signature) wireSignature {
	w := wireSignature{SignerID: sig.SignerID}
	if sig.R != nil {
		w.R = sig.R.Bytes()
	}
	if sig.S != nil {
		w.S = sig.S.Bytes()
	}
	return w
}

func (w wireSignature) toSignature() chaincrypto.Signature {
	return chaincrypto.Signature{SignerID: identifier.Identifier(w.SignerID), R: bigIntOrNil(w.R), S: bigIntOrNil(w.S)}
}

type wireTransaction struct {
	RefBlockID [32]byte
	Sender     [32]byte
	Receiver   [32]byte
	Amount     uint64
	Signature  wireSignature
}

type wireValidatedTransaction struct {
	Transaction  wireTransaction
	Certificates []wireSignature
}

type wireBlockHeader struct {
	Height            uint64
	PreviousBlockID   [32]byte
	ProposerID        [32]byte
	PayloadMerkleRoot [32]byte
}

type wireBlockProposal struct {
	Header            wireBlockHeader
	Payload           []wireValidatedTransaction
	ProposerSignature wireSignature
}

type wireBlock struct {
	Proposal     wireBlockProposal
	Certificates []wireSignature
}

type wireAccount struct {
	ID          [32]byte
	PublicKey   []byte
	Balance     uint64
	Stake       uint64
	LastBlockID [32]byte
}

func toWireTransaction(t Transaction) wireTransaction {
	return wireTransaction{
		RefBlockID: t.RefBlockID,
		Sender:     t.Sender,
		Receiver:   t.Receiver,
		Amount:     t.Amount,
		Signature:  toWireSignature(t.Signature),
	}
}

func (w wireTransaction) toTransaction() Transaction {
	return Transaction{
		RefBlockID: w.RefBlockID,
		Sender:     w.Sender,
		Receiver:   w.Receiver,
		Amount:     w.Amount,
		Signature:  w.Signature.toSignature(),
	}
}

// EncodeValidatedTransaction serializes a ValidatedTransaction for
// storage in a kvstore.KVStore, e.g. PendingTransactionStore.
func EncodeValidatedTransaction(vt *ValidatedTransaction) ([]byte, error) {
	w := wireValidatedTransaction{Transaction: toWireTransaction(vt.Transaction)}
	for _, c := range vt.Certificates {
		w.Certificates = append(w.Certificates, toWireSignature(c))
	}
	b, err := cbor.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("model: encode validated transaction: %w", err)
	}
	return b, nil
}

// DecodeValidatedTransaction reverses EncodeValidatedTransaction.
func DecodeValidatedTransaction(data []byte) (*ValidatedTransaction, error) {
	var w wireValidatedTransaction
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("model: decode validated transaction: %w", err)
	}
	vt := &ValidatedTransaction{Transaction: w.Transaction.toTransaction()}
	for _, c := range w.Certificates {
		vt.Certificates = append(vt.Certificates, c.toSignature())
	}
	return vt, nil
}

// EncodeTransaction serializes a Transaction for wire transmission.
func EncodeTransaction(t *Transaction) ([]byte, error) {
	b, err := cbor.Marshal(toWireTransaction(*t))
	if err != nil {
		return nil, fmt.Errorf("model: encode transaction: %w", err)
	}
	return b, nil
}

// DecodeTransaction reverses EncodeTransaction.
func DecodeTransaction(data []byte) (*Transaction, error) {
	var w wireTransaction
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("model: decode transaction: %w", err)
	}
	t := w.toTransaction()
	return &t, nil
}

func toWireBlockProposal(p *BlockProposal) wireBlockProposal {
	w := wireBlockProposal{
		Header: wireBlockHeader{
			Height:            p.Header.Height,
			PreviousBlockID:   p.Header.PreviousBlockID,
			ProposerID:        p.Header.ProposerID,
			PayloadMerkleRoot: p.Header.PayloadMerkleRoot,
		},
		ProposerSignature: toWireSignature(p.ProposerSignature),
	}
	for _, vt := range p.Payload {
		wvt := wireValidatedTransaction{Transaction: toWireTransaction(vt.Transaction)}
		for _, c := range vt.Certificates {
			wvt.Certificates = append(wvt.Certificates, toWireSignature(c))
		}
		w.Payload = append(w.Payload, wvt)
	}
	return w
}

func (w wireBlockProposal) toBlockProposal() BlockProposal {
	p := BlockProposal{
		Header: BlockHeader{
			Height:            w.Header.Height,
			PreviousBlockID:   w.Header.PreviousBlockID,
			ProposerID:        w.Header.ProposerID,
			PayloadMerkleRoot: w.Header.PayloadMerkleRoot,
		},
		ProposerSignature: w.ProposerSignature.toSignature(),
	}
	for _, wvt := range w.Payload {
		vt := &ValidatedTransaction{Transaction: wvt.Transaction.toTransaction()}
		for _, c := range wvt.Certificates {
			vt.Certificates = append(vt.Certificates, c.toSignature())
		}
		p.Payload = append(p.Payload, vt)
	}
	return p
}

// EncodeBlockProposal serializes a BlockProposal for wire transmission.
func EncodeBlockProposal(p *BlockProposal) ([]byte, error) {
	b, err := cbor.Marshal(toWireBlockProposal(p))
	if err != nil {
		return nil, fmt.Errorf("model: encode block proposal: %w", err)
	}
	return b, nil
}

// DecodeBlockProposal reverses EncodeBlockProposal.
func DecodeBlockProposal(data []byte) (*BlockProposal, error) {
	var w wireBlockProposal
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("model: decode block proposal: %w", err)
	}
	p := w.toBlockProposal()
	return &p, nil
}

// EncodeEntity serializes any accepted Entity kind alongside its Kind tag,
// so a wire envelope can later reconstruct the concrete type without
// out-of-band knowledge of what was sent.
func EncodeEntity(e Entity) (Kind, []byte, error) {
	switch v := e.(type) {
	case *Transaction:
		payload, err := EncodeTransaction(v)
		return KindTransaction, payload, err
	case *ValidatedTransaction:
		payload, err := EncodeValidatedTransaction(v)
		return KindValidatedTransaction, payload, err
	case *BlockProposal:
		payload, err := EncodeBlockProposal(v)
		return KindBlockProposal, payload, err
	case *Block:
		payload, err := EncodeBlock(v)
		return KindBlock, payload, err
	default:
		return KindUnknown, nil, fmt.Errorf("model: cannot encode entity of kind %T", e)
	}
}

// DecodeEntity reverses EncodeEntity given the Kind tag it was encoded
// with.
func DecodeEntity(kind Kind, payload []byte) (Entity, error) {
	switch kind {
	case KindTransaction:
		return DecodeTransaction(payload)
	case KindValidatedTransaction:
		return DecodeValidatedTransaction(payload)
	case KindBlockProposal:
		return DecodeBlockProposal(payload)
	case KindBlock:
		return DecodeBlock(payload)
	default:
		return nil, fmt.Errorf("model: cannot decode unknown entity kind %v", kind)
	}
}

// EncodeBlock serializes a Block for storage in BlockStore.
func EncodeBlock(b *Block) ([]byte, error) {
	w := wireBlock{
		Proposal: wireBlockProposal{
			Header: wireBlockHeader{
				Height:            b.Proposal.Header.Height,
				PreviousBlockID:   b.Proposal.Header.PreviousBlockID,
				ProposerID:        b.Proposal.Header.ProposerID,
				PayloadMerkleRoot: b.Proposal.Header.PayloadMerkleRoot,
			},
			ProposerSignature: toWireSignature(b.Proposal.ProposerSignature),
		},
	}
	for _, vt := range b.Proposal.Payload {
		wvt := wireValidatedTransaction{Transaction: toWireTransaction(vt.Transaction)}
		for _, c := range vt.Certificates {
			wvt.Certificates = append(wvt.Certificates, toWireSignature(c))
		}
		w.Proposal.Payload = append(w.Proposal.Payload, wvt)
	}
	for _, c := range b.Certificates {
		w.Certificates = append(w.Certificates, toWireSignature(c))
	}

	encoded, err := cbor.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("model: encode block: %w", err)
	}
	return encoded, nil
}

// DecodeBlock reverses EncodeBlock.
func DecodeBlock(data []byte) (*Block, error) {
	var w wireBlock
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("model: decode block: %w", err)
	}

	b := &Block{
		Proposal: BlockProposal{
			Header: BlockHeader{
				Height:            w.Proposal.Header.Height,
				PreviousBlockID:   w.Proposal.Header.PreviousBlockID,
				ProposerID:        w.Proposal.Header.ProposerID,
				PayloadMerkleRoot: w.Proposal.Header.PayloadMerkleRoot,
			},
			ProposerSignature: w.Proposal.ProposerSignature.toSignature(),
		},
	}
	for _, wvt := range w.Proposal.Payload {
		vt := &ValidatedTransaction{Transaction: wvt.Transaction.toTransaction()}
		for _, c := range wvt.Certificates {
			vt.Certificates = append(vt.Certificates, c.toSignature())
		}
		b.Proposal.Payload = append(b.Proposal.Payload, vt)
	}
	for _, c := range w.Certificates {
		b.Certificates = append(b.Certificates, c.toSignature())
	}
	return b, nil
}

// EncodeAccount serializes an Account for storage in state/sqlite.
func EncodeAccount(a Account) ([]byte, error) {
	w := wireAccount{
		ID:          a.ID,
		Balance:     a.Balance,
		Stake:       a.Stake,
		LastBlockID: a.LastBlockID,
	}
	if a.PublicKey != nil {
		w.PublicKey = a.PublicKey.Bytes()
	}
	b, err := cbor.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("model: encode account: %w", err)
	}
	return b, nil
}

// DecodeAccount reverses EncodeAccount.
func DecodeAccount(data []byte) (Account, error) {
	var w wireAccount
	if err := cbor.Unmarshal(data, &w); err != nil {
		return Account{}, fmt.Errorf("model: decode account: %w", err)
	}
	a := Account{
		ID:          identifier.Identifier(w.ID),
		Balance:     w.Balance,
		Stake:       w.Stake,
		LastBlockID: identifier.Identifier(w.LastBlockID),
	}
	if len(w.PublicKey) > 0 {
		pub, err := chaincrypto.PublicKeyFromBytes(w.PublicKey)
		if err != nil {
			return Account{}, fmt.Errorf("model: decode account public key: %w", err)
		}
		a.PublicKey = pub
	}
	return a, nil
}

func bigIntOrNil(b []byte) *big.Int {
	if len(b) == 0 {
		return nil
	}
	return new(big.Int).SetBytes(b)
}
