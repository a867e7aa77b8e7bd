package model

import (
	"bytes"
	"encoding/binary"

	"github.com/lightchain-network/lightchain/chaincrypto"
	"github.com/lightchain-network/lightchain/identifier"
)

// canonicalWriter accumulates a deterministic byte encoding the same way
// the teacher's indexnode.Marshal and messages.ParseBlockHeader build up
// fixed-layout buffers with encoding/binary, field by field, in a fixed
// order.
type canonicalWriter struct {
	buf bytes.Buffer
}

func newCanonicalWriter() *canonicalWriter {
	return &canonicalWriter{}
}

func (w *canonicalWriter) writeIdentifier(id identifier.Identifier) *canonicalWriter {
	w.buf.Write(id.Bytes())
	return w
}

func (w *canonicalWriter) writeString(s string) *canonicalWriter {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.buf.Write(lenBuf[:])
	w.buf.WriteString(s)
	return w
}

func (w *canonicalWriter) writeUint64(v uint64) *canonicalWriter {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
	return w
}

func (w *canonicalWriter) writeBytes(b []byte) *canonicalWriter {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	w.buf.Write(lenBuf[:])
	w.buf.Write(b)
	return w
}

func (w *canonicalWriter) bytes() []byte {
	return w.buf.Bytes()
}

// signatureBytes canonicalizes a chaincrypto.Signature as its signer id
// followed by length-prefixed R and S. No entity id or signing payload
// includes it: ids exclude signatures and certificates, and the storage
// and wire forms use the cbor codec in codec.go.
func signatureBytes(sig chaincrypto.Signature) []byte {
	w := newCanonicalWriter()
	w.writeIdentifier(sig.SignerID)
	if sig.R != nil {
		w.writeBytes(sig.R.Bytes())
	} else {
		w.writeBytes(nil)
	}
	if sig.S != nil {
		w.writeBytes(sig.S.Bytes())
	} else {
		w.writeBytes(nil)
	}
	return w.bytes()
}
