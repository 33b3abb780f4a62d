// Package chaintypes holds the wire-level domain types shared by every
// layer of the node — execution, dispatch, modules, and chain — so that
// none of those packages needs to import another's internals just to
// describe a Transaction or Header.
//
// All encodings use compact-length-prefixed integers and sequences and
// fixed-width little-endian primitives, so the same value serializes to
// the same bytes on every platform.
package chaintypes

import (
	"bytes"
	"fmt"

	"wingchain.dev/node/codec"
)

// Hash is fixed at 32 bytes: the only hash algorithm wired into this node
// is blake2b_256 (crypto.HashBlake2b256).
type Hash [32]byte

// Address is fixed at 20 bytes: the only address algorithm wired into
// this node is blake2b_160 (crypto.AddressBlake2b160).
type Address [20]byte

func (a Address) Bytes() []byte { return a[:] }
func (h Hash) Bytes() []byte    { return h[:] }

// Witness carries a transaction's signing material. A nil Witness marks a
// meta transaction usable only at genesis or by the block author.
type Witness struct {
	PublicKey []byte
	Signature []byte
	Nonce     uint32
	Until     uint64
}

// Call is a typed invocation of one module method.
type Call struct {
	Module string
	Method string
	Params []byte
}

// Transaction is the chain's unit of state mutation.
type Transaction struct {
	Witness *Witness
	Call    Call
}

func encodeCall(dst []byte, c Call) []byte {
	dst = codec.AppendString(dst, c.Module)
	dst = codec.AppendString(dst, c.Method)
	dst = codec.AppendBytes(dst, c.Params)
	return dst
}

func decodeCall(c *codec.Cursor) (Call, error) {
	module, err := c.ReadString()
	if err != nil {
		return Call{}, err
	}
	method, err := c.ReadString()
	if err != nil {
		return Call{}, err
	}
	params, err := c.ReadBytes()
	if err != nil {
		return Call{}, err
	}
	return Call{Module: module, Method: method, Params: params}, nil
}

// EncodeHashable serializes the stable, signature-independent projection
// of tx used to compute its TransactionHash: the
// witness's public key/nonce/until (but never its signature), plus the
// call. Re-signing a transaction never changes its hash.
func EncodeHashable(tx *Transaction) []byte {
	var out []byte
	if tx.Witness == nil {
		out = append(out, 0)
	} else {
		out = append(out, 1)
		out = codec.AppendBytes(out, tx.Witness.PublicKey)
		out = codec.AppendU32LE(out, tx.Witness.Nonce)
		out = codec.AppendU64LE(out, tx.Witness.Until)
	}
	out = encodeCall(out, tx.Call)
	return out
}

// EncodeTx serializes tx including its full witness (signature included),
// the wire format used for TRANSACTION-column storage and RPC echo.
func EncodeTx(tx *Transaction) []byte {
	var out []byte
	if tx.Witness == nil {
		out = append(out, 0)
	} else {
		out = append(out, 1)
		out = codec.AppendBytes(out, tx.Witness.PublicKey)
		out = codec.AppendBytes(out, tx.Witness.Signature)
		out = codec.AppendU32LE(out, tx.Witness.Nonce)
		out = codec.AppendU64LE(out, tx.Witness.Until)
	}
	out = encodeCall(out, tx.Call)
	return out
}

// DecodeTx is the inverse of EncodeTx.
func DecodeTx(b []byte) (*Transaction, error) {
	c := codec.NewCursor(b)
	present, err := c.ReadU8()
	if err != nil {
		return nil, err
	}
	tx := &Transaction{}
	if present == 1 {
		pub, err := c.ReadBytes()
		if err != nil {
			return nil, err
		}
		sig, err := c.ReadBytes()
		if err != nil {
			return nil, err
		}
		nonce, err := c.ReadU32LE()
		if err != nil {
			return nil, err
		}
		until, err := c.ReadU64LE()
		if err != nil {
			return nil, err
		}
		tx.Witness = &Witness{PublicKey: pub, Signature: sig, Nonce: nonce, Until: until}
	} else if present != 0 {
		return nil, fmt.Errorf("chaintypes: invalid witness presence tag %d", present)
	}
	call, err := decodeCall(c)
	if err != nil {
		return nil, err
	}
	tx.Call = call
	if !c.Done() {
		return nil, fmt.Errorf("chaintypes: trailing bytes after transaction")
	}
	return tx, nil
}

// TransactionHash computes tx's stable hash with the given hash function.
func TransactionHash(hashFn func([]byte) [32]byte, tx *Transaction) Hash {
	return Hash(hashFn(EncodeHashable(tx)))
}

// Equal reports whether two transactions encode identically.
func (tx *Transaction) Equal(other *Transaction) bool {
	return bytes.Equal(EncodeTx(tx), EncodeTx(other))
}
