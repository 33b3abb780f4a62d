package chaintypes

import (
	"fmt"

	"wingchain.dev/node/codec"
)

// Header fields and order are part of the wire format.
type Header struct {
	Number                       uint64
	Timestamp                    uint64
	ParentHash                   Hash
	MetaTxsRoot                  Hash
	MetaStateRoot                Hash
	MetaReceiptsRoot             Hash
	PayloadTxsRoot               Hash
	PayloadExecutionGap          uint8
	PayloadExecutionStateRoot    Hash
	PayloadExecutionReceiptsRoot Hash
}

func EncodeHeader(h *Header) []byte {
	out := make([]byte, 0, 8+8+32*7+1)
	out = codec.AppendU64LE(out, h.Number)
	out = codec.AppendU64LE(out, h.Timestamp)
	out = append(out, h.ParentHash.Bytes()...)
	out = append(out, h.MetaTxsRoot.Bytes()...)
	out = append(out, h.MetaStateRoot.Bytes()...)
	out = append(out, h.MetaReceiptsRoot.Bytes()...)
	out = append(out, h.PayloadTxsRoot.Bytes()...)
	out = codec.AppendU8(out, h.PayloadExecutionGap)
	out = append(out, h.PayloadExecutionStateRoot.Bytes()...)
	out = append(out, h.PayloadExecutionReceiptsRoot.Bytes()...)
	return out
}

func DecodeHeader(b []byte) (*Header, error) {
	c := codec.NewCursor(b)
	h := &Header{}
	var err error
	if h.Number, err = c.ReadU64LE(); err != nil {
		return nil, err
	}
	if h.Timestamp, err = c.ReadU64LE(); err != nil {
		return nil, err
	}
	for _, dst := range []*Hash{&h.ParentHash, &h.MetaTxsRoot, &h.MetaStateRoot, &h.MetaReceiptsRoot, &h.PayloadTxsRoot} {
		raw, err := c.ReadBytesExact(32)
		if err != nil {
			return nil, err
		}
		copy(dst[:], raw)
	}
	if h.PayloadExecutionGap, err = c.ReadU8(); err != nil {
		return nil, err
	}
	for _, dst := range []*Hash{&h.PayloadExecutionStateRoot, &h.PayloadExecutionReceiptsRoot} {
		raw, err := c.ReadBytesExact(32)
		if err != nil {
			return nil, err
		}
		copy(dst[:], raw)
	}
	if !c.Done() {
		return nil, fmt.Errorf("chaintypes: trailing bytes after header")
	}
	return h, nil
}

// HeaderHash computes h's block hash.
func HeaderHash(hashFn func([]byte) [32]byte, h *Header) Hash {
	return Hash(hashFn(EncodeHeader(h)))
}

// Body holds the ordered transaction hashes committed at a block; full
// transactions are stored separately keyed by hash.
type Body struct {
	MetaTxs    []Hash
	PayloadTxs []Hash
}

func encodeHashList(dst []byte, hashes []Hash) []byte {
	dst = codec.AppendCompactSize(dst, uint64(len(hashes)))
	for _, h := range hashes {
		dst = append(dst, h.Bytes()...)
	}
	return dst
}

func decodeHashList(c *codec.Cursor) ([]Hash, error) {
	n, err := c.ReadCompactSize()
	if err != nil {
		return nil, err
	}
	out := make([]Hash, 0, n)
	for i := uint64(0); i < n; i++ {
		raw, err := c.ReadBytesExact(32)
		if err != nil {
			return nil, err
		}
		var h Hash
		copy(h[:], raw)
		out = append(out, h)
	}
	return out, nil
}

func EncodeHashes(hashes []Hash) []byte {
	return encodeHashList(nil, hashes)
}

func DecodeHashes(b []byte) ([]Hash, error) {
	c := codec.NewCursor(b)
	out, err := decodeHashList(c)
	if err != nil {
		return nil, err
	}
	if !c.Done() {
		return nil, fmt.Errorf("chaintypes: trailing bytes after hash list")
	}
	return out, nil
}

// Executed is written for block N when block N+gap is committed; block
// 0's record is written by the genesis batch itself.
type Executed struct {
	PayloadExecutedStateRoot Hash
}

func EncodeExecuted(e *Executed) []byte {
	return append([]byte(nil), e.PayloadExecutedStateRoot.Bytes()...)
}

func DecodeExecuted(b []byte) (*Executed, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("chaintypes: executed record must be 32 bytes, got %d", len(b))
	}
	var e Executed
	copy(e.PayloadExecutedStateRoot[:], b)
	return &e, nil
}

// EncodeBlockNumber is the canonical encoding used as the BLOCK_HASH
// column key.
func EncodeBlockNumber(n uint64) []byte {
	return codec.AppendU64LE(nil, n)
}
