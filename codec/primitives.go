package codec

import (
	"encoding/binary"
	"fmt"
)

func AppendU8(dst []byte, v uint8) []byte { return append(dst, v) }

func AppendU16LE(dst []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(dst, tmp[:]...)
}

func AppendU32LE(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}

func AppendU64LE(dst []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:]...)
}

// AppendBytes writes a compact-size length prefix followed by b.
func AppendBytes(dst []byte, b []byte) []byte {
	dst = AppendCompactSize(dst, uint64(len(b)))
	return append(dst, b...)
}

// AppendString writes a compact-size length prefix followed by the UTF-8
// bytes of s.
func AppendString(dst []byte, s string) []byte {
	return AppendBytes(dst, []byte(s))
}

func readU16LE(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("codec: truncated u16")
	}
	return binary.LittleEndian.Uint16(b), nil
}

func readU32LE(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("codec: truncated u32")
	}
	return binary.LittleEndian.Uint32(b), nil
}

func readU64LE(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("codec: truncated u64")
	}
	return binary.LittleEndian.Uint64(b), nil
}

// Cursor is a forward-only reader over a canonical-encoded byte slice.
type Cursor struct {
	b   []byte
	pos int
}

func NewCursor(b []byte) *Cursor { return &Cursor{b: b} }

func (c *Cursor) Remaining() int {
	if c.pos >= len(c.b) {
		return 0
	}
	return len(c.b) - c.pos
}

func (c *Cursor) Done() bool { return c.Remaining() == 0 }

func (c *Cursor) readExact(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, fmt.Errorf("codec: truncated (want %d, have %d)", n, c.Remaining())
	}
	start := c.pos
	c.pos += n
	return c.b[start:c.pos], nil
}

func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.readExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Cursor) ReadU16LE() (uint16, error) {
	b, err := c.readExact(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Cursor) ReadU32LE() (uint32, error) {
	b, err := c.readExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *Cursor) ReadU64LE() (uint64, error) {
	b, err := c.readExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (c *Cursor) ReadBytesExact(n int) ([]byte, error) {
	b, err := c.readExact(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

func (c *Cursor) ReadCompactSize() (uint64, error) {
	v, used, err := DecodeCompactSize(c.b[c.pos:])
	if err != nil {
		return 0, err
	}
	c.pos += used
	return v, nil
}

// ReadBytes reads a compact-size-prefixed byte string.
func (c *Cursor) ReadBytes() ([]byte, error) {
	n, err := c.ReadCompactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(c.Remaining()) {
		return nil, fmt.Errorf("codec: byte string length %d exceeds remaining input", n)
	}
	return c.ReadBytesExact(int(n))
}

// ReadString reads a compact-size-prefixed UTF-8 string.
func (c *Cursor) ReadString() (string, error) {
	b, err := c.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
