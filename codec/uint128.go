package codec

import "math/big"

// AppendU128LE encodes a non-negative value as 16-byte little-endian,
// matching the spec's u128 balance amounts. Values that do not fit revert
// to a zero-filled high half being impossible to produce legitimately, so
// overflow is rejected.
func AppendU128LE(dst []byte, v *big.Int) ([]byte, error) {
	if v == nil || v.Sign() < 0 {
		return nil, errInvalidU128("negative or nil value")
	}
	be := v.Bytes()
	if len(be) > 16 {
		return nil, errInvalidU128("value exceeds 128 bits")
	}
	var buf [16]byte
	// big.Int.Bytes() is big-endian; place it right-aligned then reverse.
	copy(buf[16-len(be):], be)
	for i, j := 0, 15; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return append(dst, buf[:]...), nil
}

func errInvalidU128(msg string) error {
	return &u128Error{msg}
}

type u128Error struct{ msg string }

func (e *u128Error) Error() string { return "codec: u128: " + e.msg }

// ReadU128LE reads a 16-byte little-endian unsigned integer.
func (c *Cursor) ReadU128LE() (*big.Int, error) {
	b, err := c.ReadBytesExact(16)
	if err != nil {
		return nil, err
	}
	be := make([]byte, 16)
	for i := range b {
		be[15-i] = b[i]
	}
	return new(big.Int).SetBytes(be), nil
}
