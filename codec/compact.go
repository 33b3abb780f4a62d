// Package codec implements the chain's canonical binary encoding:
// CompactSize length-prefixed integers, fixed-width little-endian
// primitives, and compact-prefixed sequences.
package codec

import "fmt"

// AppendCompactSize encodes n as a CompactSize varint and appends it to dst.
func AppendCompactSize(dst []byte, n uint64) []byte {
	switch {
	case n < 0xfd:
		return append(dst, byte(n))
	case n <= 0xffff:
		dst = append(dst, 0xfd)
		return AppendU16LE(dst, uint16(n))
	case n <= 0xffff_ffff:
		dst = append(dst, 0xfe)
		return AppendU32LE(dst, uint32(n))
	default:
		dst = append(dst, 0xff)
		return AppendU64LE(dst, n)
	}
}

// EncodeCompactSize is a convenience wrapper around AppendCompactSize.
func EncodeCompactSize(n uint64) []byte {
	return AppendCompactSize(nil, n)
}

// DecodeCompactSize decodes one CompactSize value from the front of buf and
// returns the value and the number of bytes consumed. Non-minimal encodings
// are rejected so that encode(decode(x)) == x always holds.
func DecodeCompactSize(buf []byte) (uint64, int, error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("codec: truncated compact size")
	}
	tag := buf[0]
	switch {
	case tag < 0xfd:
		return uint64(tag), 1, nil
	case tag == 0xfd:
		v, err := readU16LE(buf[1:])
		if err != nil {
			return 0, 0, err
		}
		if v < 0xfd {
			return 0, 0, fmt.Errorf("codec: non-minimal compact size (0xfd)")
		}
		return uint64(v), 3, nil
	case tag == 0xfe:
		v, err := readU32LE(buf[1:])
		if err != nil {
			return 0, 0, err
		}
		if v <= 0xffff {
			return 0, 0, fmt.Errorf("codec: non-minimal compact size (0xfe)")
		}
		return uint64(v), 5, nil
	default: // 0xff
		v, err := readU64LE(buf[1:])
		if err != nil {
			return 0, 0, err
		}
		if v <= 0xffff_ffff {
			return 0, 0, fmt.Errorf("codec: non-minimal compact size (0xff)")
		}
		return v, 9, nil
	}
}
