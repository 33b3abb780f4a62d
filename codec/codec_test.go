package codec

import (
	"math/big"
	"testing"
)

func TestCompactSizeRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffff_ffff, 0x1_0000_0000, ^uint64(0)}
	for _, v := range cases {
		enc := EncodeCompactSize(v)
		got, n, err := DecodeCompactSize(enc)
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if n != len(enc) {
			t.Fatalf("decode(%d): consumed %d, want %d", v, n, len(enc))
		}
		if got != v {
			t.Fatalf("round trip mismatch: got %d want %d", got, v)
		}
	}
}

func TestCompactSizeRejectsNonMinimal(t *testing.T) {
	// 0xfd immediately followed by a value that fits in a single byte.
	buf := []byte{0xfd, 0x01, 0x00}
	if _, _, err := DecodeCompactSize(buf); err == nil {
		t.Fatal("expected non-minimal encoding to be rejected")
	}
}

func TestCursorBytesAndString(t *testing.T) {
	var buf []byte
	buf = AppendBytes(buf, []byte("hello"))
	buf = AppendString(buf, "world")
	buf = AppendU64LE(buf, 42)

	c := NewCursor(buf)
	b, err := c.ReadBytes()
	if err != nil || string(b) != "hello" {
		t.Fatalf("ReadBytes: %v %q", err, b)
	}
	s, err := c.ReadString()
	if err != nil || s != "world" {
		t.Fatalf("ReadString: %v %q", err, s)
	}
	n, err := c.ReadU64LE()
	if err != nil || n != 42 {
		t.Fatalf("ReadU64LE: %v %d", err, n)
	}
	if !c.Done() {
		t.Fatal("expected cursor to be exhausted")
	}
}

func TestU128RoundTrip(t *testing.T) {
	values := []*big.Int{big.NewInt(0), big.NewInt(1), big.NewInt(123456789)}
	big128 := new(big.Int).Lsh(big.NewInt(1), 127)
	values = append(values, big128)
	for _, v := range values {
		enc, err := AppendU128LE(nil, v)
		if err != nil {
			t.Fatal(err)
		}
		if len(enc) != 16 {
			t.Fatalf("expected 16 bytes, got %d", len(enc))
		}
		c := NewCursor(enc)
		got, err := c.ReadU128LE()
		if err != nil {
			t.Fatal(err)
		}
		if got.Cmp(v) != 0 {
			t.Fatalf("round trip mismatch: got %s want %s", got, v)
		}
	}
}

func TestU128RejectsNegative(t *testing.T) {
	if _, err := AppendU128LE(nil, big.NewInt(-1)); err == nil {
		t.Fatal("expected negative value to be rejected")
	}
}
