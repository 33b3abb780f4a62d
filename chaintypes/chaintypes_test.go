package chaintypes

import (
	"testing"

	"golang.org/x/crypto/blake2b"
)

func hashFn(b []byte) [32]byte { return blake2b.Sum256(b) }

func TestTransactionRoundTrip(t *testing.T) {
	tx := &Transaction{
		Witness: &Witness{PublicKey: []byte("pub"), Signature: []byte("sig"), Nonce: 7, Until: 1000},
		Call:    Call{Module: "balance", Method: "transfer", Params: []byte{1, 2, 3}},
	}
	enc := EncodeTx(tx)
	got, err := DecodeTx(enc)
	if err != nil {
		t.Fatal(err)
	}
	if !tx.Equal(got) {
		t.Fatal("round trip mismatch")
	}
	if TransactionHash(hashFn, tx) != TransactionHash(hashFn, got) {
		t.Fatal("hash mismatch after round trip")
	}
}

func TestTransactionHashStableAcrossSignature(t *testing.T) {
	base := Call{Module: "balance", Method: "transfer", Params: []byte{9}}
	tx1 := &Transaction{Witness: &Witness{PublicKey: []byte("pub"), Signature: []byte("sig-a"), Nonce: 1, Until: 5}, Call: base}
	tx2 := &Transaction{Witness: &Witness{PublicKey: []byte("pub"), Signature: []byte("sig-b-different"), Nonce: 1, Until: 5}, Call: base}
	if TransactionHash(hashFn, tx1) != TransactionHash(hashFn, tx2) {
		t.Fatal("transaction hash must not depend on the signature bytes")
	}
}

func TestTransactionHashBuildTwiceStable(t *testing.T) {
	tx1 := &Transaction{Call: Call{Module: "system", Method: "init", Params: []byte("x")}}
	tx2 := &Transaction{Call: Call{Module: "system", Method: "init", Params: []byte("x")}}
	if TransactionHash(hashFn, tx1) != TransactionHash(hashFn, tx2) {
		t.Fatal("expected stable hash for the same transaction value")
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := &Header{
		Number:              5,
		Timestamp:           123456,
		PayloadExecutionGap: 1,
	}
	h.ParentHash[0] = 0xaa
	h.MetaStateRoot[1] = 0xbb
	enc := EncodeHeader(h)
	got, err := DecodeHeader(enc)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *h {
		t.Fatal("header round trip mismatch")
	}
}

func TestHashListRoundTrip(t *testing.T) {
	hashes := []Hash{{1}, {2}, {3}}
	enc := EncodeHashes(hashes)
	got, err := DecodeHashes(enc)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(hashes) {
		t.Fatalf("length mismatch: %d vs %d", len(got), len(hashes))
	}
	for i := range hashes {
		if got[i] != hashes[i] {
			t.Fatalf("hash %d mismatch", i)
		}
	}
}

func TestExecutedRoundTrip(t *testing.T) {
	e := &Executed{PayloadExecutedStateRoot: Hash{7, 7, 7}}
	enc := EncodeExecuted(e)
	got, err := DecodeExecuted(enc)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *e {
		t.Fatal("executed round trip mismatch")
	}
}
