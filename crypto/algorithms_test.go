package crypto

import "testing"

func TestResolveAlgorithmsRejectsUnknown(t *testing.T) {
	if _, err := ResolveAlgorithms("sha256", "blake2b_160", "ed25519"); err == nil {
		t.Fatal("expected error for unknown hash algorithm")
	}
	if _, err := ResolveAlgorithms("blake2b_256", "sha1_160", "ed25519"); err == nil {
		t.Fatal("expected error for unknown address algorithm")
	}
	if _, err := ResolveAlgorithms("blake2b_256", "blake2b_160", "ecdsa"); err == nil {
		t.Fatal("expected error for unknown dsa algorithm")
	}
}

func TestAlgorithmsSignVerifyRoundTrip(t *testing.T) {
	alg, err := ResolveAlgorithms("blake2b_256", "blake2b_160", "ed25519")
	if err != nil {
		t.Fatal(err)
	}
	pub, sec, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	digest, err := alg.Digest([]byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	sig, err := alg.Sign(sec, digest)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := alg.Verify(pub, sig, digest)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
	if ok, _ := alg.Verify(pub, sig, []byte("tampered-digest-32-bytes-long!!")); ok {
		t.Fatal("expected signature over different digest to fail")
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	alg, err := ResolveAlgorithms("blake2b_256", "blake2b_160", "ed25519")
	if err != nil {
		t.Fatal(err)
	}
	pub, _, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	a1, err := alg.DeriveAddress(pub)
	if err != nil {
		t.Fatal(err)
	}
	a2, err := alg.DeriveAddress(pub)
	if err != nil {
		t.Fatal(err)
	}
	if len(a1) != 20 {
		t.Fatalf("expected 20-byte address, got %d", len(a1))
	}
	if string(a1) != string(a2) {
		t.Fatal("address derivation must be deterministic")
	}
}

func TestKeystoreWrapUnwrapRoundTrip(t *testing.T) {
	alg, err := ResolveAlgorithms("blake2b_256", "blake2b_160", "ed25519")
	if err != nil {
		t.Fatal(err)
	}
	pub, sec, err := alg.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	ks, err := WrapSecretKey(DSAEd25519, pub, sec, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnwrapSecretKey(ks, "correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(sec) {
		t.Fatal("unwrapped secret key mismatch")
	}
	if _, err := UnwrapSecretKey(ks, "wrong passphrase"); err == nil {
		t.Fatal("expected wrong passphrase to fail")
	}
}

func TestRandomChainIDLength(t *testing.T) {
	id, err := RandomChainID()
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 14 {
		t.Fatalf("expected 14-char chain id, got %d (%q)", len(id), id)
	}
}
