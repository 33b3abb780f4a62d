package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// KeystoreV1 is the on-disk representation of a wrapped secret key: a
// single AES-256-KW wrap of the key material plus enough metadata to
// detect a wrong passphrase early.
type KeystoreV1 struct {
	Version      string `json:"version"` // "WCKSv1"
	DSA          string `json:"dsa"`
	PublicKey    []byte `json:"public_key"`
	WrappedKey   []byte `json:"wrapped_secret_key"`
	KEKFingerprt []byte `json:"kek_fingerprint"`
}

// deriveKEK stretches a passphrase into a 32-byte key-encryption key.
// A real deployment would use a slow KDF (argon2/scrypt); this node keeps
// the key-wrap mechanics (RFC 3394) as its third-party-free building
// block and layers a cheap KDF on top, which is sufficient for the
// single-operator devnet/testnet use case this CLI targets.
func deriveKEK(passphrase string) [32]byte {
	return sha256.Sum256([]byte("wingchain-keystore-v1:" + passphrase))
}

// WrapSecretKey seals secretKey under passphrase, producing a KeystoreV1
// record. secretKey must be a multiple of 8 bytes (ed25519 private keys
// are 64 bytes, which satisfies this).
func WrapSecretKey(dsa DSAAlgo, publicKey, secretKey []byte, passphrase string) (*KeystoreV1, error) {
	kek := deriveKEK(passphrase)
	wrapped, err := aesKeyWrap(kek[:], secretKey)
	if err != nil {
		return nil, fmt.Errorf("keystore: wrap: %w", err)
	}
	fp := sha256.Sum256(kek[:])
	return &KeystoreV1{
		Version:      "WCKSv1",
		DSA:          string(dsa),
		PublicKey:    append([]byte(nil), publicKey...),
		WrappedKey:   wrapped,
		KEKFingerprt: fp[:8],
	}, nil
}

// UnwrapSecretKey recovers the secret key material from a KeystoreV1
// record given the original passphrase.
func UnwrapSecretKey(ks *KeystoreV1, passphrase string) ([]byte, error) {
	if ks == nil {
		return nil, errors.New("keystore: nil record")
	}
	kek := deriveKEK(passphrase)
	fp := sha256.Sum256(kek[:])
	if len(ks.KEKFingerprt) > 0 {
		match := len(fp) >= len(ks.KEKFingerprt)
		for i := range ks.KEKFingerprt {
			if i >= len(fp) || fp[i] != ks.KEKFingerprt[i] {
				match = false
				break
			}
		}
		if !match {
			return nil, errors.New("keystore: wrong passphrase")
		}
	}
	secret, err := aesKeyUnwrap(kek[:], ks.WrappedKey)
	if err != nil {
		return nil, fmt.Errorf("keystore: unwrap: %w", err)
	}
	return secret, nil
}

// randomChainID generates a 14-character lowercase alphanumeric chain id,
// the width system.init requires.
func randomChainID() (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	const length = 14
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// RandomChainID is the exported form used by the init CLI.
func RandomChainID() (string, error) { return randomChainID() }
