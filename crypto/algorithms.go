// Package crypto exposes the cryptographic capabilities the chain needs
// behind named, closed algorithm variants rather than process-wide
// singletons: blake2b_256 / blake2b_160 for hashing and addresses, and
// ed25519 for witness signatures.
package crypto

import (
	"crypto/ed25519"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// HashAlgo names a supported hash algorithm.
type HashAlgo string

const (
	HashBlake2b256 HashAlgo = "blake2b_256"
)

// AddressAlgo names a supported address-derivation algorithm.
type AddressAlgo string

const (
	AddressBlake2b160 AddressAlgo = "blake2b_160"
)

// DSAAlgo names a supported digital signature algorithm.
type DSAAlgo string

const (
	DSAEd25519 DSAAlgo = "ed25519"
)

// Algorithms is the resolved, immutable set of algorithms a chain instance
// uses for hashing, addressing, and signing. It is created once from the
// spec's [basic] table and passed around by shared reference; there are no
// package-level algorithm singletons.
type Algorithms struct {
	Hash    HashAlgo
	Address AddressAlgo
	DSA     DSAAlgo
}

// ResolveAlgorithms validates the named algorithms and returns a closed
// Algorithms handle. Unknown names are rejected immediately: every node in
// a network must agree on bit-identical algorithm selection.
func ResolveAlgorithms(hash, address, dsa string) (*Algorithms, error) {
	h := HashAlgo(hash)
	switch h {
	case HashBlake2b256:
	default:
		return nil, fmt.Errorf("crypto: unknown hash algorithm %q", hash)
	}
	a := AddressAlgo(address)
	switch a {
	case AddressBlake2b160:
	default:
		return nil, fmt.Errorf("crypto: unknown address algorithm %q", address)
	}
	d := DSAAlgo(dsa)
	switch d {
	case DSAEd25519:
	default:
		return nil, fmt.Errorf("crypto: unknown dsa algorithm %q", dsa)
	}
	return &Algorithms{Hash: h, Address: a, DSA: d}, nil
}

// HashLen returns the byte width of a.Hash.
func (a *Algorithms) HashLen() int {
	switch a.Hash {
	case HashBlake2b256:
		return 32
	default:
		return 0
	}
}

// AddressLen returns the byte width of a.Address.
func (a *Algorithms) AddressLen() int {
	switch a.Address {
	case AddressBlake2b160:
		return 20
	default:
		return 0
	}
}

// Digest hashes data with the configured hash algorithm.
func (a *Algorithms) Digest(data []byte) ([]byte, error) {
	switch a.Hash {
	case HashBlake2b256:
		sum := blake2b.Sum256(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("crypto: unknown hash algorithm %q", a.Hash)
	}
}

// DeriveAddress derives an address from a public key with the configured
// address algorithm.
func (a *Algorithms) DeriveAddress(publicKey []byte) ([]byte, error) {
	switch a.Address {
	case AddressBlake2b160:
		full, err := blake2b.New(20, nil)
		if err != nil {
			return nil, err
		}
		_, _ = full.Write(publicKey)
		return full.Sum(nil), nil
	default:
		return nil, fmt.Errorf("crypto: unknown address algorithm %q", a.Address)
	}
}

// Verify checks a signature over digest under the configured DSA.
func (a *Algorithms) Verify(publicKey, signature, digest []byte) (bool, error) {
	switch a.DSA {
	case DSAEd25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return false, fmt.Errorf("crypto: invalid ed25519 public key length %d", len(publicKey))
		}
		if len(signature) != ed25519.SignatureSize {
			return false, fmt.Errorf("crypto: invalid ed25519 signature length %d", len(signature))
		}
		return ed25519.Verify(ed25519.PublicKey(publicKey), digest, signature), nil
	default:
		return false, fmt.Errorf("crypto: unknown dsa algorithm %q", a.DSA)
	}
}

// Sign produces a signature over digest with secretKey under the
// configured DSA. Used by clients building witnessed transactions, not by
// the executor (which only ever verifies).
func (a *Algorithms) Sign(secretKey, digest []byte) ([]byte, error) {
	switch a.DSA {
	case DSAEd25519:
		if len(secretKey) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("crypto: invalid ed25519 secret key length %d", len(secretKey))
		}
		return ed25519.Sign(ed25519.PrivateKey(secretKey), digest), nil
	default:
		return nil, fmt.Errorf("crypto: unknown dsa algorithm %q", a.DSA)
	}
}

// KeyPairFromSecretKey rebuilds a key pair from stored secret key
// material under the configured DSA. For ed25519 the secret is the
// 32-byte seed; the returned secret is the expanded 64-byte private key
// Sign expects.
func (a *Algorithms) KeyPairFromSecretKey(secret []byte) (public, private []byte, err error) {
	switch a.DSA {
	case DSAEd25519:
		if len(secret) != ed25519.SeedSize {
			return nil, nil, fmt.Errorf("crypto: invalid ed25519 secret key length %d", len(secret))
		}
		priv := ed25519.NewKeyFromSeed(secret)
		pub := priv.Public().(ed25519.PublicKey)
		return append([]byte(nil), pub...), append([]byte(nil), priv...), nil
	default:
		return nil, nil, fmt.Errorf("crypto: unknown dsa algorithm %q", a.DSA)
	}
}

// GenerateKeyPair creates a fresh secret/public key pair under the
// configured DSA, for use by the keygen CLI command and tests.
func (a *Algorithms) GenerateKeyPair() (public, secret []byte, err error) {
	switch a.DSA {
	case DSAEd25519:
		pub, sec, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, nil, err
		}
		return []byte(pub), []byte(sec), nil
	default:
		return nil, nil, fmt.Errorf("crypto: unknown dsa algorithm %q", a.DSA)
	}
}
