// Package keys provides ed25519 key pairs and signatures with the base58 text
// encoding used by wallets and account records.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Text prefixes of encoded keys and signatures.
const (
	PublicKeyPrefix = "EOS"
	SignaturePrefix = "SIG_ED_"
)

const checksumLen = 4

// ErrInvalidKey is returned when a key or signature cannot be decoded.
var ErrInvalidKey = errors.New("invalid key")

// PublicKey is a compressed edwards25519 point.
type PublicKey [ed25519.PublicKeySize]byte

// PrivateKey is an ed25519 seed.
type PrivateKey [ed25519.SeedSize]byte

// Signature is a detached ed25519 signature.
type Signature [ed25519.SignatureSize]byte

// KeyPair holds a private key and its derived public key.
type KeyPair struct {
	Private PrivateKey `json:"private_key"`
	Public  PublicKey  `json:"public_key"`
}

// Generate creates a new key pair reading entropy from r.
// A nil reader uses crypto/rand.
func Generate(r io.Reader) (KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	var seed PrivateKey
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return KeyPair{}, fmt.Errorf("read key entropy: %w", err)
	}
	return KeyPair{Private: seed, Public: seed.Public()}, nil
}

// FromPhrase derives a deterministic key pair from a phrase. It exists for
// development genesis keys and tests; never use it for real funds.
func FromPhrase(phrase string) KeyPair {
	seed := PrivateKey(sha256.Sum256([]byte(phrase)))
	return KeyPair{Private: seed, Public: seed.Public()}
}

// Public derives the public key: A = [s]B where s is the clamped lower half
// of SHA-512(seed).
func (k PrivateKey) Public() PublicKey {
	h := sha512.Sum512(k[:])
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		// SetBytesWithClamping only fails on a wrong input length.
		panic(err)
	}
	var pub PublicKey
	copy(pub[:], new(edwards25519.Point).ScalarBaseMult(s).Bytes())
	return pub
}

// Sign signs message with the private key.
func (k PrivateKey) Sign(message []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(ed25519.NewKeyFromSeed(k[:]), message))
	return sig
}

// Verify reports whether sig is a valid signature of message by k.
func (k PublicKey) Verify(message []byte, sig Signature) bool {
	return ed25519.Verify(k[:], message, sig[:])
}

// IsZero reports whether k is the zero value.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// Compare orders public keys bytewise.
func (k PublicKey) Compare(o PublicKey) int {
	return bytes.Compare(k[:], o[:])
}

func (k PublicKey) String() string {
	return PublicKeyPrefix + encodeChecked(k[:])
}

func (k PrivateKey) String() string {
	return encodeChecked(k[:])
}

func (s Signature) String() string {
	return SignaturePrefix + encodeChecked(s[:])
}

// ParsePublicKey decodes an "EOS..." public key and checks that it is a valid
// curve point.
func ParsePublicKey(s string) (PublicKey, error) {
	var k PublicKey
	if !strings.HasPrefix(s, PublicKeyPrefix) {
		return k, fmt.Errorf("%w: public key must start with %s", ErrInvalidKey, PublicKeyPrefix)
	}
	if err := decodeChecked(strings.TrimPrefix(s, PublicKeyPrefix), k[:]); err != nil {
		return k, err
	}
	if _, err := new(edwards25519.Point).SetBytes(k[:]); err != nil {
		return k, fmt.Errorf("%w: not a curve point", ErrInvalidKey)
	}
	return k, nil
}

// ParsePrivateKey decodes a base58 private key.
func ParsePrivateKey(s string) (PrivateKey, error) {
	var k PrivateKey
	err := decodeChecked(s, k[:])
	return k, err
}

// ParseSignature decodes a "SIG_ED_..." signature.
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	if !strings.HasPrefix(s, SignaturePrefix) {
		return sig, fmt.Errorf("%w: signature must start with %s", ErrInvalidKey, SignaturePrefix)
	}
	err := decodeChecked(strings.TrimPrefix(s, SignaturePrefix), sig[:])
	return sig, err
}

func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PublicKey) UnmarshalText(b []byte) error {
	v, err := ParsePublicKey(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (k PrivateKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PrivateKey) UnmarshalText(b []byte) error {
	v, err := ParsePrivateKey(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func (s Signature) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Signature) UnmarshalText(b []byte) error {
	v, err := ParseSignature(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// encodeChecked appends the first four bytes of SHA-256(data) and base58 encodes.
func encodeChecked(data []byte) string {
	sum := sha256.Sum256(data)
	buf := make([]byte, 0, len(data)+checksumLen)
	buf = append(buf, data...)
	buf = append(buf, sum[:checksumLen]...)
	return base58.Encode(buf)
}

func decodeChecked(s string, dst []byte) error {
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != len(dst)+checksumLen {
		return fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, len(dst)+checksumLen, len(raw))
	}
	data, check := raw[:len(dst)], raw[len(dst):]
	sum := sha256.Sum256(data)
	if !bytes.Equal(sum[:checksumLen], check) {
		return fmt.Errorf("%w: checksum mismatch", ErrInvalidKey)
	}
	copy(dst, data)
	return nil
}
