// Package seal wraps PatchBytes in an authenticated envelope for transport
// to external, less-trusted patch writers over an untrusted channel.
//
// Keys are derived per-deployment with HKDF-SHA256 rather than password
// stretched with PBKDF2/Argon2: a sealed patch is short-lived transport
// data, not data at rest, so there is no key-rotation or expiry lifecycle
// to manage — one secret, one derived key, one AEAD open/seal pair.
package seal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// versionHeaderSize is the width of the envelope's leading version tag.
const versionHeaderSize = 2

// envelopeVersion is the only version this package currently emits.
const envelopeVersion = uint16(1)

// ErrInvalidEnvelope is returned by Open when buf is too short to contain
// a version tag and nonce, or its version tag is unrecognized.
var ErrInvalidEnvelope = errors.New("seal: invalid envelope")

// DeriveKey expands secret (a per-deployment shared value, not a password)
// into a 32-byte ChaCha20-Poly1305 key via HKDF-SHA256 with no salt and info
// as the HKDF context, so distinct purposes (e.g. different patch-writer tenants) derive distinct
// keys from the same secret.
func DeriveKey(secret, info []byte) ([32]byte, error) {
	var key [32]byte
	r := hkdf.New(sha256.New, secret, nil, info)
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// Sealer seals and opens PatchBytes envelopes under one derived key.
type Sealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewSealer constructs a Sealer from a 32-byte key, typically produced by
// DeriveKey.
func NewSealer(key [32]byte) (*Sealer, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext (canonical PatchBytes, or any payload) into an
// envelope: a 2-byte LE version tag, a random nonce, and the AEAD
// ciphertext. aad is bound to the ciphertext but not encrypted — callers
// typically pass the patch_digest so a sealed patch cannot be replayed
// against a different commit.
func (s *Sealer) Seal(plaintext, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, versionHeaderSize, versionHeaderSize+len(nonce)+len(plaintext)+chacha20poly1305.Overhead)
	binary.LittleEndian.PutUint16(out, envelopeVersion)
	out = append(out, nonce...)
	out = s.aead.Seal(out, nonce, plaintext, aad)
	return out, nil
}

// Open authenticates and decrypts an envelope produced by Seal. aad must
// match the value passed to Seal or authentication fails.
func (s *Sealer) Open(envelope, aad []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(envelope) < versionHeaderSize+nonceSize {
		return nil, ErrInvalidEnvelope
	}
	if binary.LittleEndian.Uint16(envelope) != envelopeVersion {
		return nil, ErrInvalidEnvelope
	}

	nonce := envelope[versionHeaderSize : versionHeaderSize+nonceSize]
	ciphertext := envelope[versionHeaderSize+nonceSize:]
	return s.aead.Open(nil, nonce, ciphertext, aad)
}
