// Package encryption implements the content cipher and key derivation.
// Content is encrypted under a per-item symmetric key with AES-256-GCM; the
// key is derived from a per-item identity secret that is generated once,
// sealed for distribution, and never reused across items.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the symmetric key size in bytes (AES-256).
	KeySize = 32

	// NonceSize is the GCM nonce size in bytes.
	NonceSize = 12

	// TagSize is the GCM authentication tag size in bytes.
	TagSize = 16
)

// ErrIntegrity marks a failed authentication tag during decryption: wrong
// key, corrupted ciphertext, or tampering. Retrying with the same inputs
// cannot change the outcome.
var ErrIntegrity = errors.New("ciphertext integrity check failed")

// ErrMalformedInput marks input too short to contain a nonce and
// authentication tag.
var ErrMalformedInput = errors.New("malformed ciphertext package")

// Key is a 256-bit content encryption key.
type Key [KeySize]byte

// Encrypt encrypts plaintext under key with AES-256-GCM using a fresh random
// nonce. The returned package is nonce || ciphertext || tag.
func Encrypt(plaintext []byte, key Key) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends ciphertext||tag to the nonce, producing the full package.
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a package produced by Encrypt. It fails with
// ErrMalformedInput if the package cannot contain a nonce and tag, and with
// ErrIntegrity if the authentication tag does not verify (wrong key,
// corruption, or tampering). It never returns partial plaintext.
func Decrypt(pkg []byte, key Key) ([]byte, error) {
	if len(pkg) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: package is %d bytes, minimum %d", ErrMalformedInput, len(pkg), NonceSize+TagSize)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce, ciphertext := pkg[:NonceSize], pkg[NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return plaintext, nil
}

func newAEAD(key Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}
