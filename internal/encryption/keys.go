package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

// SecretSize is the identity secret size in bytes.
const SecretSize = 32

// Secret is a per-item identity secret. It exists in plaintext only inside
// the creator's process at listing time and inside an authorized requester's
// process after release; everywhere durable it is sealed.
type Secret [SecretSize]byte

// NewIdentitySecret generates a fresh identity secret. Each listed item gets
// its own; secrets are never reused across items.
func NewIdentitySecret() (Secret, error) {
	var s Secret
	if _, err := io.ReadFull(rand.Reader, s[:]); err != nil {
		return Secret{}, fmt.Errorf("generating identity secret: %w", err)
	}
	return s, nil
}

// SecretFromBytes converts a released raw secret back into a Secret.
// Fails with ErrMalformedInput on a wrong-sized value.
func SecretFromBytes(raw []byte) (Secret, error) {
	if len(raw) != SecretSize {
		return Secret{}, fmt.Errorf("%w: secret is %d bytes, want %d", ErrMalformedInput, len(raw), SecretSize)
	}
	var s Secret
	copy(s[:], raw)
	return s, nil
}

// DeriveKey derives the content encryption key from an identity secret:
// SHA-256 of the secret's canonical 32-byte encoding. The derivation is
// deterministic and one-way, so only the secret needs to be sealed and
// distributed — the key is recomputed on demand, and a future derivation
// upgrade does not require re-sealing old secrets.
func DeriveKey(secret Secret) Key {
	return Key(sha256.Sum256(secret[:]))
}
