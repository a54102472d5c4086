package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/gracehamilton0/secret-picture/internal/identity"
	"github.com/gracehamilton0/secret-picture/internal/market"
)

// NewTestSigner generates a throwaway ed25519 identity and returns its signer
// and principal ID.
func NewTestSigner(t *testing.T) (market.Signer, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key pair: %v", err)
	}
	return identity.NewKeySigner(priv), market.PrincipalID(pub)
}
