package identity

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/gracehamilton0/secret-picture/internal/config"
	"github.com/gracehamilton0/secret-picture/internal/market"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	cfg := config.IdentityConfig{
		PublicKeyPath:  filepath.Join(dir, "keys", "identity.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "identity.key"),
	}
	return NewManager(cfg)
}

func TestManager_IsConfigured_BeforeSetup(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)
	if m.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
}

func TestManager_SetupUnlock(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	if err := m.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !m.IsConfigured() {
		t.Fatal("IsConfigured() = false after Setup, want true")
	}

	signer, err := m.Unlock("test-passphrase")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	// The unlocked signer must produce signatures the stored public key
	// verifies, and its principal must match the stored one.
	principal, err := m.PrincipalID()
	if err != nil {
		t.Fatalf("PrincipalID() error = %v", err)
	}
	if got := market.PrincipalID(signer.Public()); got != principal {
		t.Errorf("signer principal = %s, stored principal = %s", got, principal)
	}
}

func TestManager_Unlock_WrongPassphrase(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	if err := m.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if _, err := m.Unlock("wrong-passphrase"); err == nil {
		t.Error("Unlock(wrong passphrase) succeeded, want error")
	}
}

func TestKeySigner_SignVerify(t *testing.T) {
	t.Parallel()
	m := newTestManager(t)

	if err := m.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	signer, err := m.Unlock("test-passphrase")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	msg := []byte("message to sign")
	sig, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if !ed25519.Verify(signer.Public(), msg, sig) {
		t.Error("signature does not verify against signer's public key")
	}
}
