package seal

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gracehamilton0/secret-picture/internal/config"
	"github.com/gracehamilton0/secret-picture/internal/market"
	"github.com/gracehamilton0/secret-picture/internal/testutil"
)

func newTestAgeSealer(t *testing.T) *AgeSealer {
	t.Helper()
	dir := t.TempDir()
	cfg := config.SealerConfig{
		Type:          "age",
		RecipientPath: filepath.Join(dir, "keys", "authority.pub"),
		IdentityPath:  filepath.Join(dir, "keys", "authority.key"),
		StoreDir:      filepath.Join(dir, "sealed"),
	}
	return NewAgeSealer(cfg, testutil.NewStubIDGenerator())
}

func TestAgeSealer_IsConfigured_BeforeSetup(t *testing.T) {
	t.Parallel()
	s := newTestAgeSealer(t)
	if s.IsConfigured() {
		t.Error("IsConfigured() = true before Setup, want false")
	}
}

func TestAgeSealer_Setup_IsConfigured(t *testing.T) {
	t.Parallel()
	s := newTestAgeSealer(t)

	if err := s.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if !s.IsConfigured() {
		t.Error("IsConfigured() = false after Setup, want true")
	}
}

func TestAgeSealer_SealGrantUnseal(t *testing.T) {
	t.Parallel()

	s := newTestAgeSealer(t)
	if err := s.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	value := []byte("the identity secret")
	handle, err := s.Seal(value)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if err := s.GrantView(handle, "alice"); err != nil {
		t.Fatalf("GrantView() error = %v", err)
	}

	if err := s.Unlock("test-passphrase"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	got, err := s.Unseal(handle, "alice")
	if err != nil {
		t.Fatalf("Unseal() error = %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Unseal() = %q, want %q", got, value)
	}
}

func TestAgeSealer_Unseal_WithoutGrant(t *testing.T) {
	t.Parallel()

	s := newTestAgeSealer(t)
	if err := s.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := s.Unlock("test-passphrase"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	handle, err := s.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if _, err := s.Unseal(handle, "mallory"); !errors.Is(err, market.ErrNotAuthorized) {
		t.Errorf("Unseal(no grant) error = %v, want ErrNotAuthorized", err)
	}
}

func TestAgeSealer_Unseal_WhileLocked(t *testing.T) {
	t.Parallel()

	s := newTestAgeSealer(t)
	if err := s.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	handle, err := s.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if err := s.GrantView(handle, "alice"); err != nil {
		t.Fatalf("GrantView() error = %v", err)
	}

	if _, err := s.Unseal(handle, "alice"); err == nil || !strings.Contains(err.Error(), "locked") {
		t.Errorf("Unseal() while locked error = %v, want locked error", err)
	}
}

func TestAgeSealer_Unlock_WrongPassphrase(t *testing.T) {
	t.Parallel()

	s := newTestAgeSealer(t)
	if err := s.Setup("correct-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if err := s.Unlock("wrong-passphrase"); err == nil {
		t.Error("Unlock(wrong passphrase) succeeded, want error")
	}
}

func TestAgeSealer_UnknownHandle(t *testing.T) {
	t.Parallel()

	s := newTestAgeSealer(t)
	if err := s.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := s.Unlock("test-passphrase"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	if err := s.GrantView("missing", "alice"); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("GrantView(unknown handle) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Unseal("missing", "alice"); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("Unseal(unknown handle) error = %v, want ErrNotFound", err)
	}
}

func TestAgeSealer_GrantView_Idempotent(t *testing.T) {
	t.Parallel()

	s := newTestAgeSealer(t)
	if err := s.Setup("test-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	handle, err := s.Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if err := s.GrantView(handle, "alice"); err != nil {
		t.Fatalf("GrantView() error = %v", err)
	}
	if err := s.GrantView(handle, "alice"); err != nil {
		t.Fatalf("repeated GrantView() error = %v", err)
	}

	grants, err := s.readGrants(handle)
	if err != nil {
		t.Fatalf("readGrants() error = %v", err)
	}
	if len(grants) != 1 {
		t.Errorf("grant list has %d entries after repeated grant, want 1", len(grants))
	}
}
