package seal

import (
	"bytes"
	"errors"
	"testing"

	"github.com/gracehamilton0/secret-picture/internal/market"
	"github.com/gracehamilton0/secret-picture/internal/testutil"
)

func TestMemorySealer_SealGrantUnseal(t *testing.T) {
	t.Parallel()

	s := NewMemorySealer(testutil.NewStubIDGenerator())

	value := []byte("the identity secret")
	handle, err := s.Seal(value)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if _, err := s.Unseal(handle, "alice"); !errors.Is(err, market.ErrNotAuthorized) {
		t.Fatalf("Unseal() before grant error = %v, want ErrNotAuthorized", err)
	}

	if err := s.GrantView(handle, "alice"); err != nil {
		t.Fatalf("GrantView() error = %v", err)
	}

	got, err := s.Unseal(handle, "alice")
	if err != nil {
		t.Fatalf("Unseal() error = %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Unseal() = %q, want %q", got, value)
	}
}

func TestMemorySealer_UnknownHandle(t *testing.T) {
	t.Parallel()

	s := NewMemorySealer(nil)

	if err := s.GrantView("missing", "alice"); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("GrantView(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Unseal("missing", "alice"); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("Unseal(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestMemorySealer_IsolatedCopies(t *testing.T) {
	t.Parallel()

	s := NewMemorySealer(nil)

	value := []byte("mutable")
	handle, err := s.Seal(value)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if err := s.GrantView(handle, "alice"); err != nil {
		t.Fatalf("GrantView() error = %v", err)
	}

	value[0] = 'X'

	got, err := s.Unseal(handle, "alice")
	if err != nil {
		t.Fatalf("Unseal() error = %v", err)
	}
	if string(got) != "mutable" {
		t.Errorf("sealed value affected by caller mutation: %q", got)
	}
}
