package blob

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gracehamilton0/secret-picture/internal/market"
)

func TestMemoryStore_PutFetch(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore("test")
	data := []byte("ciphertext package bytes")

	if err := s.Put("handle-1", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var out bytes.Buffer
	if err := s.Fetch("handle-1", &out); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Errorf("Fetch() = %q, want %q", out.Bytes(), data)
	}
}

func TestMemoryStore_Fetch_Unknown(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore("test")
	var out bytes.Buffer
	if err := s.Fetch("missing", &out); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("Fetch(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStore_PutFetch(t *testing.T) {
	t.Parallel()

	s, err := NewFileSystemStore("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	data := []byte("ciphertext package bytes")
	if err := s.Put("handle-1", bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var out bytes.Buffer
	if err := s.Fetch("handle-1", &out); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !bytes.Equal(out.Bytes(), data) {
		t.Errorf("Fetch() = %q, want %q", out.Bytes(), data)
	}
}

func TestFileSystemStore_Put_Idempotent(t *testing.T) {
	t.Parallel()

	s, err := NewFileSystemStore("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	data := "content-addressed bytes"
	if err := s.Put("h", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("first Put() error = %v", err)
	}
	if err := s.Put("h", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("repeated Put() error = %v", err)
	}

	var out bytes.Buffer
	if err := s.Fetch("h", &out); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if out.String() != data {
		t.Errorf("Fetch() = %q, want %q", out.String(), data)
	}
}

func TestFileSystemStore_Fetch_Unknown(t *testing.T) {
	t.Parallel()

	s, err := NewFileSystemStore("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	var out bytes.Buffer
	if err := s.Fetch("missing", &out); !errors.Is(err, market.ErrNotFound) {
		t.Errorf("Fetch(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestFileSystemStore_ValidateSetup(t *testing.T) {
	t.Parallel()

	s, err := NewFileSystemStore("local", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}
	if err := s.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}
