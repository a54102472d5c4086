// Package blob provides implementations of the external content-addressed
// blob store. Handles are SHA-256 hex digests of the ciphertext package; the
// store only ever holds ciphertext.
package blob

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/gracehamilton0/secret-picture/internal/market"
)

// MemoryStore is an in-memory implementation of the BlobStore interface,
// useful for testing. This implementation is safe for concurrent use.
type MemoryStore struct {
	name    string
	mu      sync.RWMutex
	content map[string][]byte // handle -> content
}

var _ market.BlobStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory blob store with the given name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{
		name:    name,
		content: make(map[string][]byte),
	}
}

// Put stores content identified by its handle.
func (m *MemoryStore) Put(handle string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: storing the same handle multiple times is safe
	m.content[handle] = data
	return nil
}

// Fetch retrieves content by handle and writes it to w.
func (m *MemoryStore) Fetch(handle string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[handle]
	if !ok {
		return fmt.Errorf("%w: blob %s", market.ErrNotFound, handle)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup() error {
	return nil
}
