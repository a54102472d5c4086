package seal

import (
	"fmt"
	"sync"

	"github.com/gracehamilton0/secret-picture/internal/market"
)

// MemorySealer is an in-memory implementation of the Sealer interface,
// useful for testing. Values are held as-is; the access-check contract is
// preserved even though nothing is actually encrypted.
// This implementation is safe for concurrent use.
type MemorySealer struct {
	idgen market.IDGenerator

	mu     sync.RWMutex
	values map[string][]byte
	grants map[string]map[string]bool
}

var _ market.Sealer = (*MemorySealer)(nil)

// NewMemorySealer creates a new in-memory sealer.
func NewMemorySealer(idgen market.IDGenerator) *MemorySealer {
	if idgen == nil {
		idgen = market.UUIDGenerator{}
	}
	return &MemorySealer{
		idgen:  idgen,
		values: make(map[string][]byte),
		grants: make(map[string]map[string]bool),
	}
}

// Setup is a no-op: the memory sealer has no key material.
func (m *MemorySealer) Setup(string) error { return nil }

// Unlock is a no-op: the memory sealer is always unlocked.
func (m *MemorySealer) Unlock(string) error { return nil }

// IsConfigured always returns true for the memory sealer.
func (m *MemorySealer) IsConfigured() bool { return true }

// Seal stores raw under a fresh handle with an empty grant set.
func (m *MemorySealer) Seal(raw []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle := m.idgen.New()
	value := make([]byte, len(raw))
	copy(value, raw)
	m.values[handle] = value
	m.grants[handle] = make(map[string]bool)
	return handle, nil
}

// GrantView permits principal to later unseal the value. Idempotent.
func (m *MemorySealer) GrantView(handle, principal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	grants, ok := m.grants[handle]
	if !ok {
		return fmt.Errorf("%w: sealed handle %s", market.ErrNotFound, handle)
	}
	grants[principal] = true
	return nil
}

// Unseal returns the value for a granted principal.
func (m *MemorySealer) Unseal(handle, principal string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grants, ok := m.grants[handle]
	if !ok {
		return nil, fmt.Errorf("%w: sealed handle %s", market.ErrNotFound, handle)
	}
	if !grants[principal] {
		return nil, fmt.Errorf("%w: principal has no view grant for handle %s", market.ErrNotAuthorized, handle)
	}

	value := m.values[handle]
	raw := make([]byte, len(value))
	copy(raw, value)
	return raw, nil
}
