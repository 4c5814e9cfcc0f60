package store

import (
	"context"
	"slices"
	"sync"

	"github.com/go-training/oauth-loopback/pkg/core"
)

// MemoryStore implements core.CredentialStore with a slice behind a mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	records []core.AccountRecord
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore(records ...core.AccountRecord) *MemoryStore {
	return &MemoryStore{records: slices.Clone(records)}
}

// Append adds record at the end of the list.
func (m *MemoryStore) Append(ctx context.Context, record core.AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, record)
	return nil
}

// List returns a copy of the stored records.
func (m *MemoryStore) List(ctx context.Context) ([]core.AccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.records), nil
}
