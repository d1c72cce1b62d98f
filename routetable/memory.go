package routetable

import (
	"context"
	"strconv"
	"sync"
)

// MemoryProvider is an in-process Provider used by tests and local dev. It
// enforces the same size limits and versioning semantics as the real store.
type MemoryProvider struct {
	mu      sync.Mutex
	values  map[string]string
	version int
	limits  Limits
}

func NewMemoryProvider(limits Limits) *MemoryProvider {
	return &MemoryProvider{
		values: map[string]string{},
		limits: limits,
	}
}

func (m *MemoryProvider) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MemoryProvider) Limits() Limits {
	return m.limits
}

func (m *MemoryProvider) Version(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strconv.Itoa(m.version), nil
}

func (m *MemoryProvider) Apply(_ context.Context, version string, puts map[string]string, deletes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if version != strconv.Itoa(m.version) {
		return ErrVersionConflict
	}
	for k, v := range puts {
		m.values[k] = v
	}
	for _, k := range deletes {
		delete(m.values, k)
	}
	m.version++
	return nil
}

// Len reports how many keys the provider holds.
func (m *MemoryProvider) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// Bump advances the store revision without changing data, simulating a
// concurrent writer.
func (m *MemoryProvider) Bump() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.version++
}
