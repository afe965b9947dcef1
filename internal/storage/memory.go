package storage

import "sync"

// MemoryStore is an in-memory Store used in tests
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]string

	// FailPut, when set, is returned from every Put call
	FailPut error
	// FailGet, when set, is returned from every Get call
	FailGet error
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

// Get returns the value for key
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailGet != nil {
		return "", false, m.FailGet
	}
	v, ok := m.slots[key]
	return v, ok, nil
}

// Put replaces the value for key
func (m *MemoryStore) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailPut != nil {
		return m.FailPut
	}
	m.slots[key] = value
	return nil
}
