package credentials

import (
	"sync"

	"github.com/lumen-io/client/internal/models"
)

// MemoryStore keeps credentials for the lifetime of the process only.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]string),
	}
}

func (m *MemoryStore) Get(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[name]
	if !ok || len(value) == 0 {
		return "", false
	}
	return value, true
}

func (m *MemoryStore) Set(name string, value string, _ Options) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = value
	return nil
}

func (m *MemoryStore) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, name)
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range models.SessionArtefacts() {
		delete(m.entries, name)
	}
	return nil
}
