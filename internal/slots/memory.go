package slots

import (
	"context"
	"sync"
)

// Memory is a process-local slot backend used by tests and --backend memory.
type Memory struct {
	mu     sync.Mutex
	data   map[string][]byte
	writes int
	// WriteErr, when set, is returned by every Write.
	WriteErr error
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Read returns a copy of the stored bytes.
func (m *Memory) Read(_ context.Context, name string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Write replaces the stored bytes.
func (m *Memory) Write(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.data[name] = append([]byte(nil), data...)
	m.writes++
	return nil
}

// Put seeds a slot without counting it as a write.
func (m *Memory) Put(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = append([]byte(nil), data...)
}

// Writes returns how many successful writes have happened.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
