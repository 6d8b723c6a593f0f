package globals

import (
	"sync"

	"github.com/zclconf/go-cty/cty"
)

// Memory is the default in-process cache. The lock only guards the map
// bookkeeping; evaluation never happens under it.
type Memory struct {
	mu    sync.RWMutex
	notes map[string]map[string]cty.Value
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{notes: make(map[string]map[string]cty.Value)}
}

// Get returns a copy of the persistent bindings for a note.
func (m *Memory) Get(noteID string) (map[string]cty.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]cty.Value, len(m.notes[noteID]))
	for name, v := range m.notes[noteID] {
		out[name] = v
	}
	return out, nil
}

// Merge folds bindings into a note's entry.
func (m *Memory) Merge(noteID string, bindings map[string]cty.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.notes[noteID]
	if !ok {
		entry = make(map[string]cty.Value, len(bindings))
		m.notes[noteID] = entry
	}
	for name, v := range bindings {
		entry[name] = v
	}
	return nil
}

// Close is a no-op for the memory cache.
func (m *Memory) Close() error {
	return nil
}
