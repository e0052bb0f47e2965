package indexer

import (
	"hash/fnv"
	"sync"
)

// IconTable hands out integer handles for icon names. Handles are derived
// from the name so they stay valid across restarts; 0 means no icon.
type IconTable struct {
	mu    sync.RWMutex
	names map[int32]string
}

// NewIconTable creates an empty table
func NewIconTable() *IconTable {
	return &IconTable{names: make(map[int32]string)}
}

// Resolve returns the handle for an icon name
func (t *IconTable) Resolve(name string) int32 {
	if name == "" {
		return 0
	}

	h := fnv.New32a()
	h.Write([]byte(name))
	handle := int32(h.Sum32() & 0x7fffffff)
	if handle == 0 {
		handle = 1
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.names[handle]; !ok {
		t.names[handle] = name
	}
	return handle
}

// Name returns the icon name registered for handle
func (t *IconTable) Name(handle int32) (string, bool) {
	if handle <= 0 {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.names[handle]
	return name, ok
}
