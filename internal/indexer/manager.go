package indexer

import (
	"cmp"
	"slices"
	"strings"

	"github.com/0xADE/ade-launchd/internal/app"
)

// Manager owns the entry sequence and the filtered view over it.
// It is not safe for concurrent use; Index serialises access to it.
type Manager struct {
	entries  []app.Entry
	filtered []int // storage indices, best match first
	ids      map[string]struct{}
	names    map[string]struct{} // lowercased display names
}

// NewManager creates an empty manager
func NewManager() *Manager {
	return &Manager{
		ids:   make(map[string]struct{}),
		names: make(map[string]struct{}),
	}
}

// Add inserts e unless an entry with the same canonical id, or the same
// display name ignoring case, is already present. The first entry wins.
// The result only reports whether e was stored.
func (m *Manager) Add(e app.Entry) bool {
	if _, ok := m.ids[e.ID]; ok {
		return false
	}
	name := strings.ToLower(e.Name)
	if _, ok := m.names[name]; ok {
		return false
	}

	m.AddUnchecked(e)
	return true
}

// AddUnchecked appends e without any duplicate check
func (m *Manager) AddUnchecked(e app.Entry) {
	m.entries = append(m.entries, e)
	m.ids[e.ID] = struct{}{}
	m.names[strings.ToLower(e.Name)] = struct{}{}
}

// Clear drops all entries and the filtered view
func (m *Manager) Clear() {
	m.entries = nil
	m.filtered = nil
	clear(m.ids)
	clear(m.names)
}

// SortByUsage orders entries by usage, most used first, then by name
// ignoring case. The sort is stable.
func (m *Manager) SortByUsage() {
	slices.SortStableFunc(m.entries, func(a, b app.Entry) int {
		if c := cmp.Compare(b.Usage, a.Usage); c != 0 {
			return c
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}

// Filter rebuilds the filtered view for search and returns its length.
// An empty search selects every entry in storage order.
func (m *Manager) Filter(search string) int {
	if search == "" {
		m.filtered = make([]int, len(m.entries))
		for i := range m.entries {
			m.filtered[i] = i
		}
		return len(m.filtered)
	}

	m.filtered = rank(m.entries, search)
	return len(m.filtered)
}

// IncrementUsage bumps the usage of the entry at storage index i.
// Out of range indices are ignored.
func (m *Manager) IncrementUsage(i int) {
	if i < 0 || i >= len(m.entries) {
		return
	}
	m.entries[i].Usage++
}

// Entries returns the entry sequence. Callers must not modify it.
func (m *Manager) Entries() []app.Entry {
	return m.entries
}

// Filtered returns the filtered view. Callers must not modify it.
func (m *Manager) Filtered() []int {
	return m.filtered
}

// Len returns the number of stored entries
func (m *Manager) Len() int {
	return len(m.entries)
}

// StorageIndex maps a position in the filtered view to a storage index
func (m *Manager) StorageIndex(pos int) (int, bool) {
	if pos < 0 || pos >= len(m.filtered) {
		return 0, false
	}
	i := m.filtered[pos]
	if i >= len(m.entries) {
		return 0, false
	}
	return i, true
}

// FilteredEntry resolves a position in the filtered view to its entry
func (m *Manager) FilteredEntry(pos int) (app.Entry, bool) {
	i, ok := m.StorageIndex(pos)
	if !ok {
		return app.Entry{}, false
	}
	return m.entries[i], true
}

// Lookup returns the storage index of the entry with the given canonical id
func (m *Manager) Lookup(id string) (int, bool) {
	if _, ok := m.ids[id]; !ok {
		return 0, false
	}
	for i := range m.entries {
		if m.entries[i].ID == id {
			return i, true
		}
	}
	return 0, false
}
