package indexer

import (
	"sync"

	"github.com/0xADE/ade-launchd/internal/app"
)

// Ref addresses an entry picked from the filtered view. Gen records the
// index generation it was taken from; storage indices do not survive a
// swap, clear or re-sort.
type Ref struct {
	Entry   app.Entry
	Storage int
	Gen     uint64
}

// Row is one line of the filtered view
type Row struct {
	Pos   int
	Entry app.Entry
}

// Index stores the live Manager with thread-safe access.
// Every method holds the lock for one operation only.
type Index struct {
	mu     sync.Mutex
	m      *Manager
	gen    uint64
	search string
}

// NewIndex creates a new empty index
func NewIndex() *Index {
	return &Index{m: NewManager()}
}

// Swap replaces the managed entries with m and reapplies the current search
func (x *Index) Swap(m *Manager) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.m = m
	x.gen++
	x.m.Filter(x.search)
}

// Update runs fn with exclusive access to the manager, for multi-step
// changes that must not be observed half done.
func (x *Index) Update(fn func(m *Manager)) {
	x.mu.Lock()
	defer x.mu.Unlock()

	fn(x.m)
	x.gen++
}

// View runs fn with exclusive access to the manager. fn must not modify it.
func (x *Index) View(fn func(m *Manager)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(x.m)
}

// Clear empties the index
func (x *Index) Clear() {
	x.Update(func(m *Manager) {
		m.Clear()
	})
}

// Filter sets the current search and returns the number of matches
func (x *Index) Filter(search string) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.search = search
	return x.m.Filter(search)
}

// Search returns the search the current view was built from
func (x *Index) Search() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.search
}

// Page returns up to limit rows of the filtered view starting at offset,
// together with the total number of rows.
func (x *Index) Page(offset, limit int) ([]Row, int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	filtered := x.m.Filtered()
	total := len(filtered)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return nil, total
	}
	end := offset + min(limit, total-offset)

	rows := make([]Row, 0, end-offset)
	for pos := offset; pos < end; pos++ {
		if e, ok := x.m.FilteredEntry(pos); ok {
			rows = append(rows, Row{Pos: pos, Entry: e})
		}
	}
	return rows, total
}

// Resolve copies out the entry at a position of the filtered view
func (x *Index) Resolve(pos int) (Ref, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	i, ok := x.m.StorageIndex(pos)
	if !ok {
		return Ref{}, false
	}
	return Ref{Entry: x.m.Entries()[i], Storage: i, Gen: x.gen}, true
}

// RecordUse increments usage for the referenced entry, re-sorts and resets
// the view. A stale reference is re-resolved by canonical id. The updated
// entry is returned; false means the entry is no longer indexed.
func (x *Index) RecordUse(ref Ref) (app.Entry, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	i := ref.Storage
	entries := x.m.Entries()
	if ref.Gen != x.gen || i < 0 || i >= len(entries) || entries[i].ID != ref.Entry.ID {
		var ok bool
		if i, ok = x.m.Lookup(ref.Entry.ID); !ok {
			return app.Entry{}, false
		}
	}

	x.m.IncrementUsage(i)
	updated := x.m.Entries()[i]

	x.m.SortByUsage()
	x.gen++
	x.search = ""
	x.m.Filter("")

	return updated, true
}

// Count returns the number of entries in the index
func (x *Index) Count() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.m.Len()
}

// Generation returns the current generation
func (x *Index) Generation() uint64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.gen
}
