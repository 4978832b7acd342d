package files

import (
	"sort"
	"sync"
)

// Table is the in-memory index of file records. Records handed out are
// copies; changes go through Update.
type Table struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{records: make(map[string]Record)}
}

// Put inserts or replaces a record.
func (t *Table) Put(r Record) {
	t.mu.Lock()
	t.records[r.ID] = r.Clone()
	t.mu.Unlock()
}

// Get returns a copy of the record with the given id.
func (t *Table) Get(id string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.records[id]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// Delete removes a record, returning it.
func (t *Table) Delete(id string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	if ok {
		delete(t.records, id)
	}
	return r, ok
}

// Update applies fn to the stored record atomically. The change is
// discarded if fn returns an error.
func (t *Table) Update(id string, fn func(*Record) error) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	next := r.Clone()
	if err := fn(&next); err != nil {
		return Record{}, err
	}
	t.records[id] = next
	return next.Clone(), nil
}

// All returns every record, oldest upload first.
func (t *Table) All() []Record {
	t.mu.RLock()
	out := make([]Record, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r.Clone())
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UploadedAt.Before(out[j].UploadedAt)
	})
	return out
}
