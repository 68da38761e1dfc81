package store

import (
	"context"
	"iter"
	"sync"

	"github.com/gurre/employee-etl/employee"
)

// MemoryStore keeps records in insertion order. It implements both Scanner
// and the writer's Upsert contract and is primarily intended for testing.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]employee.Record
}

// NewMemoryStore creates a new MemoryStore instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]employee.Record)}
}

// Upsert stores every record, replacing any record with the same id
func (m *MemoryStore) Upsert(ctx context.Context, records []employee.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if _, ok := m.records[rec.EmployeeID]; !ok {
			m.order = append(m.order, rec.EmployeeID)
		}
		m.records[rec.EmployeeID] = rec
	}
	return len(records), nil
}

// Get returns the record stored under id
func (m *MemoryStore) Get(id string) (employee.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok
}

// Len returns the number of stored records
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Records yields a snapshot of the stored records in first-insert order
func (m *MemoryStore) Records(ctx context.Context) iter.Seq2[employee.Record, error] {
	m.mu.RLock()
	snapshot := make([]employee.Record, 0, len(m.order))
	for _, id := range m.order {
		snapshot = append(snapshot, m.records[id])
	}
	m.mu.RUnlock()

	return func(yield func(employee.Record, error) bool) {
		for _, rec := range snapshot {
			if !yield(rec, nil) {
				return
			}
		}
	}
}
