package verifications

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRepo keeps saved records in memory. Used by tests and by runs where
// MONGODB_URI is not configured.
type MemoryRepo struct {
	mu      sync.Mutex
	records []map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) Save(_ context.Context, record map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(record))
	for k, v := range record {
		cp[k] = v
	}
	m.records = append(m.records, cp)
	return fmt.Sprintf("ver_%d", len(m.records)), nil
}

// All returns a snapshot of every saved record, in insertion order.
func (m *MemoryRepo) All() []map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]string, len(m.records))
	copy(out, m.records)
	return out
}
