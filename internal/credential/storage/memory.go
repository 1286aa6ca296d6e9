package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory implements the Store interface in process memory. Rows do not
// survive a restart; it exists for development and tests.
type Memory struct {
	mu   sync.RWMutex
	rows map[string]*Record
}

// NewMemory creates a new in-memory store
func NewMemory() *Memory {
	return &Memory{
		rows: make(map[string]*Record),
	}
}

func memKey(provider, identity string) string {
	return provider + "/" + identity
}

func (m *Memory) Upsert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	m.rows[memKey(rec.Provider, rec.Identity)] = &cp
	return nil
}

func (m *Memory) Get(_ context.Context, provider, identity string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.rows[memKey(provider, identity)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *Memory) Delete(_ context.Context, provider, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rows, memKey(provider, identity))
	return nil
}

func (m *Memory) List(_ context.Context, provider string) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []*Record
	for _, rec := range m.rows {
		if rec.Provider == provider {
			cp := *rec
			recs = append(recs, &cp)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Identity < recs[j].Identity })
	return recs, nil
}

func (m *Memory) Close() error {
	return nil
}
