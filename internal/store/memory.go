package store

import (
	"context"
	"sync"

	"github.com/ppiankov/pactline/internal/contract"
)

// Memory keeps contracts in process memory. Values are cloned on the way
// in and out.
type Memory struct {
	mu        sync.RWMutex
	contracts map[string]contract.Contract
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{contracts: make(map[string]contract.Contract)}
}

func (m *Memory) Create(_ context.Context, c contract.Contract) (contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[c.ID]; ok {
		return contract.Contract{}, exists(c.ID)
	}
	c = c.Clone()
	c.Revision = 1
	m.contracts[c.ID] = c
	return c.Clone(), nil
}

func (m *Memory) Get(_ context.Context, id string) (contract.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[id]
	if !ok {
		return contract.Contract{}, notFound(id)
	}
	return c.Clone(), nil
}

func (m *Memory) Update(_ context.Context, c contract.Contract, expectedRevision int64) (contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.contracts[c.ID]
	if !ok {
		return contract.Contract{}, notFound(c.ID)
	}
	if cur.Revision != expectedRevision {
		return contract.Contract{}, conflict(c.ID, expectedRevision, cur.Revision)
	}
	c = c.Clone()
	c.Revision = expectedRevision + 1
	m.contracts[c.ID] = c
	return c.Clone(), nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]contract.Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]contract.Contract, 0, len(m.contracts))
	for _, c := range m.contracts {
		if f.match(c) {
			out = append(out, c.Clone())
		}
	}
	sortContracts(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }
