package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory 进程内台账，用于单元测试与本地开发
type Memory struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*Entry)}
}

func memoryKey(resourceID, operationKey string) string {
	return resourceID + "\x00" + operationKey
}

func (m *Memory) Find(_ context.Context, resourceID, operationKey string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[memoryKey(resourceID, operationKey)]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) Record(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(e.ResourceID, e.OperationKey)
	if _, ok := m.entries[key]; ok {
		return ErrDuplicate
	}
	now := time.Now()
	cp := *e
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.entries[key] = &cp
	e.CreatedAt, e.UpdatedAt = now, now
	return nil
}

func (m *Memory) Transition(_ context.Context, resourceID, operationKey string, from, to Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[memoryKey(resourceID, operationKey)]
	if !ok || e.Status != from {
		return false, nil
	}
	e.Status = to
	e.UpdatedAt = time.Now()
	return true, nil
}

// Len 条目数量
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
