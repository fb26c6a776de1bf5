package store

import (
	"context"
	"sync"
	"time"

	"github.com/ByLCY/offerpress/offer"
)

// Memory 在进程内保存快照，供命令行与测试使用。
type Memory struct {
	mu    sync.RWMutex
	items map[string]offer.Snapshot
}

var _ SnapshotStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{items: map[string]offer.Snapshot{}}
}

func (m *Memory) Save(_ context.Context, id string, snap *offer.Snapshot) (string, error) {
	id, cp := prepare(id, snap)
	m.mu.Lock()
	m.items[id] = *cp
	m.mu.Unlock()
	return id, nil
}

func (m *Memory) Get(_ context.Context, id string) (*offer.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &snap, nil
}

func (m *Memory) MarkViewed(_ context.Context, id string, at time.Time) (*offer.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := snap.MarkViewed(at); err != nil {
		return nil, err
	}
	m.items[id] = snap
	return &snap, nil
}
