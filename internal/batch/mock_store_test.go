package batch

import (
	"context"
	"sync"

	"github.com/phrazzld/batchq/internal/store"
)

// mockSnapshotStore is an in-memory store.SnapshotStore for tests.
// Behavior can be overridden per test via the function fields.
type mockSnapshotStore struct {
	mu        sync.Mutex
	saveCalls int
	last      *store.Snapshot

	SaveFn func(ctx context.Context, snap *store.Snapshot) error
	LoadFn func(ctx context.Context) (*store.Snapshot, error)
}

func newMockSnapshotStore() *mockSnapshotStore {
	return &mockSnapshotStore{}
}

func (m *mockSnapshotStore) Save(ctx context.Context, snap *store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveFn != nil {
		return m.SaveFn(ctx, snap)
	}

	m.saveCalls++
	m.last = snap
	return nil
}

func (m *mockSnapshotStore) Load(ctx context.Context) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadFn != nil {
		return m.LoadFn(ctx)
	}

	if m.last == nil {
		return nil, store.ErrNoSnapshot
	}
	return m.last, nil
}

// Saves returns how many snapshots were written.
func (m *mockSnapshotStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}

// Last returns the most recently written snapshot.
func (m *mockSnapshotStore) Last() *store.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
