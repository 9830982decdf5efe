package index

import (
	"context"
	"sync"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

// mockStore implements db.Store for tests.
type mockStore struct {
	pingFn        func(ctx context.Context) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)

	mu      sync.Mutex
	created []*db.IndexDefinition
	dropped []string
	closed  int
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) HSet(context.Context, string, map[string]string) error { return nil }

func (m *mockStore) HSetMulti(_ context.Context, items []db.HashSetItem) []error {
	return make([]error, len(items))
}

func (m *mockStore) Del(context.Context, string) error { return nil }

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.mu.Lock()
	m.created = append(m.created, def)
	m.mu.Unlock()
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	m.mu.Lock()
	m.dropped = append(m.dropped, name)
	m.mu.Unlock()
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func (m *mockStore) SearchKNN(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
	return &db.SearchResult{}, nil
}

func (m *mockStore) Close() {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
}

// mutableConfig is a ConfigSource whose snapshot can be swapped between calls.
type mutableConfig struct {
	mu   sync.Mutex
	snap *settings.Snapshot
}

func (c *mutableConfig) Get(context.Context) (*settings.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, nil
}

func (c *mutableConfig) set(s *settings.Snapshot) {
	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()
}

func enabledSnapshot() *settings.Snapshot {
	return &settings.Snapshot{
		IndexStoreEnabled:  true,
		IndexStoreHost:     "localhost",
		IndexStorePort:     6379,
		EmbeddingDimension: 384,
		SimilarityFunction: "cosine",
	}
}

// countingFactory returns store for every call and records the addresses.
type countingFactory struct {
	mu    sync.Mutex
	store *mockStore
	addrs []string
	err   error
}

func (f *countingFactory) build(addr string) (db.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addrs = append(f.addrs, addr)
	if f.err != nil {
		return nil, f.err
	}
	return f.store, nil
}

func (f *countingFactory) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.addrs)
}
