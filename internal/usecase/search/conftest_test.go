package search

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/repository/index"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

type readerFunc func() map[string]json.RawMessage

func (f readerFunc) GetSettings(context.Context, []string) (map[string]json.RawMessage, error) {
	return f(), nil
}

func newCache(enabled bool) *settings.Cache {
	flag := json.RawMessage(`false`)
	if enabled {
		flag = json.RawMessage(`true`)
	}
	return settings.NewCache(readerFunc(func() map[string]json.RawMessage {
		return map[string]json.RawMessage{
			settings.KeyIndexStoreEnable: flag,
			settings.KeySearchEnable:     flag,
		}
	}), zap.NewNop())
}

// mockStore implements db.Store for tests.
type mockStore struct {
	hsetFn      func(ctx context.Context, key string, fields map[string]string) error
	hsetMultiFn func(ctx context.Context, items []db.HashSetItem) []error
	delFn       func(ctx context.Context, key string) error
	searchFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)

	mu      sync.Mutex
	written map[string]map[string]string
	deleted []string
	queries []*db.KNNQuery
}

func (m *mockStore) Ping(context.Context) error { return nil }

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		if err := m.hsetFn(ctx, key, fields); err != nil {
			return err
		}
	}
	m.record(key, fields)
	return nil
}

func (m *mockStore) HSetMulti(ctx context.Context, items []db.HashSetItem) []error {
	if m.hsetMultiFn != nil {
		return m.hsetMultiFn(ctx, items)
	}
	for _, it := range items {
		m.record(it.Key, it.Fields)
	}
	return make([]error, len(items))
}

func (m *mockStore) record(key string, fields map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.written == nil {
		m.written = make(map[string]map[string]string)
	}
	m.written[key] = fields
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, key)
	m.mu.Unlock()
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CreateIndex(context.Context, *db.IndexDefinition) error { return nil }
func (m *mockStore) DropIndex(context.Context, string) error                { return nil }
func (m *mockStore) IndexExists(context.Context, string) (bool, error)      { return true, nil }

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) Close() {}

type storeProvider struct {
	store db.Store
	err   error
}

func (p *storeProvider) Client(context.Context) (db.Store, error) { return p.store, p.err }

type mockEmbedder struct {
	mu    sync.Mutex
	texts []string
	errOn string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	m.texts = append(m.texts, text)
	m.mu.Unlock()
	if m.errOn != "" && text == m.errOn {
		return domain.EmbeddingResult{}, errors.New("embedding failed")
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.texts)
}

type mockSource struct {
	typ         string
	registerErr error
	syncErr     error

	mu        sync.Mutex
	registers int
	syncs     int
}

func (m *mockSource) Type() string { return m.typ }

func (m *mockSource) Register(context.Context, Indexer) error {
	m.mu.Lock()
	m.registers++
	m.mu.Unlock()
	return m.registerErr
}

func (m *mockSource) Sync(context.Context, Indexer) error {
	m.mu.Lock()
	m.syncs++
	m.mu.Unlock()
	return m.syncErr
}

type fixture struct {
	engine *Engine
	store  *mockStore
	embed  *mockEmbedder
	index  *index.Descriptor
	cache  *settings.Cache
}

func newFixture(enabled, indexed bool) *fixture {
	f := &fixture{
		store: &mockStore{},
		embed: &mockEmbedder{},
		index: index.NewDescriptor(index.PublicQA, index.VectorSchema),
		cache: newCache(enabled),
	}
	f.index.SetIndexed(indexed)
	f.engine = New(f.cache, &storeProvider{store: f.store}, f.embed, f.index, zap.NewNop())
	return f
}

func faqDoc(id, question string) Document {
	return Document{
		Type:          "FAQ",
		IDField:       "id",
		EmbeddedField: "question",
		Fields:        map[string]any{"id": id, "question": question, "answer": "a"},
	}
}
