package faq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/domain/batch"
	"github.com/kailas-cloud/deskindex/internal/eventbus"
	"github.com/kailas-cloud/deskindex/internal/usecase/search"
)

// recordingIndexer implements search.Indexer and records every call.
type recordingIndexer struct {
	mu       sync.Mutex
	inserted []search.Document
	updated  []search.Document
	deleted  []string
	bulks    [][]search.Document
	bulkErr  error
}

func (r *recordingIndexer) Insert(_ context.Context, doc search.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserted = append(r.inserted, doc)
	return nil
}

func (r *recordingIndexer) Update(_ context.Context, doc search.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, doc)
	return nil
}

func (r *recordingIndexer) Delete(_ context.Context, _, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *recordingIndexer) Bulk(_ context.Context, docs []search.Document) ([]batch.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bulkErr != nil {
		return nil, r.bulkErr
	}
	r.bulks = append(r.bulks, docs)
	results := make([]batch.Result, len(docs))
	for i, d := range docs {
		results[i] = batch.NewOK(d.ID())
	}
	return results, nil
}

// pagedRepo serves n FAQs with ids f001..fNNN via keyset pagination.
type pagedRepo struct {
	faqs   []domain.FAQ
	afters []string
	err    error
}

func newPagedRepo(n int) *pagedRepo {
	r := &pagedRepo{}
	for i := 1; i <= n; i++ {
		r.faqs = append(r.faqs, domain.FAQ{
			ID:       fmt.Sprintf("f%03d", i),
			Question: fmt.Sprintf("question %d", i),
			Answer:   "answer",
		})
	}
	return r
}

func (r *pagedRepo) Page(_ context.Context, afterID string, limit int) ([]domain.FAQ, error) {
	r.afters = append(r.afters, afterID)
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.FAQ
	for _, f := range r.faqs {
		if f.ID > afterID {
			out = append(out, f)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// fakeSubscriber records subscriptions and hands out their handlers.
type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string][]eventbus.Handler
	active   int
}

func (f *fakeSubscriber) Subscribe(_ context.Context, topic string, h eventbus.Handler) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string][]eventbus.Handler)
	}
	f.handlers[topic] = append(f.handlers[topic], h)
	f.active++
	return func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}, nil
}

// memStore is an in-memory db.Store whose indices always exist.
type memStore struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{hashes: make(map[string]map[string]string)}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[key] = fields
	return nil
}

func (m *memStore) HSetMulti(ctx context.Context, items []db.HashSetItem) []error {
	for _, it := range items {
		_ = m.HSet(ctx, it.Key, it.Fields)
	}
	return make([]error, len(items))
}

func (m *memStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, key)
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hashes[key]
	return ok
}

func (m *memStore) CreateIndex(context.Context, *db.IndexDefinition) error { return nil }
func (m *memStore) DropIndex(context.Context, string) error                { return nil }
func (m *memStore) IndexExists(context.Context, string) (bool, error)      { return true, nil }
func (m *memStore) Close()                                                 {}

func (m *memStore) SearchKNN(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
	return &db.SearchResult{}, nil
}

type constEmbedder struct{}

func (constEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

type settingsReader map[string]json.RawMessage

func (r settingsReader) GetSettings(context.Context, []string) (map[string]json.RawMessage, error) {
	return r, nil
}
