// Package search embeds content into the vector index and answers semantic
// queries over it. Every index-touching operation is a silent no-op while the
// feature is disabled or the index has not been created yet.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/domain/batch"
	"github.com/kailas-cloud/deskindex/internal/metrics"
	"github.com/kailas-cloud/deskindex/internal/repository/index"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

// efRuntimeFactor widens the HNSW candidate list relative to the requested limit.
const efRuntimeFactor = 3

// Engine is the semantic search engine over a single index.
type Engine struct {
	config  ConfigSource
	store   StoreProvider
	embed   Embedder
	index   *index.Descriptor
	sources []Source
	logger  *zap.Logger

	listenerMu  sync.Mutex
	unsubscribe func()
}

// New creates an Engine writing to idx.
func New(config ConfigSource, store StoreProvider, embed Embedder, idx *index.Descriptor, logger *zap.Logger) *Engine {
	return &Engine{
		config: config,
		store:  store,
		embed:  embed,
		index:  idx,
		logger: logger,
	}
}

// AddSource registers a content source. Must be called before Init.
func (e *Engine) AddSource(s Source) *Engine {
	e.sources = append(e.sources, s)
	return e
}

// active returns the snapshot when the feature is enabled and the index exists.
func (e *Engine) active(ctx context.Context) (*settings.Snapshot, bool, error) {
	snap, err := e.config.Get(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load settings: %w", err)
	}
	return snap, snap.Enabled && e.index.Indexed(), nil
}

// Search returns hits scoring at least minScore, best first. A nil slice with a
// nil error means the query was blank or search is unavailable.
func (e *Engine) Search(ctx context.Context, query string, limit int, minScore float64) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	snap, ok, err := e.active(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		if !snap.Enabled {
			e.logger.Warn("Search called while the feature is disabled")
		}
		metrics.SearchRequestsTotal.WithLabelValues("skipped").Inc()
		return nil, nil
	}

	results, err := e.search(ctx, snap, query, limit, minScore)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	return results, nil
}

func (e *Engine) search(ctx context.Context, snap *settings.Snapshot, query string, limit int, minScore float64) ([]Result, error) {
	emb, err := e.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	distance, err := db.DistanceFromSimilarity(snap.SimilarityFunction)
	if err != nil {
		return nil, domain.NewConfigurationError(settings.KeySimilarityFunction, err.Error())
	}

	client, err := e.store.Client(ctx)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Searching index", zap.String("index", e.index.Name), zap.String("query", query))
	res, err := client.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    e.index.Name,
		Vector:       emb.Embedding,
		K:            limit,
		EFRuntime:    efRuntimeFactor * limit,
		ReturnFields: []string{index.FieldType, index.FieldSource},
		Distance:     distance,
	})
	if err != nil {
		return nil, fmt.Errorf("knn search: %w", err)
	}

	results := make([]Result, 0, len(res.Entries))
	for _, entry := range res.Entries {
		if entry.Score < minScore {
			continue
		}
		results = append(results, Result{
			Type:   entry.Fields[index.FieldType],
			Source: json.RawMessage(entry.Fields[index.FieldSource]),
			Score:  entry.Score,
		})
	}
	return results, nil
}

// Insert embeds and stores doc. A blank embedded field is an error.
func (e *Engine) Insert(ctx context.Context, doc Document) error {
	_, ok, err := e.active(ctx)
	if err != nil || !ok {
		return err
	}
	if strings.TrimSpace(doc.EmbeddedText()) == "" {
		return fmt.Errorf("%s %s: field %q: %w", doc.Type, doc.ID(), doc.EmbeddedField, domain.ErrEmptyEmbeddedField)
	}
	return e.write(ctx, doc, "insert")
}

// Update embeds and overwrites doc.
func (e *Engine) Update(ctx context.Context, doc Document) error {
	_, ok, err := e.active(ctx)
	if err != nil || !ok {
		return err
	}
	return e.write(ctx, doc, "update")
}

func (e *Engine) write(ctx context.Context, doc Document, op string) error {
	fields, err := e.hashFields(ctx, doc)
	if err != nil {
		metrics.IndexedDocumentsTotal.WithLabelValues(doc.Type, op, "error").Inc()
		return err
	}

	client, err := e.store.Client(ctx)
	if err != nil {
		return err
	}

	id := doc.ID()
	if err := client.HSet(ctx, e.index.Key(id), fields); err != nil {
		metrics.IndexedDocumentsTotal.WithLabelValues(doc.Type, op, "error").Inc()
		return fmt.Errorf("%s %s %s: %w", op, doc.Type, id, err)
	}
	metrics.IndexedDocumentsTotal.WithLabelValues(doc.Type, op, "ok").Inc()
	e.logger.Debug("Document indexed", zap.String("op", op), zap.String("type", doc.Type), zap.String("id", id))
	return nil
}

// hashFields embeds doc and renders the stored hash.
func (e *Engine) hashFields(ctx context.Context, doc Document) (map[string]string, error) {
	emb, err := e.embed.Embed(ctx, doc.EmbeddedText())
	if err != nil {
		return nil, fmt.Errorf("embed %s %s: %w", doc.Type, doc.ID(), err)
	}
	source, err := json.Marshal(doc.Fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", doc.Type, doc.ID(), err)
	}
	return map[string]string{
		index.FieldType:   doc.Type,
		index.FieldSource: string(source),
		index.FieldVector: db.EncodeVector(emb.Embedding),
	}, nil
}

// Delete removes a document. Missing documents are ignored.
func (e *Engine) Delete(ctx context.Context, docType, id string) error {
	_, ok, err := e.active(ctx)
	if err != nil || !ok {
		return err
	}

	client, err := e.store.Client(ctx)
	if err != nil {
		return err
	}
	if err := client.Del(ctx, e.index.Key(id)); err != nil {
		metrics.IndexedDocumentsTotal.WithLabelValues(docType, "delete", "error").Inc()
		return fmt.Errorf("delete %s %s: %w", docType, id, err)
	}
	metrics.IndexedDocumentsTotal.WithLabelValues(docType, "delete", "ok").Inc()
	e.logger.Debug("Document deleted", zap.String("type", docType), zap.String("id", id))
	return nil
}

// Bulk embeds docs one after another and writes them in a single pipeline.
// Item failures are logged and reported per item; the call itself only fails
// when the store is unavailable.
func (e *Engine) Bulk(ctx context.Context, docs []Document) ([]batch.Result, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	_, ok, err := e.active(ctx)
	if err != nil || !ok {
		return nil, err
	}

	client, err := e.store.Client(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]batch.Result, len(docs))
	items := make([]db.HashSetItem, 0, len(docs))
	slots := make([]int, 0, len(docs))

	for i, doc := range docs {
		id := doc.ID()
		if strings.TrimSpace(doc.EmbeddedText()) == "" {
			results[i] = batch.NewError(id, domain.ErrEmptyEmbeddedField)
			continue
		}
		fields, err := e.hashFields(ctx, doc)
		if err != nil {
			results[i] = batch.NewError(id, err)
			continue
		}
		items = append(items, db.HashSetItem{Key: e.index.Key(id), Fields: fields})
		slots = append(slots, i)
	}

	for j, err := range client.HSetMulti(ctx, items) {
		i := slots[j]
		if err != nil {
			results[i] = batch.NewError(docs[i].ID(), err)
			continue
		}
		results[i] = batch.NewOK(docs[i].ID())
	}

	for i, r := range results {
		status := "ok"
		if r.Status() == batch.StatusError {
			status = "error"
			e.logger.Warn("Bulk item failed",
				zap.String("type", docs[i].Type),
				zap.String("id", r.ID()),
				zap.Error(r.Err()),
			)
		}
		metrics.IndexedDocumentsTotal.WithLabelValues(docs[i].Type, "bulk", status).Inc()
	}
	e.logger.Debug("Bulk indexed",
		zap.Int("total", len(docs)),
		zap.Int("failed", len(batch.Failed(results))),
	)
	return results, nil
}

// Init replaces the settings listener and, when search is enabled, registers
// every source. Source failures do not stop the others and are joined.
func (e *Engine) Init(ctx context.Context) error {
	e.listenerMu.Lock()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.unsubscribe = e.config.OnChange(e.handleSettings, settings.KeySearchEnable)
	e.listenerMu.Unlock()

	snap, err := e.config.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !snap.Enabled {
		return nil
	}
	return e.registerSources(ctx)
}

// Close detaches the settings listener.
func (e *Engine) Close() {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

func (e *Engine) handleSettings(ctx context.Context, prev, next *settings.Snapshot) {
	if next == nil || !next.Enabled || (prev != nil && prev.Enabled) {
		return
	}
	e.logger.Info("Semantic search enabled")
	if err := e.registerSources(ctx); err != nil {
		e.logger.Warn("Source registration incomplete", zap.Error(err))
	}
}

func (e *Engine) registerSources(ctx context.Context) error {
	e.logger.Info("Registering search sources", zap.Int("count", len(e.sources)))
	return e.fanOut(ctx, "register", func(ctx context.Context, s Source) error {
		return s.Register(ctx, e)
	})
}

// Sync streams every source into the index when search is available.
func (e *Engine) Sync(ctx context.Context) error {
	_, ok, err := e.active(ctx)
	if err != nil || !ok {
		return err
	}
	e.logger.Info("Syncing sources to search index")
	return e.fanOut(ctx, "sync", func(ctx context.Context, s Source) error {
		return s.Sync(ctx, e)
	})
}

// fanOut runs fn for every source concurrently and joins the failures.
func (e *Engine) fanOut(ctx context.Context, op string, fn func(context.Context, Source) error) error {
	errs := make([]error, len(e.sources))
	var g errgroup.Group
	for i, s := range e.sources {
		g.Go(func() error {
			if err := fn(ctx, s); err != nil {
				e.logger.Warn("Source failed", zap.String("op", op), zap.String("source", s.Type()), zap.Error(err))
				errs[i] = fmt.Errorf("%s %s: %w", op, s.Type(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
