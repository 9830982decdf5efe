package search

import (
	"context"

	"github.com/kailas-cloud/deskindex/internal/db"
	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/domain/batch"
	"github.com/kailas-cloud/deskindex/internal/settings"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// StoreProvider hands out the shared index store client.
type StoreProvider interface {
	Client(ctx context.Context) (db.Store, error)
}

// ConfigSource exposes the settings snapshot and its change notifications.
type ConfigSource interface {
	Get(ctx context.Context) (*settings.Snapshot, error)
	OnChange(handler settings.ChangeHandler, keys ...string) (unsubscribe func())
}

// Indexer is the write side of the engine handed to sources.
type Indexer interface {
	Insert(ctx context.Context, doc Document) error
	Update(ctx context.Context, doc Document) error
	Delete(ctx context.Context, docType, id string) error
	Bulk(ctx context.Context, docs []Document) ([]batch.Result, error)
}

// Source is a content type feeding the index. Register points its change
// listeners at idx; it runs inside settings handlers, so it must not block on
// the event bus and must be safe to call again. Sync streams every record.
type Source interface {
	Type() string
	Register(ctx context.Context, idx Indexer) error
	Sync(ctx context.Context, idx Indexer) error
}
