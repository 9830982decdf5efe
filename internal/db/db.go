package db

import "context"

// Store is the index store facade combining all sub-interfaces.
type Store interface {
	Pinger
	DocumentStore
	IndexManager
	Searcher
	Close()
}

// Pinger checks index store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// DocumentStore writes and removes indexed documents stored as hashes.
type DocumentStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetMulti pipelines the writes and returns one error slot per item (nil on success).
	HSetMulti(ctx context.Context, items []HashSetItem) []error
	Del(ctx context.Context, key string) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides vector search over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
