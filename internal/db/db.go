// Package db defines the storage contracts of the retrieval service:
// chunk and catalog hashes, the embedding cache, the search-log stream,
// conversation history and the FT index over chunks.
//
// Repositories depend on the narrow interfaces below, never on Store.
package db

import (
	"context"
	"time"
)

// Store is the facade the composition root builds and hands to repositories.
//
//nolint:interfacebloat // facade; consumers use narrow sub-interfaces (ISP)
type Store interface {
	Pinger
	HashStore
	KVStore
	StreamStore
	IndexManager
	Searcher
	// ReadOnly reports whether the store was opened with restricted credentials.
	ReadOnly() bool
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one hash of a pipelined HSET batch.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore holds chunk and catalog node hashes.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// KVStore holds opaque values: cached embeddings and conversation history.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// StreamStore appends entries to capped streams.
type StreamStore interface {
	// XAdd appends fields to stream, trimming it to roughly maxLen entries (0 = no trim).
	XAdd(ctx context.Context, stream string, maxLen int64, fields map[string]string) error
}

// IndexManager manages the lifecycle of the chunk FT index.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher runs the two retrieval legs of a hybrid search.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
}
