package search

import (
	"context"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/search/query"
	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
)

// Backend runs subtree-bounded retrieval and returns rows with per-ranking ranks.
// Fusion and boundary verification happen in the service.
type Backend interface {
	Search(ctx context.Context, q *query.Query) ([]result.Row, error)
}

// Catalog reports whether a topic path is known.
type Catalog interface {
	Exists(ctx context.Context, path topicpath.Path) (bool, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// SearchLog receives a record of every successful search. It must not block.
type SearchLog interface {
	Record(rec *domain.SearchRecord)
}
