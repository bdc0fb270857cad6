package ingest

import (
	"context"

	"github.com/kailas-cloud/syllabus/internal/domain"
	catalogrepo "github.com/kailas-cloud/syllabus/internal/repository/catalog"
	chunkrepo "github.com/kailas-cloud/syllabus/internal/repository/chunk"
)

// CatalogWriter stores topic nodes.
type CatalogWriter interface {
	Put(ctx context.Context, nodes []catalogrepo.Node) (int, error)
}

// ChunkWriter stores embedded chunks.
type ChunkWriter interface {
	Put(ctx context.Context, chunks []chunkrepo.Chunk) error
}

// Embedder vectorizes chunk content.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
