package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
	catalogrepo "github.com/kailas-cloud/syllabus/internal/repository/catalog"
	chunkrepo "github.com/kailas-cloud/syllabus/internal/repository/chunk"
)

// DefaultBatchSize is the number of chunks embedded and written per round-trip.
const DefaultBatchSize = 64

// Result is the outcome for a single seed chunk.
type Result struct {
	ID  string
	Err error
}

// Report summarizes a chunk load.
type Report struct {
	Loaded  int
	Failed  int
	Tokens  int
	Results []Result
}

// Service loads seed files into the catalog and the chunk index.
type Service struct {
	catalog   CatalogWriter
	chunks    ChunkWriter
	embed     Embedder
	batchSize int
	logger    *zap.Logger
}

// New creates an ingest service.
func New(catalog CatalogWriter, chunks ChunkWriter, embed Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog: catalog, chunks: chunks, embed: embed,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// WithBatchSize configures the chunk batch size.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// LoadCatalog canonicalizes node paths and stores them with their ancestors.
// Any invalid path aborts the load before anything is written.
func (s *Service) LoadCatalog(ctx context.Context, entries []NodeEntry) (int, error) {
	nodes := make([]catalogrepo.Node, 0, len(entries))
	for i, e := range entries {
		p, err := topicpath.Canonicalize(e.Path)
		if err != nil {
			return 0, fmt.Errorf("node [%d]: %w", i, err)
		}
		if p.IsUnmapped() {
			return 0, fmt.Errorf("node [%d]: %q is reserved", i, p)
		}
		nodes = append(nodes, catalogrepo.Node{Path: p, Title: strings.TrimSpace(e.Title)})
	}
	if len(nodes) == 0 {
		return 0, nil
	}
	n, err := s.catalog.Put(ctx, nodes)
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}
	return n, nil
}

// LoadChunks validates, embeds, and stores chunks batch by batch.
// Invalid entries fail individually. An embedding failure fails the
// current batch and every batch after it, since the provider is unusable.
func (s *Service) LoadChunks(ctx context.Context, entries []ChunkEntry) Report {
	rep := Report{Results: make([]Result, len(entries))}

	valid := make([]chunkrepo.Chunk, 0, len(entries))
	validIdx := make([]int, 0, len(entries))
	seen := make(map[string]int, len(entries))

	for i, e := range entries {
		rep.Results[i].ID = e.ID
		c, err := toChunk(e)
		if err == nil {
			if first, dup := seen[c.ID]; dup {
				err = fmt.Errorf("duplicate id, first at [%d]", first)
			}
		}
		if err != nil {
			rep.Results[i].Err = err
			continue
		}
		seen[c.ID] = i
		valid = append(valid, c)
		validIdx = append(validIdx, i)
	}

	var cascade error
	for start := 0; start < len(valid); start += s.batchSize {
		end := min(start+s.batchSize, len(valid))
		batch, idx := valid[start:end], validIdx[start:end]

		if cascade == nil {
			cascade = ctx.Err()
		}
		if cascade != nil {
			markFailed(&rep, idx, cascade)
			continue
		}

		tokens, err := s.vectorize(ctx, batch)
		rep.Tokens += tokens
		if err != nil {
			cascade = err
			markFailed(&rep, idx, err)
			s.logger.Error("Chunk embedding failed, skipping remaining batches",
				zap.Int("batch_start", start), zap.Error(err))
			continue
		}

		if err := s.chunks.Put(ctx, batch); err != nil {
			markFailed(&rep, idx, fmt.Errorf("store: %w", err))
			s.logger.Warn("Chunk batch write failed", zap.Int("batch_start", start), zap.Error(err))
			continue
		}
		s.logger.Debug("Chunk batch stored", zap.Int("batch_start", start), zap.Int("size", len(batch)))
	}

	for _, r := range rep.Results {
		if r.Err != nil {
			rep.Failed++
		} else {
			rep.Loaded++
		}
	}
	return rep
}

func (s *Service) vectorize(ctx context.Context, batch []chunkrepo.Chunk) (int, error) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Content
	}
	res, err := domain.EmbedAll(ctx, s.embed, texts)
	if err != nil {
		return 0, fmt.Errorf("vectorize: %w", err)
	}
	for i := range batch {
		batch[i].Vector = res.Embeddings[i]
	}
	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	return res.TotalTokens, nil
}

func toChunk(e ChunkEntry) (chunkrepo.Chunk, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return chunkrepo.Chunk{}, errors.New("id is required")
	}
	if strings.TrimSpace(e.Content) == "" {
		return chunkrepo.Chunk{}, errors.New("content is required")
	}
	path, err := topicpath.Canonicalize(e.TopicPath)
	if err != nil {
		return chunkrepo.Chunk{}, fmt.Errorf("topic_path: %w", err)
	}
	return chunkrepo.Chunk{
		ID:        id,
		Content:   e.Content,
		Snippet:   e.Snippet,
		TopicPath: path,
		Subject:   e.Subject,
		Lang:      e.Lang,
	}, nil
}

func markFailed(rep *Report, idx []int, err error) {
	for _, i := range idx {
		rep.Results[i].Err = err
	}
}
