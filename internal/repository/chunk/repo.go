// Package chunk stores retrievable syllabus content and owns the chunk index schema.
package chunk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/syllabus/internal/db"
	"github.com/kailas-cloud/syllabus/internal/domain/search/filter"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
	"github.com/kailas-cloud/syllabus/internal/repository/keyspace"
	"github.com/kailas-cloud/syllabus/internal/repository/search"
)

// SnippetLimit caps the stored snippet when none is supplied.
const SnippetLimit = 500

// HNSW build parameters of the vector field.
const (
	hnswM           = 16
	hnswEFConstruct = 200
)

// store is the consumer interface for chunk operations (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
}

// Chunk is one retrievable passage tagged with its topic path.
type Chunk struct {
	ID        string
	Content   string
	Snippet   string
	TopicPath topicpath.Path
	Subject   string
	Lang      string
	Vector    []float32
}

// Repo writes chunk hashes and manages their FT index.
type Repo struct {
	store store
	keys  keyspace.Keyspace
	dim   int
}

// New creates a chunk repository for vectors of dimension dim.
func New(s store, keys keyspace.Keyspace, dim int) *Repo {
	return &Repo{store: s, keys: keys, dim: dim}
}

// IndexDefinition returns the chunk index schema.
func (r *Repo) IndexDefinition() (*db.IndexDefinition, error) {
	return db.NewIndex(r.keys.ChunkIndex()).
		Prefix(r.keys.ChunkPrefix()).
		Text(search.FieldContent, 1).
		TagWithOpts(filter.FieldTopicPath, ",", false).
		TagWithOpts(filter.FieldTopicLineage, ",", false).
		Tag(filter.FieldSubject).
		Tag(filter.FieldLang).
		VectorHNSW(search.FieldVector, r.dim, db.DistanceCosine, hnswM, hnswEFConstruct).
		Build()
}

// EnsureIndex creates the chunk index unless it exists and reports whether it did.
func (r *Repo) EnsureIndex(ctx context.Context) (bool, error) {
	exists, err := r.store.IndexExists(ctx, r.keys.ChunkIndex())
	if err != nil {
		return false, fmt.Errorf("check chunk index: %w", err)
	}
	if exists {
		return false, nil
	}

	def, err := r.IndexDefinition()
	if err != nil {
		return false, fmt.Errorf("chunk index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return false, nil
		}
		return false, fmt.Errorf("create chunk index: %w", err)
	}
	return true, nil
}

// IndexReady reports whether the chunk index exists.
func (r *Repo) IndexReady(ctx context.Context) (bool, error) {
	ok, err := r.store.IndexExists(ctx, r.keys.ChunkIndex())
	if err != nil {
		return false, fmt.Errorf("check chunk index: %w", err)
	}
	return ok, nil
}

// DropIndex removes the chunk index; chunk hashes are kept.
func (r *Repo) DropIndex(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.keys.ChunkIndex()); err != nil {
		return fmt.Errorf("drop chunk index: %w", err)
	}
	return nil
}

// Put validates chunks and writes them in one pipelined round-trip.
func (r *Repo) Put(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	items := make([]db.HashSetItem, 0, len(chunks))
	for i := range chunks {
		fields, err := r.fields(&chunks[i])
		if err != nil {
			return fmt.Errorf("chunk %q: %w", chunks[i].ID, err)
		}
		items = append(items, db.HashSetItem{Key: r.keys.Chunk(chunks[i].ID), Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("put chunks: %w", err)
	}
	return nil
}

// Delete removes a chunk.
func (r *Repo) Delete(ctx context.Context, id string) error {
	if err := r.store.Del(ctx, r.keys.Chunk(id)); err != nil {
		return fmt.Errorf("delete chunk %q: %w", id, err)
	}
	return nil
}

func (r *Repo) fields(c *Chunk) (map[string]string, error) {
	if c.ID == "" || strings.ContainsAny(c.ID, " \t\n") {
		return nil, fmt.Errorf("invalid chunk id")
	}
	if strings.TrimSpace(c.Content) == "" {
		return nil, fmt.Errorf("content is required")
	}
	path, err := topicpath.Parse(c.TopicPath.String())
	if err != nil {
		return nil, err
	}
	if len(c.Vector) != r.dim {
		return nil, fmt.Errorf("vector has %d dimensions, index expects %d", len(c.Vector), r.dim)
	}

	lineage := path.Lineage()
	tags := make([]string, len(lineage))
	for i, p := range lineage {
		tags[i] = p.String()
	}

	snippet := c.Snippet
	if snippet == "" {
		snippet = truncate(c.Content, SnippetLimit)
	}
	subject := c.Subject
	if subject == "" && !path.IsUnmapped() {
		subject = path.Subject()
	}

	fields := map[string]string{
		search.FieldContent:      c.Content,
		search.FieldSnippet:      snippet,
		search.FieldVector:       db.VectorBytes(c.Vector),
		filter.FieldTopicPath:    path.String(),
		filter.FieldTopicLineage: strings.Join(tags, ","),
	}
	if subject != "" {
		fields[filter.FieldSubject] = strings.ToLower(subject)
	}
	if c.Lang != "" {
		fields[filter.FieldLang] = strings.ToLower(c.Lang)
	}
	return fields, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
