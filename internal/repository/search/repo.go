package search

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/syllabus/internal/db"
	"github.com/kailas-cloud/syllabus/internal/domain/search/filter"
	"github.com/kailas-cloud/syllabus/internal/domain/search/query"
	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
	"github.com/kailas-cloud/syllabus/internal/repository/keyspace"
)

// Default candidate pool sizes per ranking.
const (
	DefaultDensePool = 50
	DefaultKeyPool   = 50
	maxTerms         = 32
	minTermLen       = 2
)

// Hash field names of a chunk.
const (
	FieldContent = "content"
	FieldSnippet = "snippet"
	FieldVector  = "vector"
)

var returnFields = []string{filter.FieldTopicPath, FieldSnippet}

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo runs boundary-filtered retrieval over the chunk index.
type Repo struct {
	store store
	keys  keyspace.Keyspace
}

// New creates a search repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Search runs the semantic and lexical rankings under the boundary predicate
// for q.Root and merges them by chunk id. Each row carries its 1-based rank in
// every ranking it appears in; fusion is left to the caller.
func (r *Repo) Search(ctx context.Context, q *query.Query) ([]result.Row, error) {
	filters, err := boundaryFilter(q)
	if err != nil {
		return nil, err
	}

	var dense *db.SearchResult
	if !q.Lexical() {
		dense, err = r.store.SearchKNN(ctx, &db.KNNQuery{
			IndexName:    r.keys.ChunkIndex(),
			VectorField:  FieldVector,
			Filters:      filters,
			Vector:       q.Vector,
			K:            poolOrDefault(q.DensePool, DefaultDensePool),
			ReturnFields: returnFields,
		})
		if err != nil {
			return nil, fmt.Errorf("search knn: %w", err)
		}
	}

	lexical, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.keys.ChunkIndex(),
		TextField:    FieldContent,
		Terms:        Terms(q.Text),
		Filters:      filters,
		TopK:         poolOrDefault(q.KeyPool, DefaultKeyPool),
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}

	return r.merge(dense, lexical), nil
}

func boundaryFilter(q *query.Query) (filter.Expression, error) {
	expr, err := filter.Boundary(q.Root)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("boundary filter: %w", err)
	}

	var hints []filter.Condition
	if q.Subject != "" {
		c, err := filter.NewMatch(filter.FieldSubject, strings.ToLower(q.Subject))
		if err != nil {
			return filter.Expression{}, err
		}
		hints = append(hints, c)
	}
	if q.Lang != "" {
		c, err := filter.NewMatch(filter.FieldLang, strings.ToLower(q.Lang))
		if err != nil {
			return filter.Expression{}, err
		}
		hints = append(hints, c)
	}
	if len(hints) == 0 {
		return expr, nil
	}
	return expr.And(hints...)
}

type candidate struct {
	id, topicPath, snippet string
	rankSem, rankKey       *int
}

// merge unions both rankings by id, semantic order first.
func (r *Repo) merge(dense, lexical *db.SearchResult) []result.Row {
	byID := make(map[string]*candidate)
	var order []string

	add := func(sr *db.SearchResult, semantic bool) {
		if sr == nil {
			return
		}
		for i, e := range sr.Entries {
			id := strings.TrimPrefix(e.Key, r.keys.ChunkPrefix())
			c, ok := byID[id]
			if !ok {
				c = &candidate{
					id:        id,
					topicPath: e.Fields[filter.FieldTopicPath],
					snippet:   e.Fields[FieldSnippet],
				}
				byID[id] = c
				order = append(order, id)
			}
			rank := i + 1
			if semantic {
				if c.rankSem == nil {
					c.rankSem = &rank
				}
			} else if c.rankKey == nil {
				c.rankKey = &rank
			}
		}
	}
	add(dense, true)
	add(lexical, false)

	rows := make([]result.Row, 0, len(order))
	for _, id := range order {
		c := byID[id]
		rows = append(rows, result.New(c.id, c.topicPath, c.snippet, c.rankSem, c.rankKey))
	}
	return rows
}

// Terms splits text into unique lowercase word terms for the lexical ranking.
func Terms(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < minTermLen || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
		if len(terms) == maxTerms {
			break
		}
	}
	return terms
}

func poolOrDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}
