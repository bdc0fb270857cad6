// Package catalog stores the syllabus topic tree: one hash per known topic path.
package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/syllabus/internal/db"
	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
	"github.com/kailas-cloud/syllabus/internal/repository/keyspace"
)

const (
	fieldTitle = "title"
	fieldDepth = "depth"
)

// store is the consumer interface for catalog operations (ISP).
type store interface {
	Exists(ctx context.Context, key string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
}

// Node is a single topic of the syllabus tree.
type Node struct {
	Path  topicpath.Path
	Title string
}

// Repo implements the topic catalog over Redis hashes.
type Repo struct {
	store store
	keys  keyspace.Keyspace
}

// New creates a catalog repository.
func New(s store, keys keyspace.Keyspace) *Repo {
	return &Repo{store: s, keys: keys}
}

// Exists reports whether path is a known topic.
func (r *Repo) Exists(ctx context.Context, path topicpath.Path) (bool, error) {
	ok, err := r.store.Exists(ctx, r.keys.Node(path.String()))
	if err != nil {
		return false, fmt.Errorf("catalog exists %s: %w", path, err)
	}
	return ok, nil
}

// Get returns a topic node or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, path topicpath.Path) (Node, error) {
	m, err := r.store.HGetAll(ctx, r.keys.Node(path.String()))
	if err != nil {
		return Node{}, fmt.Errorf("catalog get %s: %w", path, err)
	}
	if len(m) == 0 {
		return Node{}, domain.ErrNotFound
	}
	return Node{Path: path, Title: m[fieldTitle]}, nil
}

// Put stores nodes in one pipelined write and returns the number of hashes written.
// Ancestors missing from the batch are written without a title field, so the
// catalog stays closed under prefixes and existing titles are kept.
func (r *Repo) Put(ctx context.Context, nodes []Node) (int, error) {
	seen := make(map[topicpath.Path]bool, len(nodes))
	items := make([]db.HashSetItem, 0, len(nodes))

	for _, n := range nodes {
		if n.Path.IsUnmapped() {
			return 0, fmt.Errorf("catalog put: %q is not a catalog topic", n.Path)
		}
		if seen[n.Path] {
			continue
		}
		seen[n.Path] = true
		items = append(items, r.item(n))
	}
	for _, n := range nodes {
		for _, a := range n.Path.Ancestors() {
			if seen[a] {
				continue
			}
			seen[a] = true
			items = append(items, db.HashSetItem{
				Key:    r.keys.Node(a.String()),
				Fields: map[string]string{fieldDepth: strconv.Itoa(a.Depth())},
			})
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return 0, fmt.Errorf("catalog put: %w", err)
	}
	return len(items), nil
}

func (r *Repo) item(n Node) db.HashSetItem {
	return db.HashSetItem{
		Key: r.keys.Node(n.Path.String()),
		Fields: map[string]string{
			fieldTitle: n.Title,
			fieldDepth: strconv.Itoa(n.Path.Depth()),
		},
	}
}
