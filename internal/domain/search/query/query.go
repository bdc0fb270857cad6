// Package query defines the retrieval request handed to the search backend.
package query

import "github.com/kailas-cloud/syllabus/internal/domain/topicpath"

// Query is a subtree-bounded hybrid retrieval request.
type Query struct {
	Text string
	// Vector nil runs the lexical ranking only.
	Vector []float32
	// Root bounds every returned row to its subtree.
	Root      topicpath.Path
	Subject   string
	Lang      string
	DensePool int
	KeyPool   int
}

// Lexical reports whether the query carries no vector.
func (q *Query) Lexical() bool { return len(q.Vector) == 0 }
