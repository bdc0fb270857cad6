package filter

import (
	"fmt"

	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
)

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 16

// Index field names the boundary predicate is expressed over.
const (
	FieldTopicPath    = "topic_path"
	FieldTopicLineage = "topic_lineage"
	FieldSubject      = "subject"
	FieldLang         = "lang"
)

// Expression is a conjunction of tag conditions with an optional exclusion group.
type Expression struct {
	must    []Condition
	mustNot []Condition
}

// NewExpression validates and creates a filter Expression.
func NewExpression(must, mustNot []Condition) (Expression, error) {
	if len(must) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Expression{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Expression{must: must, mustNot: mustNot}, nil
}

// Boundary builds the subtree-containment predicate for root:
// the document lineage contains root, and the document is not unmapped.
func Boundary(root topicpath.Path) (Expression, error) {
	if root == "" {
		return Expression{}, fmt.Errorf("boundary root is required")
	}
	if root.IsUnmapped() {
		return Expression{}, fmt.Errorf("boundary root cannot be %q", topicpath.Unmapped)
	}
	in, err := NewMatch(FieldTopicLineage, string(root))
	if err != nil {
		return Expression{}, err
	}
	unmapped, err := NewMatch(FieldTopicPath, string(topicpath.Unmapped))
	if err != nil {
		return Expression{}, err
	}
	return NewExpression([]Condition{in}, []Condition{unmapped})
}

// And returns a copy of e with extra must conditions appended.
func (e Expression) And(conds ...Condition) (Expression, error) {
	must := make([]Condition, 0, len(e.must)+len(conds))
	must = append(must, e.must...)
	must = append(must, conds...)
	return NewExpression(must, e.mustNot)
}

// Must returns the must conditions.
func (e Expression) Must() []Condition { return e.must }

// MustNot returns the must-not conditions.
func (e Expression) MustNot() []Condition { return e.mustNot }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool {
	return len(e.must) == 0 && len(e.mustNot) == 0
}

// Condition is an exact tag match.
type Condition struct {
	key   string
	match string
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }
