// Package fusion merges semantic and lexical rankings with weighted Reciprocal Rank Fusion.
//
//	score = w_sem/(k + rank_sem) + w_key/(k + rank_key)
//
// A ranking the item is absent from contributes exactly zero.
package fusion

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
)

// Default fusion parameters.
const (
	DefaultSemWeight = 0.3
	DefaultKeyWeight = 0.7
	// DefaultK is the RRF smoothing constant (Cormack et al. 2009).
	DefaultK = 60
)

// Weights configures the fusion. Passed by value; never shared mutably.
type Weights struct {
	Sem float64
	Key float64
	K   int
}

// DefaultWeights returns the process-wide defaults.
func DefaultWeights() Weights {
	return Weights{Sem: DefaultSemWeight, Key: DefaultKeyWeight, K: DefaultK}
}

// Validate checks that the weights produce meaningful scores.
func (w Weights) Validate() error {
	if w.Sem < 0 || w.Key < 0 {
		return fmt.Errorf("fusion weights must be non-negative (sem=%g, key=%g)", w.Sem, w.Key)
	}
	if w.Sem == 0 && w.Key == 0 {
		return fmt.Errorf("at least one fusion weight must be positive")
	}
	if w.K < 0 {
		return fmt.Errorf("rrf k must be non-negative, got %d", w.K)
	}
	return nil
}

// Score fuses two 1-based ranks. A nil or non-positive rank is absent and contributes 0.
func Score(rankSem, rankKey *int, w Weights) float64 {
	var s float64
	if rankSem != nil && *rankSem > 0 {
		s += w.Sem / float64(w.K+*rankSem)
	}
	if rankKey != nil && *rankKey > 0 {
		s += w.Key / float64(w.K+*rankKey)
	}
	return s
}

// Apply returns rows scored with w, sorted deterministically.
// The input slice is not modified.
func Apply(rows []result.Row, w Weights) []result.Row {
	out := make([]result.Row, len(rows))
	for i := range rows {
		out[i] = rows[i].WithScore(Score(rows[i].RankSem(), rows[i].RankKey(), w))
	}
	Sort(out)
	return out
}

// Sort orders rows by score descending, breaking ties by content id ascending,
// so identical inputs always produce identical order.
func Sort(rows []result.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		si, sj := rows[i].Score(), rows[j].Score()
		if si != sj {
			return si > sj
		}
		return rows[i].ID() < rows[j].ID()
	})
}
