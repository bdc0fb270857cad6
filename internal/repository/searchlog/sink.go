// Package searchlog records finished searches to a capped Redis stream.
// Recording is best effort: it never blocks or fails a search.
package searchlog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/db"
	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/repository/keyspace"
)

const (
	defaultWorkers = 4
	defaultMaxLen  = 100_000
	defaultTimeout = 2 * time.Second
	releaseTimeout = 5 * time.Second
)

// store is the consumer interface for the search log (ISP).
type store interface {
	XAdd(ctx context.Context, stream string, maxLen int64, fields map[string]string) error
}

func fields(r *domain.SearchRecord) map[string]string {
	return map[string]string{
		"query":       r.Query,
		"root":        r.Root,
		"mode":        r.Mode,
		"duration_ms": strconv.FormatInt(r.Duration.Milliseconds(), 10),
		"match_count": strconv.Itoa(r.MatchCount),
		"returned":    strconv.Itoa(r.Returned),
		"top_score":   strconv.FormatFloat(r.TopScore, 'f', 6, 64),
		"top_id":      r.TopID,
		"degraded":    strconv.FormatBool(r.Degraded),
		"retries":     strconv.Itoa(r.Retries),
	}
}

// Config tunes the sink.
type Config struct {
	Workers int
	MaxLen  int64
	Timeout time.Duration
}

// Sink writes records from a bounded, non-blocking worker pool.
// A nil *Sink discards records.
type Sink struct {
	store    store
	stream   string
	maxLen   int64
	timeout  time.Duration
	pool     *ants.Pool
	failures prometheus.Counter
	logger   *zap.Logger
}

// New creates a sink. failures counts dropped or failed records and may be nil.
func New(s store, keys keyspace.Keyspace, cfg Config, failures prometheus.Counter, logger *zap.Logger) (*Sink, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("search log pool: %w", err)
	}

	return &Sink{
		store:    s,
		stream:   keys.SearchLog(),
		maxLen:   maxLen,
		timeout:  timeout,
		pool:     pool,
		failures: failures,
		logger:   logger,
	}, nil
}

// Record submits rec for writing and returns immediately.
// When every worker is busy the record is dropped.
func (s *Sink) Record(rec *domain.SearchRecord) {
	if s == nil {
		return
	}
	f := fields(rec)
	err := s.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.store.XAdd(ctx, s.stream, s.maxLen, f); err != nil {
			s.fail("write", err)
		}
	})
	if err != nil {
		s.fail("submit", err)
	}
}

// Close waits for in-flight writes, up to a fixed timeout.
func (s *Sink) Close() {
	if s == nil {
		return
	}
	if err := s.pool.ReleaseTimeout(releaseTimeout); err != nil {
		s.logger.Warn("Search log did not drain", zap.Error(err))
	}
}

func (s *Sink) fail(stage string, err error) {
	if s.failures != nil {
		s.failures.Inc()
	}
	if errors.Is(err, db.ErrReadOnly) {
		return
	}
	s.logger.Debug("Search log record dropped", zap.String("stage", stage), zap.Error(err))
}
