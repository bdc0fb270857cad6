package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/domain/search/fusion"
	"github.com/kailas-cloud/syllabus/internal/domain/search/mode"
	"github.com/kailas-cloud/syllabus/internal/domain/search/query"
	"github.com/kailas-cloud/syllabus/internal/domain/search/request"
	"github.com/kailas-cloud/syllabus/internal/domain/search/result"
	"github.com/kailas-cloud/syllabus/internal/domain/topicpath"
	"github.com/kailas-cloud/syllabus/internal/logger"
	"github.com/kailas-cloud/syllabus/internal/metrics"
)

// Default per-call timeouts.
const (
	DefaultEmbedTimeout  = 12 * time.Second
	DefaultSearchTimeout = 8 * time.Second
)

// Config tunes the pipeline. Zero values select defaults.
type Config struct {
	DensePool     int
	KeyPool       int
	EmbedTimeout  time.Duration
	SearchTimeout time.Duration
	// Weights apply when a request carries none.
	Weights fusion.Weights
}

func (c Config) withDefaults() Config {
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = DefaultEmbedTimeout
	}
	if c.SearchTimeout <= 0 {
		c.SearchTimeout = DefaultSearchTimeout
	}
	if c.Weights == (fusion.Weights{}) {
		c.Weights = fusion.DefaultWeights()
	}
	return c
}

// Response is a verified, fused search result.
type Response struct {
	CurrentTopicPath topicpath.Path
	Mode             mode.Mode
	Degraded         bool
	// Retries is the number of extra embedding attempts spent.
	Retries   int
	Rows      []result.Row
	Evidence  []result.Evidence
	Citations []result.Citation
}

// Service answers queries bounded to a topic subtree.
// It is stateless; collaborators must be safe for concurrent use.
type Service struct {
	backend Backend
	catalog Catalog
	embed   Embedder
	log     SearchLog
	cfg     Config
}

// New creates a boundary search service. log may be nil.
func New(backend Backend, catalog Catalog, embed Embedder, log SearchLog, cfg Config) *Service {
	return &Service{
		backend: backend,
		catalog: catalog,
		embed:   embed,
		log:     log,
		cfg:     cfg.withDefaults(),
	}
}

// run carries the state of one search through the pipeline.
type run struct {
	req     *request.Request
	stage   Stage
	root    topicpath.Path
	mode    mode.Mode
	retries int
}

// Search runs the pipeline for req. Every failure is a *domain.SearchError
// except caller cancellation, which returns the context error.
func (s *Service) Search(ctx context.Context, req *request.Request) (*Response, error) {
	start := time.Now()
	if domain.UsageFromContext(ctx) == nil {
		ctx, _ = domain.NewContextWithUsage(ctx)
	}

	r := &run{req: req, stage: StageValidating, mode: mode.Hybrid}
	resp, err := s.run(ctx, r)
	duration := time.Since(start)

	metrics.SearchDuration.WithLabelValues(string(r.mode)).Observe(duration.Seconds())
	if err != nil {
		s.logFailure(ctx, r, err)
		metrics.SearchRequestsTotal.WithLabelValues(string(r.mode), outcome(err)).Inc()
		return nil, err
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(r.mode), "ok").Inc()
	s.record(req, resp, duration)
	return resp, nil
}

func (s *Service) run(ctx context.Context, r *run) (*Response, error) {
	if err := s.verifyPath(ctx, r); err != nil {
		return nil, err
	}
	ctx = logger.With(ctx, zap.String("topic_root", r.root.String()))

	r.stage = StageEmbedding
	vector, err := s.embedQuery(ctx, r)
	if err != nil {
		return nil, err
	}

	r.stage = StageRetrieving
	searchCtx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	rows, err := s.backend.Search(searchCtx, &query.Query{
		Text:      r.req.Query(),
		Vector:    vector,
		Root:      r.root,
		Subject:   r.req.Subject(),
		Lang:      r.req.Lang(),
		DensePool: s.cfg.DensePool,
		KeyPool:   s.cfg.KeyPool,
	})
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewSearchError(domain.KindSearchBackendError, "search backend failed", err)
	}

	r.stage = StageVerifyingBoundary
	if err := s.verifyBoundary(ctx, r, rows); err != nil {
		return nil, err
	}

	r.stage = StageFormatting
	resp := s.format(r, rows)

	r.stage = StageDone
	return resp, nil
}

// verifyPath canonicalizes the requested path and checks it against the catalog.
// Presence and codec failures are reported in StageValidating.
func (s *Service) verifyPath(ctx context.Context, r *run) error {
	raw := r.req.TopicPath()
	if strings.TrimSpace(raw) == "" {
		return domain.NewSearchError(domain.KindTopicPathRequired, "current_topic_path is required", nil)
	}

	root, err := topicpath.Canonicalize(raw)
	if err != nil {
		var pe *topicpath.Error
		if errors.As(err, &pe) {
			return domain.NewSearchError(domain.ErrorKind(pe.Code), pe.Error(), err)
		}
		return domain.NewSearchError(domain.KindTopicPathInvalidFormat, err.Error(), err)
	}
	r.root = root

	r.stage = StageVerifyingPath
	if root.IsUnmapped() {
		return domain.NewSearchError(domain.KindTopicPathUnknown, fmt.Sprintf("%q is not a searchable topic", root), nil)
	}

	exists, err := s.catalog.Exists(ctx, root)
	if err != nil {
		return domain.NewSearchError(domain.KindDatabaseError, "topic catalog lookup failed", err)
	}
	if !exists {
		return domain.NewSearchError(domain.KindTopicPathUnknown, fmt.Sprintf("unknown topic path %q", root), nil)
	}
	return nil
}

// embedQuery returns the query vector, or nil when the search degrades to lexical.
func (s *Service) embedQuery(ctx context.Context, r *run) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	res, err := s.embed.Embed(embedCtx, r.req.Query())
	r.retries = domain.UsageFromContext(ctx).RetryCount()
	if err == nil {
		return res.Embedding, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !r.req.AllowFallback() {
		return nil, domain.NewSearchError(domain.KindEmbeddingUnavailable, "embedding provider unavailable", err)
	}

	r.mode = mode.Lexical
	logger.FromContext(ctx).Warn("Embedding unavailable, degrading to lexical search",
		zap.String("current_topic_path", r.root.String()),
		zap.Int("retries", r.retries),
		zap.Error(err),
	)
	return nil, nil //nolint:nilnil // nil vector selects lexical retrieval
}

// verifyBoundary fails the search when any row lies outside the requested subtree.
// Offending rows are reported, never filtered.
func (s *Service) verifyBoundary(ctx context.Context, r *run, rows []result.Row) error {
	var leaked []domain.LeakedRow
	for i := range rows {
		path := rows[i].TopicPath()
		if path == topicpath.Unmapped.String() || !r.root.Contains(path) {
			leaked = append(leaked, domain.LeakedRow{ID: rows[i].ID(), TopicPath: path})
		}
	}
	if len(leaked) == 0 {
		return nil
	}

	incident := domain.NewLeakageIncident(r.root.String(), r.req.Query(), leaked, len(rows))
	logger.FromContext(ctx).Error("Topic leakage detected",
		zap.String("incident_id", incident.IncidentID),
		zap.String("current_topic_path", incident.Root),
		zap.String("query", incident.Query),
		zap.String("mode", string(r.mode)),
		zap.Int("returned", incident.Returned),
		zap.Strings("leaked_chunk_ids", incident.OffendingIDs()),
		zap.Strings("leaked_topic_paths", incident.OffendingPaths()),
	)
	metrics.LeakageIncidentsTotal.Inc()

	se := domain.NewSearchError(domain.KindTopicLeakageDetected,
		fmt.Sprintf("%d of %d rows are outside %s", len(leaked), len(rows), incident.Root), nil)
	se.IncidentID = incident.IncidentID
	return se
}

func (s *Service) format(r *run, rows []result.Row) *Response {
	fused := fusion.Apply(rows, r.req.Weights(s.cfg.Weights))

	if floor := r.req.MinScore(); floor > 0 {
		kept := fused[:0]
		for _, row := range fused {
			if row.Score() >= floor {
				kept = append(kept, row)
			}
		}
		fused = kept
	}
	if len(fused) > r.req.MatchCount() {
		fused = fused[:r.req.MatchCount()]
	}

	resp := &Response{
		CurrentTopicPath: r.root,
		Mode:             r.mode,
		Degraded:         r.mode.Degraded(),
		Retries:          r.retries,
		Rows:             fused,
		Evidence:         make([]result.Evidence, len(fused)),
		Citations:        make([]result.Citation, len(fused)),
	}
	for i := range fused {
		resp.Evidence[i] = result.ToEvidence(&fused[i])
		resp.Citations[i] = result.ToCitation(&fused[i])
	}
	return resp
}

func (s *Service) record(req *request.Request, resp *Response, d time.Duration) {
	if s.log == nil {
		return
	}
	rec := &domain.SearchRecord{
		Query:      req.Query(),
		Root:       resp.CurrentTopicPath.String(),
		Mode:       string(resp.Mode),
		Duration:   d,
		MatchCount: req.MatchCount(),
		Returned:   len(resp.Rows),
		Degraded:   resp.Degraded,
		Retries:    resp.Retries,
	}
	if len(resp.Rows) > 0 {
		rec.TopID = resp.Rows[0].ID()
		rec.TopScore = resp.Rows[0].Score()
	}
	s.log.Record(rec)
}

func (s *Service) logFailure(ctx context.Context, r *run, err error) {
	l := logger.FromContext(ctx)
	fields := []zap.Field{
		zap.String("stage", r.stage.String()),
		zap.String("mode", string(r.mode)),
		zap.Error(err),
	}
	se, ok := domain.AsSearchError(err)
	switch {
	case !ok:
		l.Info("Search aborted", fields...)
	case se.Kind.IsInputError():
		l.Debug("Search rejected", append(fields, zap.String("code", string(se.Kind)))...)
	case se.Kind == domain.KindTopicLeakageDetected:
		// already logged with the incident
	default:
		l.Warn("Search failed", append(fields, zap.String("code", string(se.Kind)))...)
	}
}

func outcome(err error) string {
	if se, ok := domain.AsSearchError(err); ok {
		return string(se.Kind)
	}
	return "CANCELED"
}
