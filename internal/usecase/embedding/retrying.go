package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/domain"
	"github.com/kailas-cloud/syllabus/internal/metrics"
)

// Retry defaults.
const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 200 * time.Millisecond
)

// RetryPolicy bounds retries of transient provider failures.
// Attempt n (from 0) waits BaseDelay << n before the next call.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy returns two retries starting at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// RetryingEmbedder retries errors wrapping domain.ErrProviderTransient.
// Every other error, and cancellation of ctx, is returned at once.
type RetryingEmbedder struct {
	inner    domain.Embedder
	provider string
	policy   RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// NewRetryingEmbedder wraps inner with the retry policy.
func NewRetryingEmbedder(inner domain.Embedder, provider string, policy RetryPolicy, logger *zap.Logger) *RetryingEmbedder {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	return &RetryingEmbedder{
		inner:    inner,
		provider: provider,
		policy:   policy,
		sleep:    sleepCtx,
		logger:   logger,
	}
}

// Embed implements domain.Embedder. The result reports the retries spent.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var res domain.EmbeddingResult
	retries, err := r.do(ctx, func() error {
		var err error
		res, err = r.inner.Embed(ctx, text)
		return err
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	res.Retries = retries
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder; the whole batch is retried as a unit.
func (r *RetryingEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	var res domain.BatchEmbeddingResult
	_, err := r.do(ctx, func() error {
		var err error
		res, err = domain.EmbedAll(ctx, r.inner, texts)
		return err
	})
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	return res, nil
}

func (r *RetryingEmbedder) do(ctx context.Context, call func() error) (int, error) {
	usage := domain.UsageFromContext(ctx)

	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return attempt, nil
		}
		if !errors.Is(err, domain.ErrProviderTransient) {
			return attempt, err
		}
		if attempt >= r.policy.MaxRetries {
			return attempt, fmt.Errorf("gave up after %d retries: %w", attempt, err)
		}

		delay := r.policy.BaseDelay << attempt
		r.logger.Warn("Transient embedding failure, retrying",
			zap.String("provider", r.provider),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		metrics.EmbeddingRetriesTotal.WithLabelValues(r.provider).Inc()
		usage.AddRetry()

		if serr := r.sleep(ctx, delay); serr != nil {
			return attempt + 1, fmt.Errorf("retry wait: %w: %w", serr, domain.ErrEmbeddingProviderError)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
