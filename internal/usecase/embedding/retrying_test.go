package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/syllabus/internal/domain"
)

// flakyEmbedder fails with the queued errors before succeeding.
type flakyEmbedder struct {
	errs  []error
	calls int
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 3}, nil
}

func transientErr() error {
	return fmt.Errorf("embedding API error 503: %w: %w", domain.ErrEmbeddingProviderError, domain.ErrProviderTransient)
}

func newTestRetrying(inner domain.Embedder) (*RetryingEmbedder, *[]time.Duration) {
	r := NewRetryingEmbedder(inner, "test", DefaultRetryPolicy(), zap.NewNop())
	var delays []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return r, &delays
}

func TestRetrying_SucceedsAfterTransient(t *testing.T) {
	inner := &flakyEmbedder{errs: []error{transientErr(), transientErr()}}
	r, delays := newTestRetrying(inner)

	ctx, usage := domain.NewContextWithUsage(context.Background())
	res, err := r.Embed(ctx, "q")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
	if res.Retries != 2 || usage.Retries != 2 {
		t.Errorf("retries = %d / usage %d, want 2", res.Retries, usage.Retries)
	}
	if len(*delays) != 2 || (*delays)[0] != 200*time.Millisecond || (*delays)[1] != 400*time.Millisecond {
		t.Errorf("delays = %v, want [200ms 400ms]", *delays)
	}
}

func TestRetrying_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &flakyEmbedder{errs: []error{transientErr(), transientErr(), transientErr(), transientErr()}}
	r, _ := newTestRetrying(inner)

	_, err := r.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 1 + 2 retries", inner.calls)
	}
}

func TestRetrying_NonTransientNotRetried(t *testing.T) {
	inner := &flakyEmbedder{errs: []error{
		fmt.Errorf("embedding API error 400: %w", domain.ErrEmbeddingProviderError),
	}}
	r, delays := newTestRetrying(inner)

	_, err := r.Embed(context.Background(), "q")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if inner.calls != 1 || len(*delays) != 0 {
		t.Errorf("calls = %d, delays = %v", inner.calls, *delays)
	}
}

func TestRetrying_StopsOnCancel(t *testing.T) {
	inner := &flakyEmbedder{errs: []error{transientErr(), transientErr()}}
	r := NewRetryingEmbedder(inner, "test", RetryPolicy{MaxRetries: 2, BaseDelay: time.Hour}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Embed(ctx, "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("sleep ignored cancellation")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestRetrying_ZeroRetries(t *testing.T) {
	inner := &flakyEmbedder{errs: []error{transientErr()}}
	r := NewRetryingEmbedder(inner, "test", RetryPolicy{MaxRetries: 0}, zap.NewNop())

	if _, err := r.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1", inner.calls)
	}
}

func TestRetrying_BatchEmbed(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}, batchErr: transientErr()}
	r, delays := newTestRetrying(inner)

	if _, err := r.BatchEmbed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error")
	}
	if inner.batchCalls != 3 || len(*delays) != 2 {
		t.Errorf("batch calls = %d, delays = %v", inner.batchCalls, *delays)
	}
}
