package domain

import "context"

type embeddingUsageKey struct{}

// EmbeddingUsage accumulates provider usage across one request: the handler
// installs it, the embedder chain writes to it, the handler reports it.
// A nil *EmbeddingUsage is valid and records nothing.
type EmbeddingUsage struct {
	TotalTokens int
	Retries     int
	// Used is set once any embedding was requested, including cache hits.
	Used bool
}

// NewContextWithUsage installs a fresh collector in ctx.
func NewContextWithUsage(ctx context.Context) (context.Context, *EmbeddingUsage) {
	u := &EmbeddingUsage{}
	return context.WithValue(ctx, embeddingUsageKey{}, u), u
}

// UsageFromContext returns the collector installed in ctx, or nil.
func UsageFromContext(ctx context.Context) *EmbeddingUsage {
	u, _ := ctx.Value(embeddingUsageKey{}).(*EmbeddingUsage)
	return u
}

// AddTokens records consumed tokens.
func (u *EmbeddingUsage) AddTokens(n int) {
	if u == nil {
		return
	}
	u.TotalTokens += n
	u.Used = true
}

// AddRetry records one extra provider attempt.
func (u *EmbeddingUsage) AddRetry() {
	if u == nil {
		return
	}
	u.Retries++
}

// RetryCount returns the retries recorded so far; 0 on a nil collector.
func (u *EmbeddingUsage) RetryCount() int {
	if u == nil {
		return 0
	}
	return u.Retries
}
