package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder caps the request rate against the embedding API to
// stay under provider quotas when many chunks embed concurrently.
type RateLimitedEmbedder struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder wraps inner with a token-bucket limiter allowing
// perSecond requests with a burst of the same size. A non-positive rate
// disables limiting.
func NewRateLimitedEmbedder(inner Embedder, perSecond int) *RateLimitedEmbedder {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = perSecond
	}
	return &RateLimitedEmbedder{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Embed blocks until the limiter grants a slot, then delegates.
func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) (Embedding, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Embedding{}, fmt.Errorf("rate limiter: %w", err)
	}
	return r.inner.Embed(ctx, text)
}
