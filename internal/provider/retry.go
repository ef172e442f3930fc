package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultRetryBudget is the total number of embedding attempts, including
// the first. Exceeding the budget surfaces ErrEmbeddingUnavailable.
const DefaultRetryBudget = 3

// RetryingEmbedder wraps an Embedder with exponential backoff. Only
// transient failures are retried; context cancellation terminates the
// retry loop immediately.
type RetryingEmbedder struct {
	inner  Embedder
	budget int
}

// NewRetryingEmbedder wraps inner with a retry budget. A budget below one
// is raised to DefaultRetryBudget.
func NewRetryingEmbedder(inner Embedder, budget int) *RetryingEmbedder {
	if budget < 1 {
		budget = DefaultRetryBudget
	}
	return &RetryingEmbedder{inner: inner, budget: budget}
}

// Embed calls the wrapped embedder, retrying transient failures with
// exponential backoff until the budget is spent.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (Embedding, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	var attempts int
	operation := func() (Embedding, error) {
		attempts++
		emb, err := r.inner.Embed(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return Embedding{}, backoff.Permanent(ctx.Err())
			}
			return Embedding{}, err
		}
		return emb, nil
	}

	emb, err := backoff.RetryWithData(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.budget-1)), ctx)) // #nosec G115 -- budget >= 1
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return Embedding{}, perm.Unwrap()
		}
		return Embedding{}, fmt.Errorf("%w: %d attempts failed: %v", ErrEmbeddingUnavailable, attempts, err)
	}
	return emb, nil
}
