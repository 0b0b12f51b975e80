package providers

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// retryProvider applies the shared retry policy: rate-limit and timeout
// errors are retried with exponential backoff and jitter, everything else
// propagates immediately.
type retryProvider struct {
	inner    Provider
	attempts uint
	delay    time.Duration
}

// WithRetry wraps a provider with the retry policy from cfg.
func WithRetry(p Provider, cfg Config) Provider {
	return &retryProvider{
		inner:    p,
		attempts: cfg.maxRetries(),
		delay:    cfg.retryDelay(),
	}
}

func (r *retryProvider) Name() string { return r.inner.Name() }

func (r *retryProvider) Complete(ctx context.Context, prompt string) (string, error) {
	return retry.DoWithData(
		func() (string, error) {
			return r.inner.Complete(ctx, prompt)
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.MaxJitter(r.delay/2),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
}
