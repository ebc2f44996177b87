package middleware

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	engineerrors "github.com/deepresearchhq/engine/errors"
	"github.com/deepresearchhq/engine/model"
)

// RetryConfig configures backoff for a Complete call retried against a
// provider. Adapted from the teacher's runtime/a2a/retry.Config, narrowed to
// the model.Client boundary and keyed off the engine's own transient-error
// taxonomy instead of HTTP status inspection.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Jitter            float64
}

// DefaultRetryConfig returns a sensible default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

// ExhaustedError is returned when all retry attempts have been exhausted.
type ExhaustedError struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts over %v: %v", e.Attempts, e.TotalDuration, e.LastError)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastError
}

type retryingClient struct {
	next model.Client
	cfg  RetryConfig
}

// WithRetry wraps a model.Client so transient LLMError/RateLimitError
// failures (per errors.IsTransient) are retried with exponential backoff and
// jitter before surfacing to the caller.
func WithRetry(next model.Client, cfg RetryConfig) model.Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &retryingClient{next: next, cfg: cfg}
}

func (c *retryingClient) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !engineerrors.IsTransient(err) {
			return model.Response{}, err
		}
		if attempt >= c.cfg.MaxAttempts {
			break
		}

		backoff := calculateBackoff(c.cfg, attempt)
		select {
		case <-ctx.Done():
			return model.Response{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return model.Response{}, &ExhaustedError{
		Attempts:      c.cfg.MaxAttempts,
		TotalDuration: time.Since(start),
		LastError:     lastErr,
	}
}

func calculateBackoff(cfg RetryConfig, attempt int) time.Duration {
	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}
	if cfg.Jitter > 0 {
		jitter := backoff * cfg.Jitter * (rand.Float64()*2 - 1) //nolint:gosec // jitter doesn't need crypto rand
		backoff += jitter
	}
	return time.Duration(backoff)
}
