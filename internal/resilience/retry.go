// Package resilience adds per-call timeouts and bounded retries around
// embedding and generation providers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloo-solutions/labelrag/internal/ollama"
	"github.com/cloo-solutions/labelrag/internal/openai"
	goopenai "github.com/sashabaranov/go-openai"
)

// RetryConfig defines configuration for retries
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// Timeout bounds each attempt. Zero disables it.
	Timeout   time.Duration
	RetryIfFn func(error) bool
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		Timeout:         60 * time.Second,
		RetryIfFn:       IsRetryable,
	}
}

// Retry runs operation until it succeeds, returns a non-retryable error, the
// retry budget is spent, or ctx is done.
func Retry[T any](ctx context.Context, cfg RetryConfig, name string, operation func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		b.Multiplier = cfg.Multiplier
	}
	// The retry count is the only budget.
	b.MaxElapsedTime = 0

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.MaxRetries)), ctx)

	retryIf := cfg.RetryIfFn
	if retryIf == nil {
		retryIf = IsRetryable
	}

	attempt := 0
	var (
		result  T
		lastErr error
	)
	err := backoff.Retry(func() error {
		attempt++
		callCtx, cancel := withTimeout(ctx, cfg.Timeout)
		defer cancel()

		var err error
		result, err = operation(callCtx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryIf(err) {
			return backoff.Permanent(err)
		}
		if attempt <= cfg.MaxRetries {
			log.Printf("%s: attempt %d failed, retrying: %v", name, attempt, err)
		}
		return err
	}, policy)
	if err != nil {
		var zero T
		// backoff reports only ctx.Err() when ctx ends between attempts.
		if ctxErr := ctx.Err(); ctxErr != nil && err == ctxErr && lastErr != nil && !errors.Is(lastErr, ctxErr) {
			return zero, fmt.Errorf("%s: %w after %d attempts, last error: %w", name, ctxErr, attempt, lastErr)
		}
		return zero, err
	}
	return result, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// IsRetryable reports whether a provider error may go away on its own:
// timeouts, rate limits, server errors and transport failures. Invalid input
// and wrong-shaped responses are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	for _, permanent := range []error{
		openai.ErrEmptyText, openai.ErrWrongDimensions, openai.ErrNoChoices,
		ollama.ErrEmptyText, ollama.ErrWrongDimensions,
	} {
		if errors.Is(err, permanent) {
			return false
		}
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var temp interface{ Temporary() bool }
	if errors.As(err, &temp) {
		return temp.Temporary()
	}

	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
