package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// RetryConfig configures the retry behavior for model calls.
//
// Generation is single-attempt by default: a failed call degrades to the
// apology path at the orchestrator, and only the translation gateway owns
// retrying in this pipeline. MaxRetries exists for deployments that want
// to trade latency for resilience on transient provider errors.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig returns the default policy: one attempt, no retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      0,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings by category,
// matched case-insensitively against err.Error(). String matching is
// used because Genkit and provider SDKs expose no typed errors for
// transient failures.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable"},
	{"connection reset", "timeout", "temporary"},
}

// retryableError reports whether err is transient and worth retrying.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(errStr, sub) {
				return true
			}
		}
	}
	return false
}

// generateWithRetry calls the model, retrying with exponential backoff
// only when MaxRetries allows it. Each attempt waits on the rate limiter,
// so retries cannot amplify a quota problem.
func (c *Composer) generateWithRetry(ctx context.Context, opts []ai.GenerateOption) (*ai.ModelResponse, error) {
	var lastErr error
	delay := c.retryConfig.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := genkit.Generate(ctx, c.g, opts...)
		if err == nil {
			c.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start))
			return resp, nil
		}

		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("generate: %w", err)
		}
		if attempt == c.retryConfig.MaxRetries {
			break
		}

		c.logger.Debug("retrying after transient error",
			"attempt", attempt+1,
			"delay", delay,
			"error", err)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, c.retryConfig.MaxInterval)
		}
	}

	return nil, fmt.Errorf("generate after %d attempts (elapsed: %v): %w",
		c.retryConfig.MaxRetries+1, time.Since(start), lastErr)
}
