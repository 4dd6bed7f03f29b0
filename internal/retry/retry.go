// Package retry provides a bounded-retry combinator with exponential
// backoff and a shared transient-error classifier for network and API
// failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/specrag/specrag-cli/internal/core/domain"
	"github.com/specrag/specrag-cli/internal/logger"
)

// Policy bounds a retry loop.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second try; later waits double.
	BaseDelay time.Duration
}

// DefaultPolicy matches the pipeline's job retry budget.
var DefaultPolicy = Policy{
	MaxAttempts: domain.DefaultMaxAttempts,
	BaseDelay:   domain.DefaultBackoffBase,
}

// Classifier reports whether an error is worth retrying.
type Classifier func(error) bool

// Do runs fn until it succeeds, the classifier rejects its error, or
// the policy's attempt budget runs out. The last error is returned.
func Do(ctx context.Context, policy Policy, classify Classifier, fn func(ctx context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if classify == nil {
		classify = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := domain.BackoffDelay(policy.BaseDelay, attempt-1)
			logger.Debug("retrying in %s (attempt %d/%d): %v", delay, attempt, policy.MaxAttempts, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", policy.MaxAttempts, lastErr)
}

// IsTransient reports whether an error looks like a temporary network
// or service condition. Empty-content and unsupported-format errors
// are always terminal.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrEmptyContent) ||
		errors.Is(err, domain.ErrUnsupportedFormat) ||
		errors.Is(err, domain.ErrSchemaInconsistency) ||
		errors.Is(err, domain.ErrInvalidInput) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit",
		"timeout",
		"timed out",
		"connection refused",
		"connection reset",
		"temporarily unavailable",
		"service unavailable",
		"status 429",
		"status 500",
		"status 502",
		"status 503",
		"status 504",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
