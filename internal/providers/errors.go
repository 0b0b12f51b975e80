package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Error kinds surfaced uniformly by every provider. Callers classify with
// errors.Is; RateLimitError additionally carries a Retry-After hint.
var (
	// ErrAuthentication means the API key was rejected. Not retried.
	ErrAuthentication = errors.New("authentication failed")

	// ErrRateLimited means the provider refused the request due to rate
	// limits. Retried with backoff.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout means the call did not complete within the configured
	// timeout. Retried with backoff.
	ErrTimeout = errors.New("request timed out")

	// ErrModelUnavailable means the requested model or backend cannot
	// serve requests at all (missing local model, unknown model name,
	// unreachable local server). Not retried.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrMalformedResponse means the provider answered but the response
	// is not parseable as the expected structured format. Not retried.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// RateLimitError is a rate-limit rejection with provider metadata.
// It unwraps to ErrRateLimited.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// IsRateLimitError extracts a structured RateLimitError if present.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// IsRetryable reports whether the error kind is worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}

// classifyHTTPStatus maps a non-2xx provider status to the error taxonomy.
func classifyHTTPStatus(provider string, status int, body string, retryAfter time.Duration) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s rejected credentials (status %d)", ErrAuthentication, provider, status)
	case http.StatusTooManyRequests:
		return &RateLimitError{
			Message:    fmt.Sprintf("%s rate limited: %s", provider, truncate(body, 200)),
			RetryAfter: retryAfter,
			StatusCode: status,
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s status %d", ErrTimeout, provider, status)
	case http.StatusNotFound, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s status %d: %s", ErrModelUnavailable, provider, status, truncate(body, 200))
	default:
		return fmt.Errorf("%s error (status %d): %s", provider, status, truncate(body, 200))
	}
}

// wrapTransportError maps network-level failures to the taxonomy.
func wrapTransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, provider, err)
	}
	return fmt.Errorf("%s request failed: %w", provider, err)
}

// parseRetryAfter reads a Retry-After header value (delta seconds or HTTP date).
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
