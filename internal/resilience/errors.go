package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// RetryableError marks an error as safe to retry, carrying the HTTP status
// that triggered it when one exists.
type RetryableError struct {
	Err    error
	Status int
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// MarkRetryable wraps err as retryable. Status may be zero for non-HTTP
// failures.
func MarkRetryable(err error, status int) error {
	return &RetryableError{Err: err, Status: status}
}

// Retryable reports whether err should be retried: explicitly marked errors,
// network timeouts, and connection-level failures.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// HTTP client errors often arrive wrapped beyond recognition; fall back
	// to message matching for the common connection failures.
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// RetryableStatus reports whether an HTTP status code indicates a transient
// server-side failure.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
