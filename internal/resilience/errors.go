// Package resilience provides the error taxonomy and retry primitives
// shared by every outbound client in the pipeline. An error is either
// transient (retry is worthwhile) or fatal; an empty result is not an
// error at all.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry: 429/5xx from a
// scraped source, a network timeout, or a throttle payload such as the
// Bitrix QUERY_LIMIT_EXCEEDED answer that arrives with status 200.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP
// status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient returns true if the error (or any error in its chain) is
// a TransientError, or matches common network-level transient patterns.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
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

	// String heuristics for errors already wrapped by an HTTP client.
	// Small-business hosting drops connections often enough that these
	// are worth a second attempt.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true for status codes worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// throttleMarkers are substrings a source puts in an HTTP 200 body when
// it is actually refusing service. Bitrix reports QUERY_LIMIT_EXCEEDED
// this way; some registry mirrors answer in Russian.
var throttleMarkers = []string{
	"query_limit_exceeded",
	"rate limit",
	"too many requests",
	"превышен лимит",
}

// IsThrottlePayload reports whether a response body signals throttling
// despite a successful status code.
func IsThrottlePayload(body string) bool {
	lower := strings.ToLower(body)
	for _, m := range throttleMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
