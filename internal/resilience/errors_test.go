package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient error", NewTransientError(errors.New("x"), 503), true},
		{"wrapped transient", fmt.Errorf("outer: %w", NewTransientError(errors.New("x"), 429)), true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"message heuristic", errors.New("read tcp: i/o timeout"), true},
		{"plain error", errors.New("invalid input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be fatal", code)
		}
	}
}

func TestIsThrottlePayload(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"bitrix limit", `{"error":"QUERY_LIMIT_EXCEEDED","error_description":"Too many requests"}`, true},
		{"html rate limit", "<html>Rate limit exceeded, slow down</html>", true},
		{"russian marker", "Превышен лимит запросов", true},
		{"normal body", "<html><body>hello</body></html>", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsThrottlePayload(tt.body); got != tt.want {
				t.Errorf("IsThrottlePayload(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}
