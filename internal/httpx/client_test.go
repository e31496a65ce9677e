package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aragant-group/b2b-intel/internal/resilience"
)

func testClient() *Client {
	return New(Options{
		Timeout:        2 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		HostRate:       rate.Inf,
		HostBurst:      1,
	})
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	res, err := testClient().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(res.Body))
	assert.Contains(t, res.ContentType, "text/html")
}

func TestGet_RetriesOn503(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	res, err := testClient().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(res.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_TransientOnExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Options{MaxAttempts: 2, InitialBackoff: time.Millisecond, HostRate: rate.Inf, HostBurst: 1})
	_, err := c.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestGet_NoRetryOn404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res, err := testClient().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_ThrottlePayloadRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"error":"QUERY_LIMIT_EXCEEDED"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	res, err := testClient().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `{"result":"ok"}`, string(res.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_LargeBodySkipsThrottleScan(t *testing.T) {
	// A long page that merely mentions rate limits is a real page.
	page := make([]byte, 4096)
	copy(page, []byte("<html>article about rate limit strategies"))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(page)
	}))
	defer srv.Close()

	res, err := testClient().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestLimiterFor_SharedPerHost(t *testing.T) {
	c := testClient()
	a := c.limiterFor("example.com")
	b := c.limiterFor("example.com")
	other := c.limiterFor("other.com")
	assert.Same(t, a, b)
	assert.NotSame(t, a, other)
}

func TestHostname(t *testing.T) {
	assert.Equal(t, "example.com", Hostname("https://Example.com:8443/path?q=1"))
	assert.Equal(t, "", Hostname("://bad"))
}
