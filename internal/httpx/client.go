// Package httpx provides the shared outbound HTTP client. Every
// provider and the crawler fetch through it, so per-host politeness
// and throttle handling live in exactly one place.
package httpx

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aragant-group/b2b-intel/internal/resilience"
)

// maxBodyBytes caps how much of a response body is read. Pages larger
// than this are truncated, not failed.
const maxBodyBytes = 2 << 20

// throttleScanLimit bounds payload-marker throttle detection to small
// bodies. A real page mentioning "rate limit" in prose must not trip it.
const throttleScanLimit = 2048

// Options configures the client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// MaxAttempts is the total attempts per request including the first.
	MaxAttempts int
	// InitialBackoff is the base delay before the first retry.
	InitialBackoff time.Duration
	// HostRate/HostBurst configure the limiter created for each new host.
	HostRate  rate.Limit
	HostBurst int
}

// Result is a completed HTTP fetch.
type Result struct {
	StatusCode  int
	Body        []byte
	ContentType string
	FinalURL    string
}

// Client is a rate-limited HTTP client with retry on transient
// failures. Safe for concurrent use.
type Client struct {
	http *http.Client
	opts Options

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Client with the given options, filling in defaults.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialBackoff == 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; b2b-intel/1.0)"
	}
	if opts.HostRate == 0 {
		opts.HostRate = 2
	}
	if opts.HostBurst == 0 {
		opts.HostBurst = 2
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiterFor returns the limiter for a host, creating it on first use.
func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = rate.NewLimiter(c.opts.HostRate, c.opts.HostBurst)
		c.limiters[host] = lim
	}
	return lim
}

// Get fetches a URL with rate limiting and retry. Redirects are
// followed; Result.FinalURL reflects the landing URL.
func (c *Client) Get(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "httpx: create request")
	}
	return c.Do(req)
}

// Do executes a request with rate limiting, retry on 429/5xx and
// throttle payloads, and exponential backoff. On exhaustion a
// resilience.TransientError is returned so callers can classify it.
func (c *Client) Do(req *http.Request) (*Result, error) {
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	}

	ctx := req.Context()
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = c.opts.MaxAttempts
	cfg.InitialBackoff = c.opts.InitialBackoff
	cfg.OnRetry = resilience.RetryLogger("httpx", req.URL.Host)

	res, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Result, error) {
		return c.attempt(ctx, req)
	})
	if err != nil {
		if resilience.IsTransient(err) {
			return nil, eris.Wrapf(err, "httpx: %s %s: retries exhausted", req.Method, req.URL)
		}
		return nil, eris.Wrapf(err, "httpx: %s %s", req.Method, req.URL)
	}
	return res, nil
}

func (c *Client) attempt(ctx context.Context, req *http.Request) (*Result, error) {
	if err := c.limiterFor(req.URL.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	cloned := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, eris.Wrap(err, "reread request body")
		}
		cloned.Body = body
	}

	resp, err := c.http.Do(cloned)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), resp.StatusCode)
	}

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		zap.L().Warn("transient http status, backing off",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
		)
		return nil, resilience.NewTransientError(
			eris.Errorf("http %d from %s", resp.StatusCode, req.URL), resp.StatusCode)
	}

	if len(body) <= throttleScanLimit && resilience.IsThrottlePayload(string(body)) {
		zap.L().Warn("throttle payload despite ok status, backing off",
			zap.String("url", req.URL.String()),
		)
		return nil, resilience.NewTransientError(
			eris.Errorf("throttle payload from %s", req.URL), resp.StatusCode)
	}

	finalURL := req.URL.String()
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}, nil
}

// Hostname extracts the registrable host from a raw URL, without port.
// Returns "" when the URL does not parse.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
