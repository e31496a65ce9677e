// Package ddg searches the DuckDuckGo HTML endpoint. It needs no API
// key, which is why it is the default discovery backend.
package ddg

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/aragant-group/b2b-intel/internal/httpx"
)

const defaultBaseURL = "https://html.duckduckgo.com/html/"

// Result is a single organic search result.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchPage holds parsed results plus the raw page for callers that
// want to mine it further.
type SearchPage struct {
	Results []Result `json:"results"`
	HTML    string   `json:"-"`
}

// Client performs searches against DuckDuckGo.
type Client interface {
	Search(ctx context.Context, query string) (*SearchPage, error)
}

// Option configures the client.
type Option func(*htmlClient)

// WithBaseURL overrides the default endpoint (used by tests).
func WithBaseURL(base string) Option {
	return func(c *htmlClient) {
		c.baseURL = base
	}
}

// WithMaxResults caps how many results Search returns. Default 10.
func WithMaxResults(n int) Option {
	return func(c *htmlClient) {
		c.maxResults = n
	}
}

type htmlClient struct {
	fetch      *httpx.Client
	baseURL    string
	maxResults int
}

// NewClient creates a DuckDuckGo search client on top of the shared
// rate-limited fetcher.
func NewClient(fetch *httpx.Client, opts ...Option) Client {
	c := &htmlClient{
		fetch:      fetch,
		baseURL:    defaultBaseURL,
		maxResults: 10,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var (
	resultLinkRe    = regexp.MustCompile(`(?s)<a[^>]+class="result__a"[^>]+href="([^"]+)"[^>]*>(.*?)</a>`)
	resultSnippetRe = regexp.MustCompile(`(?s)class="result__snippet"[^>]*>(.*?)</a>`)
	tagRe           = regexp.MustCompile(`<[^>]+>`)
)

func (c *htmlClient) Search(ctx context.Context, query string) (*SearchPage, error) {
	u := c.baseURL + "?q=" + url.QueryEscape(query)
	res, err := c.fetch.Get(ctx, u)
	if err != nil {
		return nil, eris.Wrapf(err, "ddg: search %q", query)
	}
	if res.StatusCode != 200 {
		return nil, eris.Errorf("ddg: search %q: unexpected status %d", query, res.StatusCode)
	}

	html := string(res.Body)
	page := &SearchPage{HTML: html}

	snippets := resultSnippetRe.FindAllStringSubmatch(html, -1)
	for i, m := range resultLinkRe.FindAllStringSubmatch(html, -1) {
		if len(page.Results) >= c.maxResults {
			break
		}
		target := resolveRedirect(m[1])
		if target == "" {
			continue
		}
		r := Result{
			URL:   target,
			Title: cleanText(m[2]),
		}
		if i < len(snippets) {
			r.Snippet = cleanText(snippets[i][1])
		}
		page.Results = append(page.Results, r)
	}

	return page, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the
// destination URL. Direct links pass through unchanged.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.Contains(u.Host, "duckduckgo.com") && u.Path == "/l/" {
		target := u.Query().Get("uddg")
		if target == "" {
			return ""
		}
		return target
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#x27;", "'")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	return strings.TrimSpace(s)
}
