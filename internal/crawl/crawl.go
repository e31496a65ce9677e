// Package crawl walks a company website breadth-first and aggregates
// the contact signals found on each page.
package crawl

import (
	"context"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/aragant-group/b2b-intel/internal/extract"
	"github.com/aragant-group/b2b-intel/internal/httpx"
	"github.com/aragant-group/b2b-intel/internal/model"
)

// Options bound a single site crawl.
type Options struct {
	MaxDepth int
	MaxPages int
	// Delay is the politeness pause between successive fetches.
	Delay time.Duration
}

// DefaultOptions returns the crawl bounds used in production.
func DefaultOptions() Options {
	return Options{
		MaxDepth: 2,
		MaxPages: 10,
		Delay:    500 * time.Millisecond,
	}
}

// Crawler fetches pages through the shared rate-limited client.
type Crawler struct {
	client *httpx.Client
	opts   Options
}

// New creates a Crawler.
func New(client *httpx.Client, opts Options) *Crawler {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 2
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	return &Crawler{client: client, opts: opts}
}

type crawlItem struct {
	url   string
	depth int
}

// Site crawls startURL and same-host pages up to the configured depth
// and page budget, returning the merged signal set. Per-page failures
// are logged and skipped; an unreachable seed yields an empty set.
// The returned error is non-nil only when ctx is canceled.
func (c *Crawler) Site(ctx context.Context, startURL string) (*model.SignalSet, error) {
	set := &model.SignalSet{}

	seed, err := normalizeURL(startURL)
	if err != nil {
		zap.L().Warn("crawl: bad seed url", zap.String("url", startURL), zap.Error(err))
		return set, nil
	}
	base, err := url.Parse(seed)
	if err != nil {
		return set, nil
	}

	// Two queues implement the contact-priority frontier: pages whose
	// URL looks like a contact page are visited before the rest.
	var priority, normal []crawlItem
	seen := map[string]bool{canonicalURL(base): true}
	normal = append(normal, crawlItem{url: seed, depth: 0})

	fetched := 0
	for fetched < c.opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return set, err
		}

		var item crawlItem
		switch {
		case len(priority) > 0:
			item, priority = priority[0], priority[1:]
		case len(normal) > 0:
			item, normal = normal[0], normal[1:]
		default:
			return set, nil
		}

		if fetched > 0 && c.opts.Delay > 0 {
			timer := time.NewTimer(c.opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return set, ctx.Err()
			case <-timer.C:
			}
		}

		html, finalURL, ok := c.fetchHTML(ctx, item.url)
		if !ok {
			continue
		}
		fetched++

		page := extract.Page(html, finalURL)
		page.PagesSeen = 1
		set.Merge(page)
		set.PagesSeen = fetched

		if item.depth >= c.opts.MaxDepth {
			continue
		}
		for _, link := range parseLinks(html, base) {
			canon := canonicalURL(link)
			if seen[canon] {
				continue
			}
			if hasBinaryExtension(link.Path) {
				continue
			}
			seen[canon] = true
			next := crawlItem{url: link.String(), depth: item.depth + 1}
			if extract.IsContactPage(next.url) {
				priority = append(priority, next)
			} else {
				normal = append(normal, next)
			}
		}
	}

	return set, nil
}

// fetchHTML fetches one page and returns decoded HTML. ok is false for
// any failure or non-HTML response; those do not consume page budget.
func (c *Crawler) fetchHTML(ctx context.Context, pageURL string) (html, finalURL string, ok bool) {
	res, err := c.client.Get(ctx, pageURL)
	if err != nil {
		zap.L().Debug("crawl: fetch failed", zap.String("url", pageURL), zap.Error(err))
		return "", "", false
	}
	if res.StatusCode != 200 {
		return "", "", false
	}

	mediaType, params, err := mime.ParseMediaType(res.ContentType)
	if err == nil && mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		zap.L().Debug("crawl: skipping non-html",
			zap.String("url", pageURL),
			zap.String("content_type", mediaType),
		)
		return "", "", false
	}

	return decodeCharset(res.Body, params["charset"]), res.FinalURL, true
}

// decodeCharset converts a page to UTF-8. The header charset wins;
// otherwise a <meta charset> sniff runs because windows-1251 sites
// routinely omit the header parameter.
func decodeCharset(body []byte, charset string) string {
	if charset == "" {
		charset = sniffMetaCharset(body)
	}
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(body)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(body)
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

func sniffMetaCharset(body []byte) string {
	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := strings.ToLower(string(head))
	for _, marker := range []string{`charset="`, `charset='`, `charset=`} {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		rest := lower[idx+len(marker):]
		end := strings.IndexAny(rest, `"'> ;`)
		if end < 0 {
			end = len(rest)
		}
		if cs := strings.TrimSpace(rest[:end]); cs != "" {
			return cs
		}
	}
	return ""
}

// binaryExtensions are never worth fetching during a crawl.
var binaryExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".zip": {}, ".rar": {}, ".gz": {}, ".7z": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {}, ".bmp": {},
	".mp3": {}, ".mp4": {}, ".avi": {}, ".mov": {}, ".wmv": {},
	".css": {}, ".js": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

func hasBinaryExtension(urlPath string) bool {
	_, ok := binaryExtensions[strings.ToLower(path.Ext(urlPath))]
	return ok
}

// canonicalURL reduces a URL to scheme://host/path for the visited
// set. Query and fragment are stripped so tracking parameters do not
// defeat dedup.
func canonicalURL(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return u.Scheme + "://" + strings.ToLower(u.Host) + strings.TrimSuffix(p, "/")
}

// parseLinks extracts same-host hrefs from HTML, resolved against base.
func parseLinks(html string, base *url.URL) []*url.URL {
	var links []*url.URL
	seen := make(map[string]bool)

	idx := 0
	for {
		pos := strings.Index(html[idx:], `href="`)
		if pos == -1 {
			break
		}
		idx += pos + 6

		end := strings.Index(html[idx:], `"`)
		if end == -1 {
			break
		}
		href := html[idx : idx+end]
		idx += end + 1

		if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			continue
		}

		rel, err := url.Parse(href)
		if err != nil {
			continue
		}
		absolute := base.ResolveReference(rel)
		if !strings.EqualFold(absolute.Host, base.Host) {
			continue
		}
		absolute.Fragment = ""

		key := canonicalURL(absolute)
		if seen[key] {
			continue
		}
		seen[key] = true
		links = append(links, absolute)
	}

	return links
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", eris.Errorf("crawl: url %q has no host", raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
