package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/extract"
	"github.com/aragant-group/b2b-intel/internal/httpx"
	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/pkg/ddg"
)

// denyDomains lists registrable domains that can never be a company's own
// website: marketplaces, social networks, classifieds, registry mirrors
// and other aggregators that dominate Russian SERPs for company names.
var denyDomains = []string{
	"wildberries.ru",
	"ozon.ru",
	"avito.ru",
	"aliexpress.ru",
	"yandex.ru",
	"mail.ru",
	"dzen.ru",
	"vk.com",
	"ok.ru",
	"instagram.com",
	"facebook.com",
	"youtube.com",
	"t.me",
	"telegram.org",
	"twitter.com",
	"hh.ru",
	"rabota.ru",
	"2gis.ru",
	"zoon.ru",
	"yell.ru",
	"rusprofile.ru",
	"list-org.com",
	"zachestnyibiznes.ru",
	"sbis.ru",
	"checko.ru",
	"companium.ru",
	"audit-it.ru",
	"kontur.ru",
	"spark-interfax.ru",
	"otzovik.com",
	"irecommend.ru",
	"wikipedia.org",
}

// DeniedHost reports whether a host's registrable domain is on the
// deny-list. Subdomains match their parent entry.
func DeniedHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range denyDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// WebSearch discovers a company's website through DuckDuckGo HTML search.
type WebSearch struct {
	search ddg.Client
}

// NewWebSearch creates the web_search provider.
func NewWebSearch(search ddg.Client) *WebSearch {
	return &WebSearch{search: search}
}

func (w *WebSearch) Name() string { return model.ProvenanceWebSearch }

// Fetch runs a few query variants and takes the first result whose domain
// survives the deny-list as the website candidate. Emails appearing in the
// result snippets are harvested on the way.
func (w *WebSearch) Fetch(ctx context.Context, company *model.Company) (*PartialFacts, error) {
	partial := &PartialFacts{Provenance: w.Name()}

	var lastErr error
	for _, query := range searchQueries(company) {
		page, err := w.search.Search(ctx, query)
		if err != nil {
			lastErr = err
			zap.L().Warn("web search query failed",
				zap.String("company", company.Slug),
				zap.String("query", query),
				zap.Error(err),
			)
			continue
		}

		if signals := extract.Page(page.HTML, ""); signals != nil {
			partial.Emails = appendMissing(partial.Emails, signals.Emails)
		}

		for _, res := range page.Results {
			host := httpx.Hostname(res.URL)
			if host == "" || DeniedHost(host) {
				continue
			}
			partial.Website = siteOrigin(res.URL)
			return partial, nil
		}
	}

	if partial.Empty() && lastErr != nil {
		return partial, eris.Wrap(lastErr, "provider: web search")
	}
	return partial, nil
}

// searchQueries builds the query variants in order of specificity.
func searchQueries(company *model.Company) []string {
	name := strings.TrimSpace(company.Name)
	queries := []string{
		fmt.Sprintf("%q официальный сайт", name),
		fmt.Sprintf("%s %s сайт", company.LegalForm, name),
	}
	if company.LegalForm == "" {
		queries[1] = fmt.Sprintf("%s компания сайт", name)
	}
	return queries
}

// siteOrigin reduces a result URL to its origin. Search hits often land on
// deep pages; the website fact is the site root.
func siteOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Scheme + "://" + u.Host
}

func appendMissing(dst []string, src []string) []string {
	for _, v := range src {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
