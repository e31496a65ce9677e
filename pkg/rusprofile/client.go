// Package rusprofile scrapes the public RusProfile search page for
// legal-entity registry data (ИНН, ОГРН, director, legal address).
package rusprofile

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/aragant-group/b2b-intel/internal/httpx"
)

const defaultBaseURL = "https://www.rusprofile.ru"

// CompanyCard is the registry data scraped for one company.
type CompanyCard struct {
	INN      string `json:"inn,omitempty"`
	OGRN     string `json:"ogrn,omitempty"`
	Director string `json:"director,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Empty reports whether the scrape found nothing usable.
func (c *CompanyCard) Empty() bool {
	return c.INN == "" && c.OGRN == "" && c.Director == "" && c.Address == ""
}

// Client looks up companies in the registry.
type Client interface {
	// Find searches by company name and scrapes the top match. A nil
	// card with nil error means the registry had no match.
	Find(ctx context.Context, companyName string) (*CompanyCard, error)
}

// Option configures the client.
type Option func(*scrapeClient)

// WithBaseURL overrides the site root (used by tests).
func WithBaseURL(base string) Option {
	return func(c *scrapeClient) {
		c.baseURL = base
	}
}

type scrapeClient struct {
	fetch   *httpx.Client
	baseURL string
}

// NewClient creates a registry client on top of the shared fetcher.
func NewClient(fetch *httpx.Client, opts ...Option) Client {
	c := &scrapeClient{
		fetch:   fetch,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var (
	innRe  = regexp.MustCompile(`(?i)ИНН[^0-9]{0,30}(\d{10,12})`)
	ogrnRe = regexp.MustCompile(`(?i)ОГРН(?:ИП)?[^0-9]{0,30}(\d{13,15})`)

	// Director lines look like "Генеральный директор</span> ...
	// <span ...>Иванов Иван Иванович</span>".
	directorRe = regexp.MustCompile(`(?is)(?:генеральный директор|директор|руководитель)[^А-ЯЁ]{0,200}?([А-ЯЁ][а-яё]+(?:\s+[А-ЯЁ][а-яё]+){1,2})`)

	addressItemRe = regexp.MustCompile(`(?is)itemprop="address"[^>]*>(.*?)</`)
	addressTagRe  = regexp.MustCompile(`(?is)<address[^>]*>(.*?)</address>`)

	tagRe = regexp.MustCompile(`<[^>]+>`)
)

func (c *scrapeClient) Find(ctx context.Context, companyName string) (*CompanyCard, error) {
	u := c.baseURL + "/search?query=" + url.QueryEscape(companyName)
	res, err := c.fetch.Get(ctx, u)
	if err != nil {
		return nil, eris.Wrapf(err, "rusprofile: search %q", companyName)
	}
	if res.StatusCode != 200 {
		return nil, eris.Errorf("rusprofile: search %q: unexpected status %d", companyName, res.StatusCode)
	}

	card := parseCard(string(res.Body))
	if card.Empty() {
		return nil, nil
	}
	return card, nil
}

func parseCard(html string) *CompanyCard {
	card := &CompanyCard{}

	if m := innRe.FindStringSubmatch(html); m != nil && validINNLength(m[1]) {
		card.INN = m[1]
	}
	if m := ogrnRe.FindStringSubmatch(html); m != nil && validOGRNLength(m[1]) {
		card.OGRN = m[1]
	}
	if m := directorRe.FindStringSubmatch(html); m != nil {
		card.Director = strings.TrimSpace(m[1])
	}
	if m := addressItemRe.FindStringSubmatch(html); m != nil {
		card.Address = cleanText(m[1])
	} else if m := addressTagRe.FindStringSubmatch(html); m != nil {
		card.Address = cleanText(m[1])
	}

	return card
}

// validINNLength enforces the 10/12 digit shapes; 11 digits is a
// truncation artifact, not a tax number.
func validINNLength(s string) bool {
	return len(s) == 10 || len(s) == 12
}

// validOGRNLength enforces 13 digits for entities, 15 for entrepreneurs.
func validOGRNLength(s string) bool {
	return len(s) == 13 || len(s) == 15
}

func cleanText(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
