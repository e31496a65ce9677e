// Package bitrix is a minimal Bitrix24 REST client speaking the inbound
// webhook protocol. Bitrix enforces a two-requests-per-second budget and
// signals overruns with a QUERY_LIMIT_EXCEEDED payload on HTTP 200, which
// the shared httpx client already treats as a transient failure.
package bitrix

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/httpx"
)

// Client defines the CRM operations used by the sync command.
type Client interface {
	FindCompanyByTitle(ctx context.Context, title string) (*Company, error)
	CreateCompany(ctx context.Context, fields Fields) (int, error)
	UpdateCompany(ctx context.Context, id int, fields Fields) error
	CreateContact(ctx context.Context, fields Fields) (int, error)
	ListContacts(ctx context.Context, companyID int) ([]Contact, error)
}

// Fields is a set of CRM entity fields keyed by the Bitrix field code.
type Fields map[string]any

// Company is the subset of crm.company fields the pipeline reads back.
type Company struct {
	ID      int    `json:"ID,string"`
	Title   string `json:"TITLE"`
	Comment string `json:"COMMENTS"`
}

// Contact is the subset of crm.contact fields the pipeline reads back.
type Contact struct {
	ID       int    `json:"ID,string"`
	Name     string `json:"NAME"`
	LastName string `json:"LAST_NAME"`
	Post     string `json:"POST"`
}

// MultiField builds a Bitrix multi-value field (PHONE, EMAIL) payload.
func MultiField(valueType string, values ...string) []map[string]string {
	out := make([]map[string]string, 0, len(values))
	for _, v := range values {
		out = append(out, map[string]string{
			"VALUE":      v,
			"VALUE_TYPE": valueType,
		})
	}
	return out
}

type client struct {
	fetch      *httpx.Client
	webhookURL string
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient overrides the underlying httpx client.
func WithHTTPClient(fetch *httpx.Client) Option {
	return func(c *client) {
		c.fetch = fetch
	}
}

// NewClient creates a Bitrix client for an inbound webhook URL of the
// form https://<portal>.bitrix24.ru/rest/<user>/<token>.
func NewClient(webhookURL string, opts ...Option) Client {
	c := &client{
		webhookURL: strings.TrimRight(webhookURL, "/"),
		fetch: httpx.New(httpx.Options{
			HostRate:  2,
			HostBurst: 1,
		}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// apiResponse is the common REST envelope. Errors arrive with HTTP 200.
type apiResponse struct {
	Result           json.RawMessage `json:"result"`
	Next             *int            `json:"next"`
	Total            int             `json:"total"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func (c *client) call(ctx context.Context, method string, payload any) (*apiResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrapf(err, "bitrix: marshal %s payload", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.webhookURL+"/"+method+".json", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "bitrix: create %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.fetch.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "bitrix: %s", method)
	}
	if res.StatusCode != http.StatusOK {
		return nil, eris.Errorf("bitrix: %s: http %d", method, res.StatusCode)
	}

	var resp apiResponse
	if err := json.Unmarshal(res.Body, &resp); err != nil {
		return nil, eris.Wrapf(err, "bitrix: decode %s response", method)
	}
	if resp.Error != "" {
		return nil, eris.Errorf("bitrix: %s: %s (%s)", method, resp.Error, resp.ErrorDescription)
	}
	return &resp, nil
}

// listAll walks a crm.*.list method through start/next pagination and
// returns the concatenated result pages.
func (c *client) listAll(ctx context.Context, method string, filter Fields, selectFields []string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	start := 0
	for {
		resp, err := c.call(ctx, method, map[string]any{
			"filter": filter,
			"select": selectFields,
			"start":  start,
		})
		if err != nil {
			return nil, err
		}

		var page []json.RawMessage
		if err := json.Unmarshal(resp.Result, &page); err != nil {
			return nil, eris.Wrapf(err, "bitrix: decode %s page", method)
		}
		items = append(items, page...)

		if resp.Next == nil {
			return items, nil
		}
		if *resp.Next <= start {
			// A cursor that stops advancing would loop forever.
			return nil, eris.Errorf("bitrix: %s: cursor stuck at %d", method, start)
		}
		start = *resp.Next
	}
}

func (c *client) FindCompanyByTitle(ctx context.Context, title string) (*Company, error) {
	resp, err := c.call(ctx, "crm.company.list", map[string]any{
		"filter": Fields{"=TITLE": title},
		"select": []string{"ID", "TITLE", "COMMENTS"},
	})
	if err != nil {
		return nil, err
	}

	var companies []Company
	if err := json.Unmarshal(resp.Result, &companies); err != nil {
		return nil, eris.Wrap(err, "bitrix: decode company list")
	}
	if len(companies) == 0 {
		return nil, nil
	}
	if len(companies) > 1 {
		zap.L().Warn("multiple crm companies share a title, using first",
			zap.String("title", title),
			zap.Int("count", len(companies)),
		)
	}
	return &companies[0], nil
}

func (c *client) CreateCompany(ctx context.Context, fields Fields) (int, error) {
	resp, err := c.call(ctx, "crm.company.add", map[string]any{"fields": fields})
	if err != nil {
		return 0, err
	}

	var id int
	if err := json.Unmarshal(resp.Result, &id); err != nil {
		return 0, eris.Wrap(err, "bitrix: decode created company id")
	}
	return id, nil
}

func (c *client) UpdateCompany(ctx context.Context, id int, fields Fields) error {
	_, err := c.call(ctx, "crm.company.update", map[string]any{
		"id":     id,
		"fields": fields,
	})
	return err
}

func (c *client) CreateContact(ctx context.Context, fields Fields) (int, error) {
	resp, err := c.call(ctx, "crm.contact.add", map[string]any{"fields": fields})
	if err != nil {
		return 0, err
	}

	var id int
	if err := json.Unmarshal(resp.Result, &id); err != nil {
		return 0, eris.Wrap(err, "bitrix: decode created contact id")
	}
	return id, nil
}

func (c *client) ListContacts(ctx context.Context, companyID int) ([]Contact, error) {
	items, err := c.listAll(ctx, "crm.contact.list",
		Fields{"=COMPANY_ID": companyID},
		[]string{"ID", "NAME", "LAST_NAME", "POST"},
	)
	if err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(items))
	for _, raw := range items {
		var ct Contact
		if err := json.Unmarshal(raw, &ct); err != nil {
			return nil, eris.Wrap(err, "bitrix: decode contact")
		}
		contacts = append(contacts, ct)
	}
	return contacts, nil
}
