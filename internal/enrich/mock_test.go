package enrich

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/provider"
	"github.com/aragant-group/b2b-intel/internal/store"
)

// stubProvider returns a canned partial, optionally failing, and records
// the company snapshot it was handed.
type stubProvider struct {
	name    string
	partial *provider.PartialFacts
	err     error

	mu   sync.Mutex
	seen []model.Company
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Fetch(_ context.Context, company *model.Company) (*provider.PartialFacts, error) {
	p.mu.Lock()
	p.seen = append(p.seen, *company)
	p.mu.Unlock()

	if p.err != nil {
		return &provider.PartialFacts{Provenance: p.name}, p.err
	}
	if p.partial == nil {
		return &provider.PartialFacts{Provenance: p.name}, nil
	}
	partial := *p.partial
	partial.Provenance = p.name
	return &partial, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedCompany(t *testing.T, st store.Store, slug string) *model.Company {
	t.Helper()
	c := &model.Company{
		Slug:      slug,
		Name:      "Ромашка",
		LegalForm: "ООО",
	}
	require.NoError(t, st.CreateCompany(context.Background(), c))
	return c
}

// newService wires a service over the given providers with the default
// plan, registering each under its own name.
func newService(st store.Store, providers ...provider.Provider) *Service {
	registry := provider.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}
	return New(st, registry, provider.DefaultPlan(), Options{})
}
