package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/aragant-group/b2b-intel/internal/crawl"
	"github.com/aragant-group/b2b-intel/internal/enrich"
	"github.com/aragant-group/b2b-intel/internal/httpx"
	"github.com/aragant-group/b2b-intel/internal/provider"
	"github.com/aragant-group/b2b-intel/internal/store"
	anthropicpkg "github.com/aragant-group/b2b-intel/pkg/anthropic"
	"github.com/aragant-group/b2b-intel/pkg/ddg"
	"github.com/aragant-group/b2b-intel/pkg/rusprofile"
)

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// newHTTPClient builds the shared rate-limited outbound client.
func newHTTPClient() *httpx.Client {
	return httpx.New(httpx.Options{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     time.Duration(cfg.HTTP.TimeoutSecs) * time.Second,
		MaxAttempts: cfg.HTTP.MaxAttempts,
		HostRate:    rate.Limit(cfg.HTTP.HostRatePerSec),
		HostBurst:   cfg.HTTP.HostBurst,
	})
}

// enrichEnv holds the initialized store and enrichment service for the
// enrich/batch/serve commands.
type enrichEnv struct {
	Store   store.Store
	Service *enrich.Service
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnrich sets up the store, the provider registry, and the enrichment
// service. Callers should defer env.Close().
func initEnrich(ctx context.Context, mode string) (*enrichEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	plan, err := provider.LoadPlan(cfg.Providers.PlanPath)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	fetch := newHTTPClient()

	searchOpts := []ddg.Option{ddg.WithMaxResults(cfg.Search.MaxResults)}
	if cfg.Search.BaseURL != "" {
		searchOpts = append(searchOpts, ddg.WithBaseURL(cfg.Search.BaseURL))
	}

	crawler := crawl.New(fetch, crawl.Options{
		MaxDepth: cfg.Crawl.MaxDepth,
		MaxPages: cfg.Crawl.MaxPages,
		Delay:    time.Duration(cfg.Crawl.DelayMS) * time.Millisecond,
	})

	registry := provider.NewRegistry()
	registry.Register(provider.NewRegistryLookup(rusprofile.NewClient(fetch)))
	registry.Register(provider.NewWebSearch(ddg.NewClient(fetch, searchOpts...)))
	registry.Register(provider.NewSiteCrawl(crawler))
	registry.Register(provider.NewAIResearch(
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		provider.AIResearchConfig{
			Model:       cfg.Anthropic.Model,
			MaxTokens:   int64(cfg.Anthropic.MaxTokens),
			MaxSearches: int64(cfg.Anthropic.MaxSearches),
		},
	))

	svc := enrich.New(st, registry, plan, enrich.Options{
		ProviderTimeout: time.Duration(cfg.HTTP.ProviderTimeout) * time.Second,
	})

	return &enrichEnv{Store: st, Service: svc}, nil
}
