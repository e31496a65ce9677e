// Package enrich runs the per-company enrichment pass: consult providers
// in plan order, then merge their partial fact sets into the store in one
// transaction. The merge owns every persistence decision; providers never
// write.
package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/provider"
	"github.com/aragant-group/b2b-intel/internal/store"
)

// Options tunes the service.
type Options struct {
	// ProviderTimeout bounds a single provider call. Zero means no
	// per-provider deadline beyond the caller's context.
	ProviderTimeout time.Duration
}

// Service orchestrates enrichment passes.
type Service struct {
	store    store.Store
	registry *provider.Registry
	plan     *provider.Plan
	opts     Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates an enrichment service.
func New(st store.Store, registry *provider.Registry, plan *provider.Plan, opts Options) *Service {
	return &Service{
		store:    st,
		registry: registry,
		plan:     plan,
		opts:     opts,
		locks:    make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-company mutex, creating it on first use. The
// map is never evicted; it is bounded by the number of companies touched
// in one process lifetime.
func (s *Service) lockFor(slug string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[slug]
	if !ok {
		l = &sync.Mutex{}
		s.locks[slug] = l
	}
	return l
}

// Company runs one full enrichment pass for a single company. Concurrent
// calls for the same slug serialize; the merge itself is one transaction,
// so a failed pass leaves the previous state intact and the status failed.
func (s *Service) Company(ctx context.Context, slug string) error {
	lock := s.lockFor(slug)
	lock.Lock()
	defer lock.Unlock()

	company, err := s.store.GetCompany(ctx, slug)
	if err != nil {
		return eris.Wrapf(err, "enrich: load company %s", slug)
	}

	if err := s.store.UpdateStatus(ctx, company.ID, model.StatusInProgress); err != nil {
		return eris.Wrapf(err, "enrich: mark in progress %s", slug)
	}

	partials := s.collect(ctx, company)

	err = s.store.WithTx(ctx, func(tx store.Store) error {
		return s.merge(ctx, tx, company, partials)
	})
	if err != nil {
		if stErr := s.store.UpdateStatus(ctx, company.ID, model.StatusFailed); stErr != nil {
			zap.L().Error("failed to mark company failed",
				zap.String("slug", slug), zap.Error(stErr))
		}
		return eris.Wrapf(err, "enrich: merge %s", slug)
	}

	zap.L().Info("company enriched",
		zap.String("slug", slug),
		zap.Int("providers", len(partials)),
	)
	return nil
}

// collect consults the plan's providers and returns their partials in
// plan order. A provider error isolates to that provider: its slot is an
// empty partial and the pass continues.
//
// Website discovery runs as a sequential first stage when the company has
// no website yet, so the site crawler in the same pass can start from the
// freshly discovered URL.
func (s *Service) collect(ctx context.Context, company *model.Company) []*provider.PartialFacts {
	ordered := s.plan.Ordered()
	results := make([]*provider.PartialFacts, len(ordered))

	// Work on a copy: discovery may fill the website in memory before
	// the merge persists it.
	work := *company

	discovered := -1
	if !work.HasWebsite() {
		for i, name := range ordered {
			if name != model.ProvenanceWebSearch {
				continue
			}
			results[i] = s.fetchOne(ctx, name, &work)
			discovered = i
			if site := results[i].Website; site != "" {
				work.Website = &site
			}
			break
		}
	}

	var g errgroup.Group
	for i, name := range ordered {
		if i == discovered {
			continue
		}
		g.Go(func() error {
			results[i] = s.fetchOne(ctx, name, &work)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return results
}

// fetchOne runs a single provider, degrading every failure to an empty
// partial with the right provenance tag.
func (s *Service) fetchOne(ctx context.Context, name string, company *model.Company) *provider.PartialFacts {
	p := s.registry.Get(name)
	if p == nil {
		zap.L().Warn("plan names an unregistered provider, skipping",
			zap.String("provider", name))
		return &provider.PartialFacts{Provenance: name}
	}

	if s.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ProviderTimeout)
		defer cancel()
	}

	partial, err := p.Fetch(ctx, company)
	if err != nil {
		zap.L().Warn("provider failed, continuing without it",
			zap.String("provider", name),
			zap.String("slug", company.Slug),
			zap.Error(err),
		)
	}
	if partial == nil {
		partial = &provider.PartialFacts{Provenance: name}
	}
	return partial
}

// BatchResult tallies one batch run.
type BatchResult struct {
	Processed int
	Succeeded int
	Failed    int
}

// Batch enriches up to limit companies in status new with the given
// worker concurrency. Per-company failures are counted, not fatal.
// Cancelling ctx stops scheduling new companies; passes already in
// flight run to completion.
func (s *Service) Batch(ctx context.Context, limit, concurrency int) (*BatchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	companies, err := s.store.ListCompanies(ctx, store.CompanyFilter{
		Status: model.StatusNew,
		Limit:  limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: list batch companies")
	}

	// In-flight passes keep running after SIGINT; only scheduling stops.
	workCtx := context.WithoutCancel(ctx)

	var succeeded, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(concurrency)

	scheduled := 0
	for _, c := range companies {
		if ctx.Err() != nil {
			zap.L().Info("batch interrupted, letting in-flight passes finish",
				zap.Int("scheduled", scheduled),
				zap.Int("total", len(companies)),
			)
			break
		}
		scheduled++
		g.Go(func() error {
			if err := s.Company(workCtx, c.Slug); err != nil {
				failed.Add(1)
				zap.L().Error("batch company failed",
					zap.String("slug", c.Slug), zap.Error(err))
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	g.Wait() //nolint:errcheck

	return &BatchResult{
		Processed: scheduled,
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}, nil
}
