// Package provider defines the interface and implementations for company
// enrichment sources. Providers are pure fetch functions: they return
// partial fact sets and never touch storage, which is owned by the merger.
package provider

import (
	"context"
	"sync"

	"github.com/aragant-group/b2b-intel/internal/model"
)

// PersonFact is a named contact reported by a provider.
type PersonFact struct {
	Name       string
	Role       string
	Provenance string
}

// PartialFacts is one provider's contribution for a single company. All
// fields are optional; an all-zero value means the provider found nothing.
type PartialFacts struct {
	Provenance string

	Website     string
	INN         string
	OGRN        string
	Description string
	Address     string

	Emails  []string
	Phones  []string
	Socials map[string]string

	Persons []PersonFact

	Intelligence *model.Intelligence
}

// Empty reports whether the partial carries no data at all.
func (p *PartialFacts) Empty() bool {
	if p == nil {
		return true
	}
	return p.Website == "" && p.INN == "" && p.OGRN == "" &&
		p.Description == "" && p.Address == "" &&
		len(p.Emails) == 0 && len(p.Phones) == 0 && len(p.Socials) == 0 &&
		len(p.Persons) == 0 && p.Intelligence == nil
}

// Provider fetches facts about a company from one upstream source.
//
// Fetch returns an empty PartialFacts together with an error when the
// backend is unreachable; a reachable backend that simply knows nothing
// about the company is a nil error with an empty partial.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, company *model.Company) (*PartialFacts, error)
}

// Registry manages available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
