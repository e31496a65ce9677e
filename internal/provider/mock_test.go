package provider

import (
	"context"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/pkg/anthropic"
	"github.com/aragant-group/b2b-intel/pkg/ddg"
	"github.com/aragant-group/b2b-intel/pkg/rusprofile"
)

// stubSearch implements ddg.Client returning canned pages per query.
type stubSearch struct {
	pages map[string]*ddg.SearchPage
	err   error
	calls []string
}

func (s *stubSearch) Search(_ context.Context, query string) (*ddg.SearchPage, error) {
	s.calls = append(s.calls, query)
	if s.err != nil {
		return nil, s.err
	}
	if page, ok := s.pages[query]; ok {
		return page, nil
	}
	return &ddg.SearchPage{}, nil
}

// stubRegistry implements rusprofile.Client.
type stubRegistry struct {
	card *rusprofile.CompanyCard
	err  error
}

func (s *stubRegistry) Find(context.Context, string) (*rusprofile.CompanyCard, error) {
	return s.card, s.err
}

// stubAI implements anthropic.Client returning a fixed text answer.
type stubAI struct {
	answer string
	err    error
	lastReq anthropic.MessageRequest
}

func (s *stubAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: s.answer}},
	}, nil
}

// namedProvider is a no-op provider for registry tests.
type namedProvider struct {
	name string
}

func (p *namedProvider) Name() string { return p.name }

func (p *namedProvider) Fetch(context.Context, *model.Company) (*PartialFacts, error) {
	return &PartialFacts{Provenance: p.name}, nil
}
