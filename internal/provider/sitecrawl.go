package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/aragant-group/b2b-intel/internal/crawl"
	"github.com/aragant-group/b2b-intel/internal/model"
)

// SiteCrawl walks the company's own website and extracts contact signals.
// It needs a website to start from; with none recorded (and none found by
// the discovery stage of the current pass) it reports nothing.
type SiteCrawl struct {
	crawler *crawl.Crawler
}

// NewSiteCrawl creates the site_crawl provider.
func NewSiteCrawl(crawler *crawl.Crawler) *SiteCrawl {
	return &SiteCrawl{crawler: crawler}
}

func (s *SiteCrawl) Name() string { return model.ProvenanceSiteCrawl }

func (s *SiteCrawl) Fetch(ctx context.Context, company *model.Company) (*PartialFacts, error) {
	partial := &PartialFacts{Provenance: s.Name()}
	if !company.HasWebsite() {
		return partial, nil
	}

	signals, err := s.crawler.Site(ctx, *company.Website)
	if err != nil {
		return partial, eris.Wrapf(err, "provider: site crawl %s", company.Slug)
	}

	partial.Emails = signals.Emails
	partial.Phones = signals.Phones
	partial.Socials = signals.SocialLinks
	partial.INN = signals.INN
	partial.Description = signals.Description
	return partial, nil
}
