package enrich

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/provider"
	"github.com/aragant-group/b2b-intel/internal/score"
	"github.com/aragant-group/b2b-intel/internal/store"
)

// merge folds the collected partials into the store. It runs inside one
// transaction: either the whole pass lands or none of it does.
func (s *Service) merge(ctx context.Context, tx store.Store, company *model.Company, partials []*provider.PartialFacts) error {
	work := *company

	if err := s.mergeScalars(ctx, tx, &work, partials); err != nil {
		return err
	}
	if err := s.mergeFacts(ctx, tx, &work, partials); err != nil {
		return err
	}
	if err := s.mergePersons(ctx, tx, &work, partials); err != nil {
		return err
	}
	if err := s.mergeIntelligence(ctx, tx, &work, partials); err != nil {
		return err
	}

	contacts, err := tx.CountFactsOfKind(ctx, work.ID, model.FactEmail, model.FactPhone)
	if err != nil {
		return eris.Wrap(err, "enrich: count contacts")
	}
	lead := score.Lead(score.Inputs{Company: &work, ContactsCount: contacts})
	if err := tx.UpdateLeadScore(ctx, work.ID, lead); err != nil {
		return eris.Wrap(err, "enrich: update score")
	}

	return tx.UpdateStatus(ctx, work.ID, model.StatusEnriched)
}

// mergeScalars sets website and INN from the first partial in plan order
// that carries them. Both are write-once: set-if-null in storage, and the
// INN must be well-formed.
func (s *Service) mergeScalars(ctx context.Context, tx store.Store, company *model.Company, partials []*provider.PartialFacts) error {
	for _, p := range partials {
		if p.Website == "" || company.HasWebsite() {
			continue
		}
		if _, err := tx.SetWebsiteIfNull(ctx, company.ID, p.Website); err != nil {
			return eris.Wrap(err, "enrich: set website")
		}
		site := p.Website
		company.Website = &site
	}

	for _, p := range partials {
		if p.INN == "" || company.INN != nil {
			continue
		}
		if !model.ValidINN(p.INN) {
			zap.L().Warn("provider reported malformed inn, dropping",
				zap.String("slug", company.Slug),
				zap.String("provider", p.Provenance),
				zap.String("inn", p.INN),
			)
			continue
		}
		if _, err := tx.SetINNIfNull(ctx, company.ID, p.INN); err != nil {
			return eris.Wrap(err, "enrich: set inn")
		}
		inn := p.INN
		company.INN = &inn
	}
	return nil
}

// mergeFacts inserts every reported fact, deduplicated on the normalized
// value. The stored value keeps the raw text as found.
func (s *Service) mergeFacts(ctx context.Context, tx store.Store, company *model.Company, partials []*provider.PartialFacts) error {
	insert := func(f *model.Fact) error {
		f.CompanyID = company.ID
		_, err := tx.InsertFactIfAbsent(ctx, f)
		if err != nil {
			return eris.Wrapf(err, "enrich: insert %s fact", f.Kind)
		}
		return nil
	}

	for _, p := range partials {
		for _, email := range p.Emails {
			norm := model.NormalizeEmail(email)
			if norm == "" || !strings.Contains(norm, "@") {
				continue
			}
			if err := insert(&model.Fact{
				Kind:       model.FactEmail,
				Value:      strings.TrimSpace(email),
				ValueNorm:  norm,
				Provenance: p.Provenance,
			}); err != nil {
				return err
			}
		}

		for _, phone := range p.Phones {
			norm := model.NormalizePhone(phone)
			if len(norm) != 11 {
				continue
			}
			if err := insert(&model.Fact{
				Kind:       model.FactPhone,
				Value:      strings.TrimSpace(phone),
				ValueNorm:  norm,
				Provenance: p.Provenance,
			}); err != nil {
				return err
			}
		}

		for platform, link := range p.Socials {
			if link == "" {
				continue
			}
			if err := insert(&model.Fact{
				Kind:       model.FactSocial,
				Value:      link,
				ValueNorm:  strings.ToLower(link),
				Label:      platform,
				Provenance: p.Provenance,
			}); err != nil {
				return err
			}
		}

		if p.Address != "" {
			if err := insert(&model.Fact{
				Kind:       model.FactAddress,
				Value:      p.Address,
				ValueNorm:  model.NormalizeFullName(p.Address),
				Provenance: p.Provenance,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergePersons appends new names and upgrades role labels when a
// higher-trust provenance knows better. A lower-trust role never
// replaces a higher-trust one; matching is exact on normalized name.
func (s *Service) mergePersons(ctx context.Context, tx store.Store, company *model.Company, partials []*provider.PartialFacts) error {
	existing, err := tx.ListPersons(ctx, company.ID)
	if err != nil {
		return eris.Wrap(err, "enrich: list persons")
	}
	byName := make(map[string]model.Person, len(existing))
	for _, p := range existing {
		byName[p.NameNorm] = p
	}

	for _, partial := range partials {
		for _, pf := range partial.Persons {
			norm := model.NormalizeFullName(pf.Name)
			if norm == "" {
				continue
			}

			current, known := byName[norm]
			if !known {
				person := model.Person{
					CompanyID:  company.ID,
					Name:       strings.TrimSpace(pf.Name),
					NameNorm:   norm,
					Role:       pf.Role,
					Provenance: pf.Provenance,
				}
				if _, err := tx.InsertPersonIfAbsent(ctx, &person); err != nil {
					return eris.Wrap(err, "enrich: insert person")
				}
				byName[norm] = person
				continue
			}

			if pf.Role != "" && s.plan.TrustRank(pf.Provenance) > s.plan.TrustRank(current.Provenance) {
				if err := tx.UpdatePersonRole(ctx, company.ID, norm, pf.Role, pf.Provenance); err != nil {
					return eris.Wrap(err, "enrich: update person role")
				}
				current.Role = pf.Role
				current.Provenance = pf.Provenance
				byName[norm] = current
			}
		}
	}
	return nil
}

// mergeIntelligence applies last-write-wins per field: each partial in
// plan order overwrites the fields it carries, starting from the stored
// dossier.
func (s *Service) mergeIntelligence(ctx context.Context, tx store.Store, company *model.Company, partials []*provider.PartialFacts) error {
	current, err := tx.GetIntelligence(ctx, company.ID)
	if err != nil {
		return eris.Wrap(err, "enrich: load intelligence")
	}
	if current == nil {
		current = &model.Intelligence{CompanyID: company.ID}
	}

	changed := false
	for _, p := range partials {
		intel := p.Intelligence
		if intel == nil {
			continue
		}
		changed = true
		if intel.Summary != "" {
			current.Summary = intel.Summary
		}
		if len(intel.PainPoints) > 0 {
			current.PainPoints = intel.PainPoints
		}
		if len(intel.Strengths) > 0 {
			current.Strengths = intel.Strengths
		}
		if len(intel.Products) > 0 {
			current.Products = intel.Products
		}
		if len(intel.Competitors) > 0 {
			current.Competitors = intel.Competitors
		}
		if intel.ApproachStrategy != "" {
			current.ApproachStrategy = intel.ApproachStrategy
		}
	}
	if !changed {
		return nil
	}

	if err := tx.UpsertIntelligence(ctx, current); err != nil {
		return eris.Wrap(err, "enrich: upsert intelligence")
	}
	return nil
}
