// Package crm pushes enriched companies into Bitrix24. The push is
// one-directional: Bitrix stays the system of record for CRM data and
// nothing read back from it ever mutates local facts.
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/store"
	"github.com/aragant-group/b2b-intel/pkg/bitrix"
)

// maxPushContacts caps multi-value fields and CRM contacts per company
// so one over-harvested site does not flood the CRM card.
const maxPushContacts = 3

// Summary reports what a push run touched.
type Summary struct {
	Companies int
	Contacts  int
	Failed    int
}

// Pusher mirrors enriched companies into Bitrix24.
type Pusher struct {
	store  store.Store
	bitrix bitrix.Client
}

func NewPusher(st store.Store, bx bitrix.Client) *Pusher {
	return &Pusher{store: st, bitrix: bx}
}

// Push mirrors up to limit enriched companies, highest lead score
// first. A failed company is counted and skipped; the run continues.
func (p *Pusher) Push(ctx context.Context, limit int, dryRun bool) (Summary, error) {
	var sum Summary

	companies, err := p.store.ListCompanies(ctx, store.CompanyFilter{
		Status:   model.StatusEnriched,
		MinScore: 1,
		Limit:    limit,
	})
	if err != nil {
		return sum, eris.Wrap(err, "crm: list companies")
	}

	for i := range companies {
		company := &companies[i]
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if dryRun {
			zap.L().Info("would push", zap.String("slug", company.Slug), zap.Int("score", company.LeadScore))
			continue
		}
		contacts, err := p.pushCompany(ctx, company)
		if err != nil {
			sum.Failed++
			zap.L().Warn("push failed",
				zap.String("slug", company.Slug),
				zap.Error(err),
			)
			continue
		}
		sum.Companies++
		sum.Contacts += contacts
	}
	return sum, nil
}

func (p *Pusher) pushCompany(ctx context.Context, company *model.Company) (int, error) {
	facts, err := p.store.ListFacts(ctx, company.ID)
	if err != nil {
		return 0, eris.Wrap(err, "crm: list facts")
	}
	intel, err := p.store.GetIntelligence(ctx, company.ID)
	if err != nil && !eris.Is(err, store.ErrNotFound) {
		return 0, eris.Wrap(err, "crm: load intelligence")
	}

	fields := companyFields(company, facts, intel)

	existing, err := p.bitrix.FindCompanyByTitle(ctx, company.Name)
	if err != nil {
		return 0, err
	}
	var bxID int
	if existing != nil {
		bxID = existing.ID
		if err := p.bitrix.UpdateCompany(ctx, bxID, fields); err != nil {
			return 0, err
		}
	} else {
		bxID, err = p.bitrix.CreateCompany(ctx, fields)
		if err != nil {
			return 0, err
		}
	}
	zap.L().Info("company pushed",
		zap.String("slug", company.Slug),
		zap.Int("bitrix_id", bxID),
		zap.Bool("created", existing == nil),
	)

	return p.pushContacts(ctx, company, bxID)
}

// pushContacts mirrors stored persons as CRM contacts, skipping names
// already attached to the Bitrix company.
func (p *Pusher) pushContacts(ctx context.Context, company *model.Company, bxID int) (int, error) {
	persons, err := p.store.ListPersons(ctx, company.ID)
	if err != nil {
		return 0, eris.Wrap(err, "crm: list persons")
	}
	if len(persons) == 0 {
		return 0, nil
	}

	existing, err := p.bitrix.ListContacts(ctx, bxID)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[strings.ToLower(strings.TrimSpace(c.Name+" "+c.LastName))] = true
	}

	created := 0
	for _, person := range persons {
		if created >= maxPushContacts {
			break
		}
		first, last := splitName(person.Name)
		if known[strings.ToLower(strings.TrimSpace(first+" "+last))] {
			continue
		}
		fields := bitrix.Fields{
			"NAME":       first,
			"LAST_NAME":  last,
			"POST":       person.Role,
			"COMPANY_ID": bxID,
			"SOURCE_ID":  "WEB",
			"COMMENTS":   fmt.Sprintf("Источник: %s", person.Provenance),
		}
		if _, err := p.bitrix.CreateContact(ctx, fields); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func companyFields(company *model.Company, facts []model.Fact, intel *model.Intelligence) bitrix.Fields {
	fields := bitrix.Fields{
		"TITLE":        company.Name,
		"COMPANY_TYPE": "CUSTOMER",
		"COMMENTS":     buildComment(company, intel),
	}
	if company.HasWebsite() {
		fields["WEB"] = bitrix.MultiField("WORK", *company.Website)
	}
	if company.INN != nil && *company.INN != "" {
		fields["UF_CRM_INN"] = *company.INN
	}

	var phones, emails []string
	for _, f := range facts {
		switch f.Kind {
		case model.FactPhone:
			if len(phones) < maxPushContacts {
				phones = append(phones, f.Value)
			}
		case model.FactEmail:
			if len(emails) < maxPushContacts {
				emails = append(emails, f.Value)
			}
		}
	}
	if len(phones) > 0 {
		fields["PHONE"] = bitrix.MultiField("WORK", phones...)
	}
	if len(emails) > 0 {
		fields["EMAIL"] = bitrix.MultiField("WORK", emails...)
	}
	return fields
}

// buildComment renders the CRM card comment: lead score, identifiers,
// and the AI dossier when one exists.
func buildComment(company *model.Company, intel *model.Intelligence) string {
	lines := []string{fmt.Sprintf("Лид-скор: %d/100", company.LeadScore)}
	if company.HasWebsite() {
		lines = append(lines, "Сайт: "+*company.Website)
	}
	if company.INN != nil && *company.INN != "" {
		lines = append(lines, "ИНН: "+*company.INN)
	}
	if company.WBPresent {
		lines = append(lines, "Wildberries: да")
	}
	if company.OzonPresent {
		lines = append(lines, "Ozon: да")
	}
	if intel != nil {
		if intel.Summary != "" {
			lines = append(lines, "", intel.Summary)
		}
		if intel.ApproachStrategy != "" {
			lines = append(lines, "Стратегия: "+intel.ApproachStrategy)
		}
		if len(intel.PainPoints) > 0 {
			lines = append(lines, "Боли: "+strings.Join(head(intel.PainPoints, 3), ", "))
		}
		if len(intel.Strengths) > 0 {
			lines = append(lines, "Сильные стороны: "+strings.Join(head(intel.Strengths, 3), ", "))
		}
		if len(intel.Competitors) > 0 {
			lines = append(lines, "Конкуренты: "+strings.Join(head(intel.Competitors, 3), ", "))
		}
	}
	return strings.Join(lines, "\n")
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
