// Package store persists companies, facts, persons, and intelligence
// dossiers. Two backends exist: SQLite for single-operator use and
// Postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/aragant-group/b2b-intel/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// CompanyFilter specifies criteria for listing companies.
type CompanyFilter struct {
	Status   model.EnrichmentStatus `json:"status,omitempty"`
	MinScore int                    `json:"min_score,omitempty"`
	Limit    int                    `json:"limit,omitempty"`
	Offset   int                    `json:"offset,omitempty"`
}

// Stats summarizes the pipeline state for the dashboard.
type Stats struct {
	TotalCompanies int                            `json:"total_companies"`
	ByStatus       map[model.EnrichmentStatus]int `json:"by_status"`
	AvgLeadScore   float64                        `json:"avg_lead_score"`
	FactCount      int                            `json:"fact_count"`
	PersonCount    int                            `json:"person_count"`
}

// Store defines the persistence interface for the enrichment pipeline.
//
// The conditional writes (SetWebsiteIfNull, SetINNIfNull,
// InsertFactIfAbsent, InsertPersonIfAbsent) report whether they wrote,
// and are idempotent: replaying them never duplicates rows or clobbers
// earlier values.
type Store interface {
	// Companies
	CreateCompany(ctx context.Context, c *model.Company) error
	GetCompany(ctx context.Context, slug string) (*model.Company, error)
	ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error)
	SetWebsiteIfNull(ctx context.Context, companyID, website string) (bool, error)
	SetINNIfNull(ctx context.Context, companyID, inn string) (bool, error)
	UpdateStatus(ctx context.Context, companyID string, status model.EnrichmentStatus) error
	UpdateLeadScore(ctx context.Context, companyID string, score int) error
	ResetStatuses(ctx context.Context, to model.EnrichmentStatus) (int, error)

	// Facts
	InsertFactIfAbsent(ctx context.Context, f *model.Fact) (bool, error)
	ListFacts(ctx context.Context, companyID string) ([]model.Fact, error)
	CountFactsOfKind(ctx context.Context, companyID string, kinds ...model.FactKind) (int, error)
	DeleteFactsByProvenance(ctx context.Context, provenance string) (int, error)

	// Persons
	InsertPersonIfAbsent(ctx context.Context, p *model.Person) (bool, error)
	UpdatePersonRole(ctx context.Context, companyID, nameNorm, role, provenance string) error
	ListPersons(ctx context.Context, companyID string) ([]model.Person, error)
	DeletePersonsByProvenance(ctx context.Context, provenance string) (int, error)

	// Intelligence
	UpsertIntelligence(ctx context.Context, intel *model.Intelligence) error
	GetIntelligence(ctx context.Context, companyID string) (*model.Intelligence, error)

	// WithTx runs fn against a transactional view of the store; any
	// error rolls every write back. Calling WithTx on a store that is
	// already transactional runs fn in the same transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Stats
	Stats(ctx context.Context) (*Stats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
