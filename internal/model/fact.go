package model

import "time"

// FactKind classifies a discovered fact about a company.
type FactKind string

const (
	FactEmail       FactKind = "email"
	FactPhone       FactKind = "phone"
	FactSocial      FactKind = "social"
	FactAddress     FactKind = "address"
	FactMarketplace FactKind = "marketplace_link"
)

// Provenance identifies which source produced a fact or person.
// Trust ordering between provenances is configured in providers.yaml,
// not hardcoded here.
const (
	ProvenanceRegistry   = "registry"
	ProvenanceSiteCrawl  = "site_crawl"
	ProvenanceWebSearch  = "web_search"
	ProvenanceAIResearch = "ai_research"
	ProvenanceIngest     = "ingest"
)

// Fact is a single atomic piece of contact or presence data.
// Value holds the text as found; ValueNorm is the canonical form used
// for dedup (lower-cased email, digit-folded phone).
type Fact struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	Kind       FactKind  `json:"kind"`
	Value      string    `json:"value"`
	ValueNorm  string    `json:"value_norm"`
	Label      string    `json:"label,omitempty"`
	Provenance string    `json:"provenance"`
	CreatedAt  time.Time `json:"created_at"`
}

// Person is a named contact attached to a company.
type Person struct {
	ID         string    `json:"id"`
	CompanyID  string    `json:"company_id"`
	Name       string    `json:"name"`
	NameNorm   string    `json:"name_norm"`
	Role       string    `json:"role,omitempty"`
	Provenance string    `json:"provenance"`
	CreatedAt  time.Time `json:"created_at"`
}

// Intelligence is the singleton AI-research dossier for a company.
// Each field is last-write-wins across enrichment passes.
type Intelligence struct {
	CompanyID        string    `json:"company_id"`
	Summary          string    `json:"summary,omitempty"`
	PainPoints       []string  `json:"pain_points,omitempty"`
	Strengths        []string  `json:"strengths,omitempty"`
	Products         []string  `json:"products,omitempty"`
	Competitors      []string  `json:"competitors,omitempty"`
	ApproachStrategy string    `json:"approach_strategy,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}
