package model

import (
	"regexp"
	"time"
)

// EnrichmentStatus represents the lifecycle state of a company record.
type EnrichmentStatus string

const (
	StatusNew        EnrichmentStatus = "new"
	StatusInProgress EnrichmentStatus = "in_progress"
	StatusEnriched   EnrichmentStatus = "enriched"
	StatusFailed     EnrichmentStatus = "failed"
)

// Company represents a company being enriched. Nullable columns use
// pointers so "unknown" stays distinguishable from a zero value.
type Company struct {
	ID           string           `json:"id"`
	Slug         string           `json:"slug"`
	Name         string           `json:"name"`
	LegalForm    string           `json:"legal_form,omitempty"`
	INN          *string          `json:"inn,omitempty"`
	OGRN         *string          `json:"ogrn,omitempty"`
	Website      *string          `json:"website,omitempty"`
	WBPresent    bool             `json:"wb_present"`
	OzonPresent  bool             `json:"ozon_present"`
	RevenueTotal *float64         `json:"revenue_total,omitempty"`
	SalesTotal   *float64         `json:"sales_total,omitempty"`
	AvgPrice     *float64         `json:"avg_price,omitempty"`
	Status       EnrichmentStatus `json:"enrichment_status"`
	LeadScore    int              `json:"lead_score"`
	SourceFile   string           `json:"source_file,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// HasWebsite reports whether a non-empty website has been recorded.
func (c *Company) HasWebsite() bool {
	return c.Website != nil && *c.Website != ""
}

var innRe = regexp.MustCompile(`^\d{10}$|^\d{12}$`)

// ValidINN reports whether s is a well-formed Russian tax number
// (10 digits for legal entities, 12 for individual entrepreneurs).
func ValidINN(s string) bool {
	return innRe.MatchString(s)
}
