// Package score computes the deterministic lead score used to rank
// companies for outreach.
package score

import "github.com/aragant-group/b2b-intel/internal/model"

// Inputs carries everything the score depends on. ContactsCount is the
// number of contact facts (emails + phones) on record.
type Inputs struct {
	Company       *model.Company
	ContactsCount int
}

// Lead scores a company 0-100. Absent fields contribute zero, so the
// score is safe to compute at any enrichment stage.
//
// Bands: revenue 0-30, marketplace presence 0-20, sales volume 0-20,
// average price 0-15, website +10, any contact +5.
func Lead(in Inputs) int {
	c := in.Company
	if c == nil {
		return 0
	}

	total := revenueBand(c.RevenueTotal) +
		marketplaceBand(c.WBPresent, c.OzonPresent) +
		salesBand(c.SalesTotal) +
		priceBand(c.AvgPrice)

	if c.HasWebsite() {
		total += 10
	}
	if in.ContactsCount > 0 {
		total += 5
	}

	if total > 100 {
		total = 100
	}
	return total
}

func revenueBand(revenue *float64) int {
	if revenue == nil {
		return 0
	}
	switch r := *revenue; {
	case r > 100_000_000:
		return 30
	case r > 50_000_000:
		return 25
	case r > 10_000_000:
		return 20
	case r > 1_000_000:
		return 10
	default:
		return 0
	}
}

func marketplaceBand(wb, ozon bool) int {
	switch {
	case wb && ozon:
		return 20
	case wb || ozon:
		return 12
	default:
		return 0
	}
}

func salesBand(sales *float64) int {
	if sales == nil {
		return 0
	}
	switch s := *sales; {
	case s > 100_000:
		return 20
	case s > 50_000:
		return 15
	case s > 10_000:
		return 10
	case s > 1_000:
		return 5
	default:
		return 0
	}
}

func priceBand(price *float64) int {
	if price == nil {
		return 0
	}
	switch p := *price; {
	case p > 2_000:
		return 15
	case p > 1_000:
		return 10
	case p > 500:
		return 5
	default:
		return 0
	}
}
