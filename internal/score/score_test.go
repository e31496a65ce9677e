package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aragant-group/b2b-intel/internal/model"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func TestLead_FullHouseCapsAt100(t *testing.T) {
	c := &model.Company{
		RevenueTotal: f(483602176),
		SalesTotal:   f(459864),
		WBPresent:    true,
		OzonPresent:  true,
		AvgPrice:     f(1050),
		Website:      s("https://example.ru"),
	}
	// 30 + 20 + 20 + 10 + 10 + 5 = 105, capped.
	assert.Equal(t, 100, Lead(Inputs{Company: c, ContactsCount: 3}))
}

func TestLead_EmptyCompanyScoresZero(t *testing.T) {
	assert.Equal(t, 0, Lead(Inputs{Company: &model.Company{}}))
	assert.Equal(t, 0, Lead(Inputs{}))
}

func TestLead_RevenueBands(t *testing.T) {
	tests := []struct {
		revenue float64
		want    int
	}{
		{150_000_000, 30},
		{100_000_000, 25}, // boundary is strictly greater-than
		{60_000_000, 25},
		{20_000_000, 20},
		{5_000_000, 10},
		{1_000_000, 0},
		{0, 0},
	}
	for _, tt := range tests {
		c := &model.Company{RevenueTotal: f(tt.revenue)}
		assert.Equal(t, tt.want, Lead(Inputs{Company: c}), "revenue %v", tt.revenue)
	}
}

func TestLead_MarketplaceBands(t *testing.T) {
	assert.Equal(t, 20, Lead(Inputs{Company: &model.Company{WBPresent: true, OzonPresent: true}}))
	assert.Equal(t, 12, Lead(Inputs{Company: &model.Company{WBPresent: true}}))
	assert.Equal(t, 12, Lead(Inputs{Company: &model.Company{OzonPresent: true}}))
}

func TestLead_SalesBands(t *testing.T) {
	tests := []struct {
		sales float64
		want  int
	}{
		{200_000, 20},
		{75_000, 15},
		{25_000, 10},
		{5_000, 5},
		{1_000, 0},
	}
	for _, tt := range tests {
		c := &model.Company{SalesTotal: f(tt.sales)}
		assert.Equal(t, tt.want, Lead(Inputs{Company: c}), "sales %v", tt.sales)
	}
}

func TestLead_PriceBands(t *testing.T) {
	tests := []struct {
		price float64
		want  int
	}{
		{2_500, 15},
		{1_500, 10},
		{750, 5},
		{500, 0},
	}
	for _, tt := range tests {
		c := &model.Company{AvgPrice: f(tt.price)}
		assert.Equal(t, tt.want, Lead(Inputs{Company: c}), "price %v", tt.price)
	}
}

func TestLead_WebsiteAndContacts(t *testing.T) {
	c := &model.Company{Website: s("https://example.ru")}
	assert.Equal(t, 10, Lead(Inputs{Company: c}))
	assert.Equal(t, 15, Lead(Inputs{Company: c, ContactsCount: 1}))

	empty := &model.Company{Website: s("")}
	assert.Equal(t, 0, Lead(Inputs{Company: empty}))
}
