package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/store"
)

var masterHeader = []string{
	"key", "Company", "LegalForm", "WB_present", "OZON_present",
	"Revenue_total", "Sales_total", "AvgPrice_calc",
	"WB_brand_link", "OZON_brand_link", "Names",
}

func writeWorkbook(t *testing.T, sheetName string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "master.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestReadMaster(t *testing.T) {
	path := writeWorkbook(t, "MASTER", [][]string{
		masterHeader,
		{
			"romashka", `Ромашка`, "ООО", "1", "да",
			"483 602 176,50", "459864", "1050",
			"https://www.wildberries.ru/brands/romashka", "https://ozon.ru/seller/romashka",
			"Иванов Иван; Петрова Анна",
		},
		{"", "пустой ключ пропускается", "", "", "", "", "", "", "", "", ""},
		{"vasilek", "Василёк", "ИП", "0", "", "", "не число", "", "", "", ""},
	})

	rows, err := ReadMaster(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	r := rows[0]
	assert.Equal(t, "romashka", r.Key)
	assert.Equal(t, "Ромашка", r.Company)
	assert.Equal(t, "ООО", r.LegalForm)
	assert.True(t, r.WBPresent)
	assert.True(t, r.OzonPresent)
	require.NotNil(t, r.RevenueTotal)
	assert.InDelta(t, 483602176.50, *r.RevenueTotal, 0.001)
	require.NotNil(t, r.SalesTotal)
	assert.InDelta(t, 459864, *r.SalesTotal, 0.001)
	assert.Equal(t, "Иванов Иван; Петрова Анна", r.Names)

	v := rows[1]
	assert.False(t, v.WBPresent)
	assert.False(t, v.OzonPresent)
	assert.Nil(t, v.RevenueTotal)
	assert.Nil(t, v.SalesTotal, "unparseable cells read as nil")
}

func TestReadMaster_WrongSheet(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]string{masterHeader})
	_, err := ReadMaster(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MASTER")
}

func TestReadMaster_NoKeyColumn(t *testing.T) {
	path := writeWorkbook(t, "MASTER", [][]string{{"Company", "Names"}})
	_, err := ReadMaster(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key column")
}

func TestImport(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rows := []MasterRow{
		{
			Key:         "romashka",
			Company:     "Ромашка",
			LegalForm:   "ООО",
			WBPresent:   true,
			WBBrandLink: "https://www.wildberries.ru/brands/romashka",
			Names:       "Иванов Иван, Петрова Анна",
		},
		{Key: "vasilek", Company: "Василёк"},
	}

	sum, err := Import(ctx, st, rows, "master.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Created)
	assert.Zero(t, sum.Skipped)
	assert.Equal(t, 1, sum.Facts)
	assert.Equal(t, 2, sum.Persons)

	company, err := st.GetCompany(ctx, "romashka")
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, company.Status)
	assert.Equal(t, "master.xlsx", company.SourceFile)

	facts, err := st.ListFacts(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, model.FactMarketplace, facts[0].Kind)
	assert.Equal(t, model.ProvenanceIngest, facts[0].Provenance)

	persons, err := st.ListPersons(ctx, company.ID)
	require.NoError(t, err)
	assert.Len(t, persons, 2)
}

func TestImport_DuplicateKeysSkipped(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rows := []MasterRow{{Key: "romashka", Company: "Ромашка"}}
	_, err := Import(ctx, st, rows, "first.xlsx")
	require.NoError(t, err)

	sum, err := Import(ctx, st, rows, "second.xlsx")
	require.NoError(t, err)
	assert.Zero(t, sum.Created)
	assert.Equal(t, 1, sum.Skipped)

	// The original row is untouched.
	company, err := st.GetCompany(ctx, "romashka")
	require.NoError(t, err)
	assert.Equal(t, "first.xlsx", company.SourceFile)
}
