// Package ingest loads the STM master workbook into the store: one
// company row per MASTER-sheet key, plus marketplace-link facts and
// seed persons. Everything it writes carries the ingest provenance.
package ingest

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/store"
)

// masterSheet is the sheet name the export tooling always uses.
const masterSheet = "MASTER"

// MasterRow is one parsed company row from the MASTER sheet.
type MasterRow struct {
	Key           string
	Company       string
	LegalForm     string
	WBPresent     bool
	OzonPresent   bool
	RevenueTotal  *float64
	SalesTotal    *float64
	AvgPrice      *float64
	WBBrandLink   string
	OzonBrandLink string
	Names         string
}

// ReadMaster parses the MASTER sheet of an STM workbook. Columns are
// located by header name, so column order in the export may change.
func ReadMaster(path string) ([]MasterRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open workbook %s", path)
	}

	sheet, ok := f.Sheet[masterSheet]
	if !ok {
		return nil, eris.Errorf("ingest: workbook has no %s sheet", masterSheet)
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: MASTER sheet is empty")
	}

	cols := headerIndex(sheet.Rows[0])
	if _, ok := cols["key"]; !ok {
		return nil, eris.New("ingest: MASTER sheet has no key column")
	}

	var rows []MasterRow
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}

		key := get("key")
		if key == "" {
			continue
		}

		rows = append(rows, MasterRow{
			Key:           key,
			Company:       get("Company"),
			LegalForm:     get("LegalForm"),
			WBPresent:     parseBool(get("WB_present")),
			OzonPresent:   parseBool(get("OZON_present")),
			RevenueTotal:  parseFloat(get("Revenue_total")),
			SalesTotal:    parseFloat(get("Sales_total")),
			AvgPrice:      parseFloat(get("AvgPrice_calc")),
			WBBrandLink:   get("WB_brand_link"),
			OzonBrandLink: get("OZON_brand_link"),
			Names:         get("Names"),
		})
	}
	return rows, nil
}

// Summary tallies one import run.
type Summary struct {
	Created int
	Skipped int
	Facts   int
	Persons int
}

// Import writes master rows into the store. A key whose slug already
// exists is skipped, so re-running an import is harmless.
func Import(ctx context.Context, st store.Store, rows []MasterRow, sourceFile string) (*Summary, error) {
	sum := &Summary{}

	for _, row := range rows {
		slug := model.Slugify(row.Key)
		if slug == "" {
			sum.Skipped++
			continue
		}

		if _, err := st.GetCompany(ctx, slug); err == nil {
			sum.Skipped++
			zap.L().Debug("company already imported, skipping",
				zap.String("slug", slug))
			continue
		} else if !eris.Is(err, store.ErrNotFound) {
			return sum, eris.Wrapf(err, "ingest: check company %s", slug)
		}

		err := st.WithTx(ctx, func(tx store.Store) error {
			company := &model.Company{
				Slug:         slug,
				Name:         row.Company,
				LegalForm:    row.LegalForm,
				WBPresent:    row.WBPresent,
				OzonPresent:  row.OzonPresent,
				RevenueTotal: row.RevenueTotal,
				SalesTotal:   row.SalesTotal,
				AvgPrice:     row.AvgPrice,
				SourceFile:   sourceFile,
			}
			if err := tx.CreateCompany(ctx, company); err != nil {
				return err
			}

			for label, link := range map[string]string{
				"wildberries": row.WBBrandLink,
				"ozon":        row.OzonBrandLink,
			} {
				if link == "" {
					continue
				}
				wrote, err := tx.InsertFactIfAbsent(ctx, &model.Fact{
					CompanyID:  company.ID,
					Kind:       model.FactMarketplace,
					Value:      link,
					ValueNorm:  strings.ToLower(link),
					Label:      label,
					Provenance: model.ProvenanceIngest,
				})
				if err != nil {
					return err
				}
				if wrote {
					sum.Facts++
				}
			}

			for _, name := range splitNames(row.Names) {
				wrote, err := tx.InsertPersonIfAbsent(ctx, &model.Person{
					CompanyID:  company.ID,
					Name:       name,
					NameNorm:   model.NormalizeFullName(name),
					Provenance: model.ProvenanceIngest,
				})
				if err != nil {
					return err
				}
				if wrote {
					sum.Persons++
				}
			}
			return nil
		})
		if err != nil {
			return sum, eris.Wrapf(err, "ingest: import %s", slug)
		}
		sum.Created++
	}

	return sum, nil
}

func headerIndex(row *xlsx.Row) map[string]int {
	cols := make(map[string]int, len(row.Cells))
	for i, cell := range row.Cells {
		name := strings.TrimSpace(cell.String())
		if name != "" {
			cols[name] = i
		}
	}
	return cols
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "да":
		return true
	}
	return false
}

// parseFloat accepts the russian-locale numbers the export produces:
// comma decimal separator, spaces or non-breaking spaces as thousands
// grouping. Unparseable or empty cells are nil.
func parseFloat(s string) *float64 {
	s = strings.NewReplacer(",", ".", " ", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// splitNames breaks the free-form Names column on commas and semicolons.
func splitNames(s string) []string {
	var names []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	}) {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
