package crm

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/store"
	"github.com/aragant-group/b2b-intel/pkg/bitrix"
)

type stubBitrix struct {
	companies map[string]*bitrix.Company
	contacts  map[int][]bitrix.Contact
	nextID    int

	created []bitrix.Fields
	updated map[int]bitrix.Fields

	findErr error
}

func newStubBitrix() *stubBitrix {
	return &stubBitrix{
		companies: make(map[string]*bitrix.Company),
		contacts:  make(map[int][]bitrix.Contact),
		updated:   make(map[int]bitrix.Fields),
		nextID:    100,
	}
}

func (s *stubBitrix) FindCompanyByTitle(_ context.Context, title string) (*bitrix.Company, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.companies[title], nil
}

func (s *stubBitrix) CreateCompany(_ context.Context, fields bitrix.Fields) (int, error) {
	s.nextID++
	s.created = append(s.created, fields)
	title, _ := fields["TITLE"].(string)
	s.companies[title] = &bitrix.Company{ID: s.nextID, Title: title}
	return s.nextID, nil
}

func (s *stubBitrix) UpdateCompany(_ context.Context, id int, fields bitrix.Fields) error {
	s.updated[id] = fields
	return nil
}

func (s *stubBitrix) CreateContact(_ context.Context, fields bitrix.Fields) (int, error) {
	companyID, _ := fields["COMPANY_ID"].(int)
	s.nextID++
	first, _ := fields["NAME"].(string)
	last, _ := fields["LAST_NAME"].(string)
	s.contacts[companyID] = append(s.contacts[companyID], bitrix.Contact{
		ID: s.nextID, Name: first, LastName: last,
	})
	return s.nextID, nil
}

func (s *stubBitrix) ListContacts(_ context.Context, companyID int) ([]bitrix.Contact, error) {
	return s.contacts[companyID], nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seedEnriched(t *testing.T, st store.Store, slug, name string, score int) *model.Company {
	t.Helper()
	ctx := context.Background()
	company := &model.Company{Slug: slug, Name: name}
	require.NoError(t, st.CreateCompany(ctx, company))
	require.NoError(t, st.UpdateLeadScore(ctx, company.ID, score))
	require.NoError(t, st.UpdateStatus(ctx, company.ID, model.StatusEnriched))
	return company
}

func TestPush_CreatesCompanyWithFields(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	company := seedEnriched(t, st, "romashka", "ООО Ромашка", 15)
	_, err := st.SetWebsiteIfNull(ctx, company.ID, "https://romashka.ru")
	require.NoError(t, err)
	_, err = st.SetINNIfNull(ctx, company.ID, "7701234567")
	require.NoError(t, err)
	_, err = st.InsertFactIfAbsent(ctx, &model.Fact{
		CompanyID: company.ID, Kind: model.FactEmail,
		Value: "info@romashka.ru", ValueNorm: "info@romashka.ru",
		Provenance: model.ProvenanceSiteCrawl,
	})
	require.NoError(t, err)
	require.NoError(t, st.UpsertIntelligence(ctx, &model.Intelligence{
		CompanyID:  company.ID,
		Summary:    "Производитель косметики.",
		PainPoints: []string{"зависимость от маркетплейсов"},
	}))

	bx := newStubBitrix()
	sum, err := NewPusher(st, bx).Push(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Companies)
	assert.Zero(t, sum.Failed)

	require.Len(t, bx.created, 1)
	fields := bx.created[0]
	assert.Equal(t, "ООО Ромашка", fields["TITLE"])
	assert.Equal(t, "7701234567", fields["UF_CRM_INN"])
	assert.Equal(t, bitrix.MultiField("WORK", "https://romashka.ru"), fields["WEB"])
	assert.Equal(t, bitrix.MultiField("WORK", "info@romashka.ru"), fields["EMAIL"])

	comment, _ := fields["COMMENTS"].(string)
	assert.Contains(t, comment, "Лид-скор: 15/100")
	assert.Contains(t, comment, "Производитель косметики.")
	assert.Contains(t, comment, "зависимость от маркетплейсов")
}

func TestPush_UpdatesExistingCompany(t *testing.T) {
	st := newTestStore(t)
	seedEnriched(t, st, "romashka", "ООО Ромашка", 10)

	bx := newStubBitrix()
	bx.companies["ООО Ромашка"] = &bitrix.Company{ID: 42, Title: "ООО Ромашка"}

	sum, err := NewPusher(st, bx).Push(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Companies)
	assert.Empty(t, bx.created)
	require.Contains(t, bx.updated, 42)
	assert.Equal(t, "ООО Ромашка", bx.updated[42]["TITLE"])
}

func TestPush_ContactsDeduplicated(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	company := seedEnriched(t, st, "romashka", "ООО Ромашка", 10)
	for _, name := range []string{"Иванов Иван", "Петрова Анна"} {
		_, err := st.InsertPersonIfAbsent(ctx, &model.Person{
			CompanyID: company.ID, Name: name,
			NameNorm:   model.NormalizeFullName(name),
			Provenance: model.ProvenanceRegistry,
		})
		require.NoError(t, err)
	}

	bx := newStubBitrix()
	bx.companies["ООО Ромашка"] = &bitrix.Company{ID: 42, Title: "ООО Ромашка"}
	bx.contacts[42] = []bitrix.Contact{{ID: 1, Name: "Иванов", LastName: "Иван"}}

	sum, err := NewPusher(st, bx).Push(ctx, 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Contacts, "existing contact must not be re-created")
	require.Len(t, bx.contacts[42], 2)
	assert.Equal(t, "Петрова", bx.contacts[42][1].Name)
	assert.Equal(t, "Анна", bx.contacts[42][1].LastName)
}

func TestPush_FailureIsCountedAndSkipped(t *testing.T) {
	st := newTestStore(t)
	seedEnriched(t, st, "romashka", "ООО Ромашка", 10)

	bx := newStubBitrix()
	bx.findErr = eris.New("bitrix: down")

	sum, err := NewPusher(st, bx).Push(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Zero(t, sum.Companies)
	assert.Equal(t, 1, sum.Failed)
}

func TestPush_DryRunTouchesNothing(t *testing.T) {
	st := newTestStore(t)
	seedEnriched(t, st, "romashka", "ООО Ромашка", 10)

	bx := newStubBitrix()
	sum, err := NewPusher(st, bx).Push(context.Background(), 10, true)
	require.NoError(t, err)
	assert.Zero(t, sum.Companies)
	assert.Empty(t, bx.created)
}

func TestPush_SkipsUnscoredCompanies(t *testing.T) {
	st := newTestStore(t)
	seedEnriched(t, st, "nol", "ООО Ноль", 0)
	seedEnriched(t, st, "romashka", "ООО Ромашка", 10)

	bx := newStubBitrix()
	sum, err := NewPusher(st, bx).Push(context.Background(), 10, false)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Companies)
	require.Len(t, bx.created, 1)
	assert.True(t, strings.Contains(bx.created[0]["TITLE"].(string), "Ромашка"))
}
