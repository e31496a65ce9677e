package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/internal/store"
)

func newServeStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestBuildMux_HealthEndpoint(t *testing.T) {
	mux := buildMux(newServeStore(t), nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildMux_ListCompanies_Filtered(t *testing.T) {
	st := newServeStore(t)
	ctx := context.Background()

	for _, c := range []struct {
		slug  string
		score int
	}{
		{"romashka", 15},
		{"vasilek", 5},
	} {
		company := &model.Company{Slug: c.slug, Name: c.slug}
		require.NoError(t, st.CreateCompany(ctx, company))
		require.NoError(t, st.UpdateLeadScore(ctx, company.ID, c.score))
		require.NoError(t, st.UpdateStatus(ctx, company.ID, model.StatusEnriched))
	}

	mux := buildMux(st, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies?status=enriched&min_score=10", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Companies []model.Company `json:"companies"`
		Count     int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "romashka", body.Companies[0].Slug)
}

func TestBuildMux_ListCompanies_BadMinScore(t *testing.T) {
	mux := buildMux(newServeStore(t), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies?min_score=ten", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBuildMux_Dossier(t *testing.T) {
	st := newServeStore(t)
	ctx := context.Background()

	company := &model.Company{Slug: "romashka", Name: "Ромашка"}
	require.NoError(t, st.CreateCompany(ctx, company))
	_, err := st.InsertFactIfAbsent(ctx, &model.Fact{
		CompanyID: company.ID, Kind: model.FactEmail,
		Value: "info@romashka.ru", ValueNorm: "info@romashka.ru",
		Provenance: model.ProvenanceSiteCrawl,
	})
	require.NoError(t, err)
	require.NoError(t, st.UpsertIntelligence(ctx, &model.Intelligence{
		CompanyID: company.ID,
		Summary:   "Производитель косметики.",
	}))

	mux := buildMux(st, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/romashka", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var d dossier
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &d))
	assert.Equal(t, "romashka", d.Company.Slug)
	require.Len(t, d.Facts, 1)
	assert.Equal(t, "info@romashka.ru", d.Facts[0].Value)
	require.NotNil(t, d.Intelligence)
	assert.Equal(t, "Производитель косметики.", d.Intelligence.Summary)
}

func TestBuildMux_Dossier_NotFound(t *testing.T) {
	mux := buildMux(newServeStore(t), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/nope", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildMux_Stats(t *testing.T) {
	st := newServeStore(t)
	require.NoError(t, st.CreateCompany(context.Background(), &model.Company{Slug: "romashka", Name: "Ромашка"}))

	mux := buildMux(st, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var stats store.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalCompanies)
}

func TestBuildMux_EnrichAccepted_NilService(t *testing.T) {
	st := newServeStore(t)
	require.NoError(t, st.CreateCompany(context.Background(), &model.Company{Slug: "romashka", Name: "Ромашка"}))

	// With a nil service, the goroutine skips enrichment gracefully.
	mux := buildMux(st, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrich/romashka", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.Equal(t, "romashka", resp["slug"])

	// Give the goroutine time to execute the nil check path.
	time.Sleep(10 * time.Millisecond)
}

func TestBuildMux_EnrichUnknownSlug(t *testing.T) {
	mux := buildMux(newServeStore(t), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrich/nope", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
