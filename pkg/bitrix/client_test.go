package bitrix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aragant-group/b2b-intel/internal/httpx"
)

func testClient(baseURL string) Client {
	return NewClient(baseURL, WithHTTPClient(httpx.New(httpx.Options{
		HostRate:       rate.Inf,
		InitialBackoff: time.Millisecond,
	})))
}

func TestFindCompanyByTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/1/token/crm.company.list.json", r.URL.Path)

		var payload struct {
			Filter map[string]any `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, `ООО "Ромашка"`, payload.Filter["=TITLE"])

		fmt.Fprint(w, `{"result":[{"ID":"42","TITLE":"ООО \"Ромашка\"","COMMENTS":"note"}],"total":1}`)
	}))
	defer srv.Close()

	c := testClient(srv.URL + "/rest/1/token")
	company, err := c.FindCompanyByTitle(context.Background(), `ООО "Ромашка"`)
	require.NoError(t, err)
	require.NotNil(t, company)
	assert.Equal(t, 42, company.ID)
	assert.Equal(t, `ООО "Ромашка"`, company.Title)
}

func TestFindCompanyByTitle_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result":[],"total":0}`)
	}))
	defer srv.Close()

	company, err := testClient(srv.URL).FindCompanyByTitle(context.Background(), "нет такой")
	require.NoError(t, err)
	assert.Nil(t, company)
}

func TestCreateCompany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/crm.company.add.json", r.URL.Path)

		var payload struct {
			Fields Fields `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Ромашка", payload.Fields["TITLE"])

		fmt.Fprint(w, `{"result":105}`)
	}))
	defer srv.Close()

	id, err := testClient(srv.URL).CreateCompany(context.Background(), Fields{
		"TITLE": "Ромашка",
		"PHONE": MultiField("WORK", "+7 495 123-45-67"),
	})
	require.NoError(t, err)
	assert.Equal(t, 105, id)
}

func TestCall_RetriesQueryLimitExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			fmt.Fprint(w, `{"error":"QUERY_LIMIT_EXCEEDED","error_description":"Too many requests"}`)
			return
		}
		fmt.Fprint(w, `{"result":7}`)
	}))
	defer srv.Close()

	id, err := testClient(srv.URL).CreateCompany(context.Background(), Fields{"TITLE": "x"})
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_APIErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"error":"ERROR_METHOD_NOT_FOUND","error_description":"Method not found!"}`)
	}))
	defer srv.Close()

	err := testClient(srv.URL).UpdateCompany(context.Background(), 1, Fields{"TITLE": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ERROR_METHOD_NOT_FOUND")
	assert.Equal(t, int32(1), calls.Load(), "non-throttle API errors must not be retried")
}

func TestListContacts_Pagination(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Start int `json:"start"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		switch payload.Start {
		case 0:
			fmt.Fprint(w, `{"result":[{"ID":"1","NAME":"Иван","LAST_NAME":"Иванов","POST":"директор"}],"next":50,"total":2}`)
		case 50:
			fmt.Fprint(w, `{"result":[{"ID":"2","NAME":"Анна","LAST_NAME":"Петрова","POST":"менеджер"}],"total":2}`)
		default:
			t.Errorf("unexpected start %d", payload.Start)
		}
	}))
	defer srv.Close()

	contacts, err := testClient(srv.URL).ListContacts(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Иванов", contacts[0].LastName)
	assert.Equal(t, "менеджер", contacts[1].Post)
}

func TestListAll_StuckCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"result":[{"ID":"1","NAME":"Иван"}],"next":0,"total":100}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ListContacts(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor stuck")
}
