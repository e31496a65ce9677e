package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/pkg/rusprofile"
)

func TestRegistryLookup_FillsCard(t *testing.T) {
	lookup := NewRegistryLookup(&stubRegistry{card: &rusprofile.CompanyCard{
		INN:      "7707083893",
		OGRN:     "1027700132195",
		Director: "Иванов Иван Иванович",
		Address:  "г. Москва, ул. Ленина, д. 1",
	}})

	partial, err := lookup.Fetch(context.Background(), &model.Company{Slug: "romashka", Name: "Ромашка"})
	require.NoError(t, err)

	assert.Equal(t, "7707083893", partial.INN)
	assert.Equal(t, "1027700132195", partial.OGRN)
	assert.Equal(t, "г. Москва, ул. Ленина, д. 1", partial.Address)
	require.Len(t, partial.Persons, 1)
	assert.Equal(t, "Иванов Иван Иванович", partial.Persons[0].Name)
	assert.Equal(t, "генеральный директор", partial.Persons[0].Role)
	assert.Equal(t, model.ProvenanceRegistry, partial.Persons[0].Provenance)
}

func TestRegistryLookup_NoMatch(t *testing.T) {
	partial, err := NewRegistryLookup(&stubRegistry{}).Fetch(context.Background(),
		&model.Company{Slug: "romashka", Name: "Ромашка"})
	require.NoError(t, err)
	assert.True(t, partial.Empty())
}

func TestRegistryLookup_BackendDown(t *testing.T) {
	partial, err := NewRegistryLookup(&stubRegistry{err: assert.AnError}).Fetch(
		context.Background(), &model.Company{Slug: "romashka", Name: "Ромашка"})
	require.Error(t, err)
	assert.True(t, partial.Empty())
}
