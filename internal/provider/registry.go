package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/pkg/rusprofile"
)

// RegistryLookup resolves official registration data (INN, OGRN, director,
// legal address) from the RusProfile company registry.
type RegistryLookup struct {
	registry rusprofile.Client
}

// NewRegistryLookup creates the registry provider.
func NewRegistryLookup(client rusprofile.Client) *RegistryLookup {
	return &RegistryLookup{registry: client}
}

func (r *RegistryLookup) Name() string { return model.ProvenanceRegistry }

func (r *RegistryLookup) Fetch(ctx context.Context, company *model.Company) (*PartialFacts, error) {
	partial := &PartialFacts{Provenance: r.Name()}

	card, err := r.registry.Find(ctx, company.Name)
	if err != nil {
		return partial, eris.Wrapf(err, "provider: registry lookup %s", company.Slug)
	}
	if card == nil || card.Empty() {
		return partial, nil
	}

	partial.INN = card.INN
	partial.OGRN = card.OGRN
	partial.Address = card.Address
	if card.Director != "" {
		partial.Persons = []PersonFact{{
			Name:       card.Director,
			Role:       "генеральный директор",
			Provenance: r.Name(),
		}}
	}
	return partial, nil
}
