package provider

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/aragant-group/b2b-intel/internal/model"
)

// SourceConfig names one provider in the enrichment plan.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled,omitempty"` // nil means enabled
}

// Plan is the ordered provider plan plus the provenance trust ranking.
// A higher trust rank may overwrite role labels written by a lower one.
type Plan struct {
	Sources []SourceConfig `yaml:"sources"`
	Trust   map[string]int `yaml:"trust"`
}

// DefaultPlan returns the built-in plan used when no providers.yaml is
// supplied: registry first (cheap, authoritative), then site discovery,
// with AI research last.
func DefaultPlan() *Plan {
	return &Plan{
		Sources: []SourceConfig{
			{Name: model.ProvenanceRegistry},
			{Name: model.ProvenanceWebSearch},
			{Name: model.ProvenanceSiteCrawl},
			{Name: model.ProvenanceAIResearch},
		},
		Trust: map[string]int{
			model.ProvenanceRegistry:   40,
			model.ProvenanceSiteCrawl:  30,
			model.ProvenanceIngest:     25,
			model.ProvenanceWebSearch:  20,
			model.ProvenanceAIResearch: 10,
		},
	}
}

// LoadPlan reads the provider plan from a YAML file. An empty path yields
// the default plan. Trust ranks missing from the file are filled from the
// defaults so a plan that only reorders sources keeps a sane ranking.
func LoadPlan(path string) (*Plan, error) {
	if path == "" {
		return DefaultPlan(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "provider: read plan %s", path)
	}

	// The YAML has a top-level "plan" key.
	var wrapper struct {
		Plan Plan `yaml:"plan"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "provider: parse plan")
	}

	plan := &wrapper.Plan
	defaults := DefaultPlan()
	if len(plan.Sources) == 0 {
		plan.Sources = defaults.Sources
	}
	if plan.Trust == nil {
		plan.Trust = make(map[string]int)
	}
	for prov, rank := range defaults.Trust {
		if _, ok := plan.Trust[prov]; !ok {
			plan.Trust[prov] = rank
		}
	}
	return plan, nil
}

// Ordered returns the enabled source names in plan order.
func (p *Plan) Ordered() []string {
	out := make([]string, 0, len(p.Sources))
	for _, s := range p.Sources {
		if s.Enabled != nil && !*s.Enabled {
			continue
		}
		out = append(out, s.Name)
	}
	return out
}

// TrustRank returns the rank for a provenance tag. Unknown tags rank
// lowest so a misconfigured plan cannot displace registry data.
func (p *Plan) TrustRank(provenance string) int {
	return p.Trust[provenance]
}
