package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/aragant-group/b2b-intel/internal/model"
	"github.com/aragant-group/b2b-intel/pkg/anthropic"
)

const aiSystemPrompt = `You are a B2B sales intelligence researcher specializing in Russian companies.
Given a company name, research it using web search and reply with a single JSON object and nothing else.
Use exactly these keys (null or [] when unknown): website, inn, ogrn, description, director, director_role, founder, address, phone, email, telegram, vk, instagram, year_founded, employees_count, main_products, competitors, strengths, pain_points, approach_strategy.
Text fields are strings, year_founded and employees_count are integers, main_products, competitors, strengths and pain_points are arrays of strings.
Write description, strengths, pain_points and approach_strategy in Russian. Do not wrap the JSON in markdown fences.`

// AIResearchConfig configures the ai_research provider.
type AIResearchConfig struct {
	Model       string
	MaxTokens   int64
	MaxSearches int64
}

// AIResearch asks the Anthropic API, with the server-side web search tool
// enabled, for a structured company dossier.
type AIResearch struct {
	ai  anthropic.Client
	cfg AIResearchConfig
}

// NewAIResearch creates the ai_research provider.
func NewAIResearch(ai anthropic.Client, cfg AIResearchConfig) *AIResearch {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxSearches == 0 {
		cfg.MaxSearches = 5
	}
	return &AIResearch{ai: ai, cfg: cfg}
}

func (a *AIResearch) Name() string { return model.ProvenanceAIResearch }

// aiAnswer is the fixed-key JSON contract the model must honor.
type aiAnswer struct {
	Website          string   `json:"website"`
	INN              string   `json:"inn"`
	OGRN             string   `json:"ogrn"`
	Description      string   `json:"description"`
	Director         string   `json:"director"`
	DirectorRole     string   `json:"director_role"`
	Founder          string   `json:"founder"`
	Address          string   `json:"address"`
	Phone            string   `json:"phone"`
	Email            string   `json:"email"`
	Telegram         string   `json:"telegram"`
	VK               string   `json:"vk"`
	Instagram        string   `json:"instagram"`
	YearFounded      any      `json:"year_founded"`
	EmployeesCount   any      `json:"employees_count"`
	MainProducts     []string `json:"main_products"`
	Competitors      []string `json:"competitors"`
	Strengths        []string `json:"strengths"`
	PainPoints       []string `json:"pain_points"`
	ApproachStrategy string   `json:"approach_strategy"`
}

func (a *AIResearch) Fetch(ctx context.Context, company *model.Company) (*PartialFacts, error) {
	partial := &PartialFacts{Provenance: a.Name()}

	prompt := fmt.Sprintf("Company: %s %s", company.LegalForm, company.Name)
	if company.HasWebsite() {
		prompt += fmt.Sprintf("\nKnown website: %s", *company.Website)
	}
	if company.INN != nil {
		prompt += fmt.Sprintf("\nKnown INN: %s", *company.INN)
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(aiSystemPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: strings.TrimSpace(prompt)}},
		WebSearch: &anthropic.WebSearchConfig{MaxUses: a.cfg.MaxSearches},
	})
	if err != nil {
		return partial, eris.Wrapf(err, "provider: ai research %s", company.Slug)
	}
	resp.Usage.LogCost(a.cfg.Model, "ai_research")

	raw := anthropic.StripCodeFence(resp.Text())
	var answer aiAnswer
	if err := json.Unmarshal([]byte(raw), &answer); err != nil {
		// A malformed answer is an empty result, not a failure: retrying
		// the whole entity over model formatting would burn tokens.
		zap.L().Warn("ai research answer failed strict json parse",
			zap.String("company", company.Slug),
			zap.String("raw", truncate(raw, 500)),
			zap.Error(err),
		)
		return partial, nil
	}

	fillFromAnswer(partial, &answer, a.Name())
	return partial, nil
}

func fillFromAnswer(partial *PartialFacts, answer *aiAnswer, provenance string) {
	partial.Website = answer.Website
	partial.INN = answer.INN
	partial.OGRN = answer.OGRN
	partial.Description = answer.Description
	partial.Address = answer.Address

	if answer.Email != "" {
		partial.Emails = []string{answer.Email}
	}
	if answer.Phone != "" {
		partial.Phones = []string{answer.Phone}
	}

	socials := map[string]string{
		"telegram":  answer.Telegram,
		"vk":        answer.VK,
		"instagram": answer.Instagram,
	}
	for platform, link := range socials {
		if link == "" {
			delete(socials, platform)
		}
	}
	if len(socials) > 0 {
		partial.Socials = socials
	}

	if answer.Director != "" {
		role := answer.DirectorRole
		if role == "" {
			role = "директор"
		}
		partial.Persons = append(partial.Persons, PersonFact{
			Name:       answer.Director,
			Role:       role,
			Provenance: provenance,
		})
	}
	if answer.Founder != "" && answer.Founder != answer.Director {
		partial.Persons = append(partial.Persons, PersonFact{
			Name:       answer.Founder,
			Role:       "учредитель",
			Provenance: provenance,
		})
	}

	if answer.Description != "" || len(answer.PainPoints) > 0 || len(answer.Strengths) > 0 ||
		len(answer.MainProducts) > 0 || len(answer.Competitors) > 0 || answer.ApproachStrategy != "" {
		partial.Intelligence = &model.Intelligence{
			Summary:          answer.Description,
			PainPoints:       answer.PainPoints,
			Strengths:        answer.Strengths,
			Products:         answer.MainProducts,
			Competitors:      answer.Competitors,
			ApproachStrategy: answer.ApproachStrategy,
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
