package model

import (
	"strings"
	"time"
)

// Tier is the depth of a generated report.
type Tier string

const (
	TierEnhanced Tier = "ENHANCED"
	TierBI       Tier = "BI"
)

// ParseTier normalises user input into a Tier.
func ParseTier(s string) (Tier, bool) {
	switch Tier(strings.ToUpper(strings.TrimSpace(s))) {
	case TierEnhanced:
		return TierEnhanced, true
	case TierBI:
		return TierBI, true
	default:
		return "", false
	}
}

// Label is the human-readable tier name.
func (t Tier) Label() string {
	if t == TierBI {
		return "Business Intelligence"
	}
	return "Enhanced"
}

// Section names a report section. The value doubles as the JSON key.
type Section string

const (
	SectionExecutiveSummary     Section = "executive_summary"
	SectionCompanyOverview      Section = "company_overview"
	SectionKeyPersonnel         Section = "key_personnel"
	SectionGrowthOpportunities  Section = "growth_opportunities"
	SectionRecommendations      Section = "recommendations"
	SectionMarketAnalysis       Section = "market_analysis"
	SectionFinancialInsights    Section = "financial_insights"
	SectionRiskAssessment       Section = "risk_assessment"
	SectionCompetitiveLandscape Section = "competitive_landscape"
	SectionIndustryTrends       Section = "industry_trends"
)

// Title is the display header of the section.
func (s Section) Title() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

var (
	enhancedSections = []Section{
		SectionExecutiveSummary,
		SectionCompanyOverview,
		SectionKeyPersonnel,
		SectionGrowthOpportunities,
		SectionRecommendations,
	}
	biOnlySections = []Section{
		SectionMarketAnalysis,
		SectionFinancialInsights,
		SectionRiskAssessment,
	}
	optionalSections = []Section{
		SectionCompetitiveLandscape,
		SectionIndustryTrends,
	}
)

// RequiredSections returns the sections a report of tier t must contain, in
// presentation order. BI is a strict superset of ENHANCED.
func (t Tier) RequiredSections() []Section {
	out := append([]Section(nil), enhancedSections...)
	if t == TierBI {
		out = append(out, biOnlySections...)
	}
	return out
}

// OptionalSections returns sections captured only when the model produces them.
func (t Tier) OptionalSections() []Section {
	if t == TierBI {
		return append([]Section(nil), optionalSections...)
	}
	return nil
}

// PromptTemplate is the admin-editable prompt configuration for one tier.
// Instructions is keyed by section; BI templates carry every ENHANCED key.
type PromptTemplate struct {
	Tier         Tier               `json:"tier" yaml:"tier"`
	SystemPrompt string             `json:"system_prompt" yaml:"system_prompt"`
	Instructions map[Section]string `json:"instructions" yaml:"instructions"`
}

// ReportSettings is one saved row of report templates. Only the latest row is used.
type ReportSettings struct {
	ID        string                  `json:"id"`
	Templates map[Tier]StoredTemplate `json:"templates"`
	CreatedAt time.Time               `json:"created_at"`
}

// StoredTemplate is the persisted, possibly partial, template for a tier.
type StoredTemplate struct {
	SystemPrompt string             `json:"system_prompt,omitempty" yaml:"system_prompt"`
	Instructions map[Section]string `json:"instructions,omitempty" yaml:"instructions"`
}

// ReportContent is the validated body of a report, discriminated by Tier.
// BI-only fields are empty for ENHANCED reports.
type ReportContent struct {
	Tier                Tier      `json:"tier" validate:"required,oneof=ENHANCED BI"`
	ExecutiveSummary    string    `json:"executive_summary" validate:"required,min=50"`
	CompanyOverview     string    `json:"company_overview" validate:"required,min=100"`
	KeyPersonnel        string    `json:"key_personnel" validate:"required,min=50"`
	GrowthOpportunities string    `json:"growth_opportunities" validate:"required,min=100"`
	Recommendations     string    `json:"recommendations" validate:"required,min=100"`
	DataSources         []string  `json:"data_sources" validate:"required,min=1,unique,dive,required"`
	GeneratedAt         time.Time `json:"generated_at" validate:"required"`

	MarketAnalysis       string `json:"market_analysis,omitempty" validate:"-"`
	FinancialInsights    string `json:"financial_insights,omitempty" validate:"-"`
	RiskAssessment       string `json:"risk_assessment,omitempty" validate:"-"`
	CompetitiveLandscape string `json:"competitive_landscape,omitempty" validate:"-"`
	IndustryTrends       string `json:"industry_trends,omitempty" validate:"-"`

	Model            string    `json:"model,omitempty" validate:"-"`
	FallbackSections []Section `json:"fallback_sections,omitempty" validate:"-"`
}

// Get returns the text of a section.
func (c *ReportContent) Get(s Section) string {
	if p := c.field(s); p != nil {
		return *p
	}
	return ""
}

// Set assigns the text of a section. Unknown sections are ignored.
func (c *ReportContent) Set(s Section, text string) {
	if p := c.field(s); p != nil {
		*p = text
	}
}

func (c *ReportContent) field(s Section) *string {
	switch s {
	case SectionExecutiveSummary:
		return &c.ExecutiveSummary
	case SectionCompanyOverview:
		return &c.CompanyOverview
	case SectionKeyPersonnel:
		return &c.KeyPersonnel
	case SectionGrowthOpportunities:
		return &c.GrowthOpportunities
	case SectionRecommendations:
		return &c.Recommendations
	case SectionMarketAnalysis:
		return &c.MarketAnalysis
	case SectionFinancialInsights:
		return &c.FinancialInsights
	case SectionRiskAssessment:
		return &c.RiskAssessment
	case SectionCompetitiveLandscape:
		return &c.CompetitiveLandscape
	case SectionIndustryTrends:
		return &c.IndustryTrends
	default:
		return nil
	}
}

// Report is a persisted, immutable generated report.
type Report struct {
	ID          string        `json:"id"`
	CompanyID   string        `json:"company_id"`
	UserID      string        `json:"user_id,omitempty"`
	Tier        Tier          `json:"tier"`
	ContentJSON ReportContent `json:"content_json"`
	ContentHTML string        `json:"content_html"`
	ArchiveKey  string        `json:"archive_key,omitempty"`
	GeneratedAt time.Time     `json:"generated_at"`
}
