package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/exitschool/offmarket/internal/model"
)

func TestExtractSections_JSON(t *testing.T) {
	raw := "```json\n" + `{
		"Executive Summary": "Strong local brand.",
		"company_overview": "Founded in 1998.",
		"growth_opportunities": ["Add maintenance plans", "Expand to Round Rock"],
		"market_analysis": "ignored for ENHANCED"
	}` + "\n```"

	got := ExtractSections(raw, model.TierEnhanced.RequiredSections())
	assert.Equal(t, map[model.Section]string{
		model.SectionExecutiveSummary:    "Strong local brand.",
		model.SectionCompanyOverview:     "Founded in 1998.",
		model.SectionGrowthOpportunities: "- Add maintenance plans\n- Expand to Round Rock",
	}, got)
}

func TestExtractSections_Headers(t *testing.T) {
	raw := `Here is the report.

## 1. Executive Summary
Acme is a well-reviewed plumber.
It has grown steadily.

**2) COMPANY OVERVIEW:** Acme operates from Austin.

### Key Personnel
Jane Doe, owner.

4 - Growth Opportunities: Add service contracts.
Recommendations include staying close to the owner.

RECOMMENDATIONS
Call the owner.

Market Analysis
Not requested for this tier.`

	got := ExtractSections(raw, model.TierEnhanced.RequiredSections())
	assert.Equal(t, "Acme is a well-reviewed plumber.\nIt has grown steadily.", got[model.SectionExecutiveSummary])
	assert.Equal(t, "Acme operates from Austin.", got[model.SectionCompanyOverview])
	assert.Equal(t, "Jane Doe, owner.", got[model.SectionKeyPersonnel])
	assert.Equal(t, "Add service contracts.\nRecommendations include staying close to the owner.", got[model.SectionGrowthOpportunities])
	assert.Equal(t, "Call the owner.", got[model.SectionRecommendations])
	_, hasMarket := got[model.SectionMarketAnalysis]
	assert.False(t, hasMarket)
}

func TestExtractSections_EmptyAndGarbage(t *testing.T) {
	sections := model.TierBI.RequiredSections()
	assert.Empty(t, ExtractSections("", sections))
	assert.Empty(t, ExtractSections("I cannot help with that.", sections))
	assert.Empty(t, ExtractSections(`{"executive_summary": "truncated`, sections))

	got := ExtractSections("EXECUTIVE SUMMARY\n\nRISK ASSESSMENT\nOwner dependence.", sections)
	_, hasSummary := got[model.SectionExecutiveSummary]
	assert.False(t, hasSummary, "empty capture is not a section")
	assert.Equal(t, "Owner dependence.", got[model.SectionRiskAssessment])
}

func TestExtractSections_FirstOccurrenceWins(t *testing.T) {
	raw := "Executive Summary: first\nExecutive Summary: second"
	got := ExtractSections(raw, []model.Section{model.SectionExecutiveSummary})
	assert.Equal(t, "first", got[model.SectionExecutiveSummary])
}
