package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/exitschool/offmarket/internal/model"
)

func TestSubstitute(t *testing.T) {
	vars := Vars{"company_name": "Acme", "industry": "Plumbing"}

	assert.Equal(t, "Acme is in Plumbing", Substitute("{{company_name}} is in {{ industry }}", vars))
	assert.Equal(t, "Hello {{unknown}}", Substitute("Hello {{unknown}}", vars))
	assert.Equal(t, "no tokens", Substitute("no tokens", vars))
	assert.Equal(t, "{{ not a token }}", Substitute("{{ not a token }}", vars))
}

func TestBuildPrompts(t *testing.T) {
	vars := BuildContext(Input{
		Company: model.Company{Name: "Acme"},
		Search:  &model.Search{Industry: "Plumbing", City: "Austin", State: "TX"},
	}, fixedNow)

	system, user := BuildPrompts(DefaultTemplate(model.TierEnhanced), model.TierEnhanced, vars)
	assert.Contains(t, system, "Acme")
	assert.Contains(t, system, "Austin, TX")
	assert.NotContains(t, system, "{{")

	assert.Contains(t, user, "1. EXECUTIVE SUMMARY:")
	assert.Contains(t, user, "5. RECOMMENDATIONS:")
	assert.NotContains(t, user, "MARKET ANALYSIS")
	assert.Contains(t, user, "- Owner / key contact: Contact not identified")
	assert.Contains(t, user, "executive_summary, company_overview, key_personnel, growth_opportunities, recommendations")

	_, biUser := BuildPrompts(DefaultTemplate(model.TierBI), model.TierBI, vars)
	assert.Contains(t, biUser, "8. RISK ASSESSMENT:")
	assert.Contains(t, biUser, "9. COMPETITIVE LANDSCAPE (optional)")
	assert.Contains(t, biUser, "10. INDUSTRY TRENDS (optional)")
	assert.True(t, strings.Count(biUser, "\n") > strings.Count(user, "\n"))
}
