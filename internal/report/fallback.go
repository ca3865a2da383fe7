package report

import (
	"github.com/exitschool/offmarket/internal/model"
)

// fallbackTemplates is the deterministic prose used for a section the model
// did not deliver. Each renders above its section's minimum length even when
// every variable holds its default.
var fallbackTemplates = map[model.Section]string{
	model.SectionExecutiveSummary: "{{company_name}} is a {{industry}} company located in {{location}}. " +
		"Based on the available public and enrichment data, it presents a potential off-market acquisition " +
		"opportunity that merits direct outreach to the owner and further diligence.",

	model.SectionCompanyOverview: "{{company_name}} operates in the {{industry}} sector in {{location}}. " +
		"The business is listed at {{address}} (website: {{website}}, phone: {{phone}}). " +
		"Online reputation: rating {{rating}}, reviews {{review_count}}. " +
		"Reported headcount: {{employee_count}}. Estimated annual revenue: {{revenue}}.",

	model.SectionKeyPersonnel: "Primary contact: {{owner_name}}. Email: {{owner_email}}. Phone: {{owner_phone}}. " +
		"Ownership and management details should be confirmed during initial outreach, since small private " +
		"businesses rarely publish their leadership structure.",

	model.SectionGrowthOpportunities: "Typical growth levers for a {{industry}} business in {{location}} include " +
		"expanding digital marketing and online reviews, broadening the service mix, introducing recurring " +
		"revenue offerings, and improving operations with modern scheduling, billing, and customer management tools.",

	model.SectionRecommendations: "Reach out to the owner of {{company_name}} to gauge interest in a confidential " +
		"sale and request financial statements for the last three years. Verify revenue ({{revenue}}), headcount " +
		"({{employee_count}}), customer concentration, lease terms, and owner involvement before preparing a letter of intent.",

	model.SectionMarketAnalysis: "{{company_name}} competes in the {{industry}} market serving customers in {{location}}. " +
		"Local demand in this sector is driven by population growth, household and business spending, and reputation " +
		"signals such as online reviews. A survey of nearby operators is recommended to size the addressable market.",

	model.SectionFinancialInsights: "Reported financial indicators for {{company_name}}: estimated annual revenue {{revenue}} " +
		"and {{employee_count}} employees. Small {{industry}} businesses are commonly valued on a multiple of seller's " +
		"discretionary earnings, so tax returns and profit and loss statements are essential before valuation.",

	model.SectionRiskAssessment: "Key risks in acquiring {{company_name}} include dependence on the current owner for " +
		"customer relationships, limited public financial information, local competition in the {{industry}} sector, " +
		"and employee retention through the ownership transition. Each should be addressed in diligence and deal structure.",
}

// FallbackText returns the deterministic prose for section s.
func FallbackText(s model.Section, vars Vars) string {
	return Substitute(fallbackTemplates[s], vars)
}
