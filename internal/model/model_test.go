package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriority_Rank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		p     Priority
		rank  int
		valid bool
	}{
		{PriorityFirst, 1, true},
		{PrioritySecond, 2, true},
		{PriorityThird, 3, true},
		{PriorityDoNotUse, 0, true},
		{"first", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.p), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.rank, tt.p.Rank())
			assert.Equal(t, tt.valid, tt.p.Valid())
		})
	}
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	tier, ok := ParseTier(" enhanced ")
	assert.True(t, ok)
	assert.Equal(t, TierEnhanced, tier)

	tier, ok = ParseTier("bi")
	assert.True(t, ok)
	assert.Equal(t, TierBI, tier)
	assert.Equal(t, "Business Intelligence", tier.Label())

	_, ok = ParseTier("PREMIUM")
	assert.False(t, ok)
}

func TestTier_Sections(t *testing.T) {
	t.Parallel()

	enhanced := TierEnhanced.RequiredSections()
	bi := TierBI.RequiredSections()
	assert.Len(t, enhanced, 5)
	assert.Len(t, bi, 8)
	assert.Equal(t, enhanced, bi[:len(enhanced)])
	assert.Empty(t, TierEnhanced.OptionalSections())
	assert.Equal(t, []Section{SectionCompetitiveLandscape, SectionIndustryTrends}, TierBI.OptionalSections())

	assert.Equal(t, "Executive Summary", SectionExecutiveSummary.Title())
}

func TestReportContent_GetSet(t *testing.T) {
	t.Parallel()

	var c ReportContent
	c.Set(SectionRiskAssessment, "Key-person risk.")
	c.Set("unknown_section", "ignored")
	assert.Equal(t, "Key-person risk.", c.RiskAssessment)
	assert.Equal(t, "Key-person risk.", c.Get(SectionRiskAssessment))
	assert.Empty(t, c.Get("unknown_section"))
}

func TestEnrichmentResult_Accessors(t *testing.T) {
	t.Parallel()

	r := NewEnrichmentResult()
	r.Values[FieldOwnerName] = "Dana Ruiz"
	r.Values[FieldEmployeeCount] = float64(14)
	r.Values[FieldRevenue] = 1250000.5
	r.Values[FieldOwnerEmail] = ""
	r.Sources[FieldOwnerName] = "hunter"

	assert.True(t, r.Has(FieldOwnerName))
	assert.False(t, r.Has(FieldOwnerEmail))
	assert.Equal(t, "14", r.String(FieldEmployeeCount))
	assert.Equal(t, "1250000.50", r.String(FieldRevenue))
	n, ok := r.Number(FieldEmployeeCount)
	assert.True(t, ok)
	assert.Equal(t, 14.0, n)
	_, ok = r.Number(FieldOwnerName)
	assert.False(t, ok)
	assert.Equal(t, "hunter", r.Source(FieldOwnerName))
	assert.Equal(t, []string{FieldOwnerName, FieldEmployeeCount, FieldRevenue}, r.FieldNames())
	assert.False(t, r.Complete())

	var nilResult *EnrichmentResult
	assert.False(t, nilResult.Has(FieldOwnerName))
	assert.Empty(t, nilResult.Source(FieldOwnerName))
	assert.False(t, nilResult.IsPending("clay"))
}

func TestIsEmptyValue(t *testing.T) {
	t.Parallel()

	assert.True(t, IsEmptyValue(nil))
	assert.True(t, IsEmptyValue(""))
	assert.True(t, IsEmptyValue(0))
	assert.True(t, IsEmptyValue(float64(0)))
	assert.False(t, IsEmptyValue("x"))
	assert.False(t, IsEmptyValue(3.5))
	assert.False(t, IsEmptyValue(true))
}

func TestCompany_Domain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		website string
		want    string
	}{
		{"https://www.PikeDiner.com/menu", "pikediner.com"},
		{"pikediner.com", "pikediner.com"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Company{Website: tt.website}.Domain(), tt.website)
	}

	assert.Equal(t, "Seattle, WA", Search{City: "Seattle", State: "WA"}.Location())
	assert.Equal(t, "WA", Search{State: "WA"}.Location())
}

func TestEnrichmentResult_PendingFor(t *testing.T) {
	t.Parallel()

	r := NewEnrichmentResult()
	r.Pending = []PendingLookup{{Vendor: "clay", RequestID: "req-1"}}

	p := r.PendingFor("clay")
	if assert.NotNil(t, p) {
		assert.Equal(t, "req-1", p.RequestID)
	}
	assert.True(t, r.IsPending("clay"))
	assert.Nil(t, r.PendingFor("hunter"))

	var nilResult *EnrichmentResult
	assert.Nil(t, nilResult.PendingFor("clay"))
}
