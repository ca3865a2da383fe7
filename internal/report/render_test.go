package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/exitschool/offmarket/internal/model"
)

func TestRender_Enhanced(t *testing.T) {
	c := validContent(model.TierEnhanced)
	c.ExecutiveSummary = "Line one\nLine two\n\nSecond <b>paragraph</b>"
	c.DataSources = []string{"Company website", "Hunter.io"}

	html, err := Render(c, model.Company{Name: "Acme & Sons", Website: "acme.com"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, "<h1>Acme &amp; Sons</h1>")
	assert.Contains(t, html, "Enhanced")
	assert.Contains(t, html, "March 14, 2026")
	assert.Contains(t, html, "<p>Line one<br>Line two</p>")
	assert.Contains(t, html, "Second &lt;b&gt;paragraph&lt;/b&gt;")
	assert.Contains(t, html, "Data sources: Company website, Hunter.io")
	assert.Contains(t, html, `<dt>Website</dt><dd>acme.com</dd>`)
	assert.NotContains(t, html, "<dt>Phone</dt>")
	assert.NotContains(t, html, "Market Analysis")
	assert.Contains(t, html, `<section id="recommendations">`)
}

func TestRender_BIOptionalSections(t *testing.T) {
	c := validContent(model.TierBI)
	c.CompetitiveLandscape = "Three competitors within a mile."

	html, err := Render(c, model.Company{Name: "Acme"})
	require.NoError(t, err)
	assert.Contains(t, html, "Business Intelligence")
	assert.Contains(t, html, "<h2>Market Analysis</h2>")
	assert.Contains(t, html, "<h2>Risk Assessment</h2>")
	assert.Contains(t, html, "<h2>Competitive Landscape</h2>")
	assert.NotContains(t, html, "Industry Trends")
}

func TestRender_EmptyContent(t *testing.T) {
	html, err := Render(model.ReportContent{}, model.Company{})
	require.NoError(t, err)
	assert.Contains(t, html, DefaultCompanyName)
	assert.NotContains(t, html, "<section")
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, paragraphs("a\r\nb\n\n\n c \n"))
	assert.Nil(t, paragraphs("  \n\n "))
}
