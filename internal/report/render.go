package report

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/exitschool/offmarket/internal/model"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(
	template.New("report.html.tmpl").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/report.html.tmpl"),
)

type renderFact struct {
	Label string
	Value string
}

type renderSection struct {
	ID         string
	Title      string
	Paragraphs [][]string
}

type renderData struct {
	CompanyName string
	TierLabel   string
	GeneratedAt string
	Facts       []renderFact
	Sections    []renderSection
	DataSources []string
}

// Render produces a self-contained HTML document for the report. Only the
// sections of the content's tier are considered, and empty ones are omitted.
func Render(content model.ReportContent, company model.Company) (string, error) {
	tier := content.Tier
	if tier == "" {
		tier = model.TierEnhanced
	}

	data := renderData{
		CompanyName: orDefault(company.Name, DefaultCompanyName),
		TierLabel:   tier.Label(),
		DataSources: content.DataSources,
	}
	if !content.GeneratedAt.IsZero() {
		data.GeneratedAt = content.GeneratedAt.Format("January 2, 2006")
	}
	for _, f := range []renderFact{
		{"Website", company.Website},
		{"Phone", company.Phone},
		{"Address", company.Address},
	} {
		if strings.TrimSpace(f.Value) != "" {
			data.Facts = append(data.Facts, f)
		}
	}

	sections := append(tier.RequiredSections(), tier.OptionalSections()...)
	for _, s := range sections {
		text := strings.TrimSpace(content.Get(s))
		if text == "" {
			continue
		}
		data.Sections = append(data.Sections, renderSection{
			ID:         string(s),
			Title:      s.Title(),
			Paragraphs: paragraphs(text),
		})
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "report: render html")
	}
	return buf.String(), nil
}

// paragraphs splits text on blank lines; each paragraph keeps its lines.
func paragraphs(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out [][]string
	for _, block := range strings.Split(text, "\n\n") {
		var lines []string
		for _, l := range strings.Split(block, "\n") {
			if l = strings.TrimSpace(l); l != "" {
				lines = append(lines, l)
			}
		}
		if len(lines) > 0 {
			out = append(out, lines)
		}
	}
	return out
}
