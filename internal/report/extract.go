package report

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/exitschool/offmarket/internal/model"
)

// ExtractSections pulls section bodies out of a completion. A JSON object
// keyed by section name is tried first. Otherwise the text is scanned for
// section headings, each body running to the next recognised heading.
// Sections not found are absent from the result.
func ExtractSections(raw string, sections []model.Section) map[model.Section]string {
	if out := extractJSON(raw, sections); len(out) > 0 {
		return out
	}
	return extractHeaders(raw, sections)
}

func extractJSON(raw string, sections []model.Section) map[model.Section]string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return nil
	}

	byKey := make(map[string]any, len(obj))
	for k, v := range obj {
		byKey[normalizeKey(k)] = v
	}

	out := make(map[model.Section]string)
	for _, s := range sections {
		if text := flatten(byKey[string(s)]); text != "" {
			out[s] = text
		}
	}
	return out
}

// flatten renders a JSON value as section text. Lists become one line each.
func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		lines := make([]string, 0, len(t))
		for _, item := range t {
			if s := flatten(item); s != "" {
				lines = append(lines, "- "+s)
			}
		}
		return strings.Join(lines, "\n")
	case map[string]any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return ""
	}
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.Join(strings.FieldsFunc(k, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "_")
}

var headerPatterns = compileHeaderPatterns()

// compileHeaderPatterns builds one heading matcher per section. A heading
// may carry markdown markers, numbering, and a trailing colon or dash, and
// may be followed on the same line by body text after that separator.
func compileHeaderPatterns() map[model.Section]*regexp.Regexp {
	all := []model.Section{
		model.SectionExecutiveSummary, model.SectionCompanyOverview, model.SectionKeyPersonnel,
		model.SectionGrowthOpportunities, model.SectionRecommendations, model.SectionMarketAnalysis,
		model.SectionFinancialInsights, model.SectionRiskAssessment, model.SectionCompetitiveLandscape,
		model.SectionIndustryTrends,
	}
	out := make(map[model.Section]*regexp.Regexp, len(all))
	for _, s := range all {
		words := strings.Split(string(s), "_")
		name := strings.Join(words, `[\s_-]+`)
		out[s] = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:[*_]{1,2}\s*)?(?:(?:\d{1,2}|[ivx]{1,4})\s*[.):-]\s*)?(?:[*_]{1,2}\s*)?` +
			name + `\s*(?:\([^)]*\))?\s*(?:[*_]{1,2})?\s*(?:(?:[:\-–—]|[*_]{1,2}:)\s*(?:[*_]{1,2})?\s*(.*))?$`)
	}
	return out
}

func extractHeaders(raw string, sections []model.Section) map[model.Section]string {
	type hit struct {
		section model.Section
		line    int
		inline  string
	}

	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	var hits []hit
	for i, line := range lines {
		for s, re := range headerPatterns {
			if m := re.FindStringSubmatch(line); m != nil {
				hits = append(hits, hit{section: s, line: i, inline: m[1]})
				break
			}
		}
	}

	wanted := make(map[model.Section]bool, len(sections))
	for _, s := range sections {
		wanted[s] = true
	}

	out := make(map[model.Section]string)
	for i, h := range hits {
		if !wanted[h.section] {
			continue
		}
		if _, seen := out[h.section]; seen {
			continue
		}
		stop := len(lines)
		if i+1 < len(hits) {
			stop = hits[i+1].line
		}
		body := append([]string{h.inline}, lines[h.line+1:stop]...)
		if text := cleanBody(strings.Join(body, "\n")); text != "" {
			out[h.section] = text
		}
	}
	return out
}

// cleanBody trims whitespace and stray emphasis markers around a body.
func cleanBody(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "**")
	s = strings.TrimSuffix(s, "**")
	return strings.TrimSpace(s)
}
