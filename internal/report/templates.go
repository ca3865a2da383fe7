package report

import (
	"context"
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/exitschool/offmarket/internal/model"
)

//go:embed templates.yaml
var defaultTemplatesYAML []byte

var defaultTemplates = mustParseDefaults()

func mustParseDefaults() map[model.Tier]model.StoredTemplate {
	var out map[model.Tier]model.StoredTemplate
	if err := yaml.Unmarshal(defaultTemplatesYAML, &out); err != nil {
		panic(err) // embedded file is part of the build
	}
	for _, tier := range []model.Tier{model.TierEnhanced, model.TierBI} {
		t, ok := out[tier]
		if !ok || t.SystemPrompt == "" {
			panic("report: default template missing for " + string(tier))
		}
		for _, s := range tier.RequiredSections() {
			if t.Instructions[s] == "" {
				panic("report: default instruction missing for " + string(tier) + "." + string(s))
			}
		}
	}
	return out
}

// DefaultTemplate returns the built-in template for tier.
func DefaultTemplate(tier model.Tier) model.PromptTemplate {
	return ResolveTemplate(nil, tier)
}

// ResolveTemplate merges the stored settings for tier over the built-in
// defaults field by field, so every section always has an instruction.
// settings may be nil.
func ResolveTemplate(settings *model.ReportSettings, tier model.Tier) model.PromptTemplate {
	def := defaultTemplates[tier]
	out := model.PromptTemplate{
		Tier:         tier,
		SystemPrompt: def.SystemPrompt,
		Instructions: make(map[model.Section]string),
	}
	for _, s := range tier.RequiredSections() {
		out.Instructions[s] = def.Instructions[s]
	}
	if settings == nil {
		return out
	}
	stored, ok := settings.Templates[tier]
	if !ok {
		return out
	}
	if strings.TrimSpace(stored.SystemPrompt) != "" {
		out.SystemPrompt = stored.SystemPrompt
	}
	for _, s := range tier.RequiredSections() {
		if v := strings.TrimSpace(stored.Instructions[s]); v != "" {
			out.Instructions[s] = stored.Instructions[s]
		}
	}
	return out
}

// SettingsReader reads the latest saved report settings row.
type SettingsReader interface {
	LatestReportSettings(ctx context.Context) (*model.ReportSettings, error)
}

// TemplateStore resolves prompt templates from saved settings.
type TemplateStore struct {
	reader SettingsReader
}

// NewTemplateStore creates a template store.
func NewTemplateStore(reader SettingsReader) *TemplateStore {
	return &TemplateStore{reader: reader}
}

// Get returns the template for tier. A settings read failure falls back to
// the built-in defaults.
func (s *TemplateStore) Get(ctx context.Context, tier model.Tier) model.PromptTemplate {
	settings, err := s.reader.LatestReportSettings(ctx)
	if err != nil {
		zap.L().Warn("report: read settings failed, using default template",
			zap.String("tier", string(tier)), zap.Error(err))
		settings = nil
	}
	return ResolveTemplate(settings, tier)
}

// ValidateTemplates checks admin-supplied templates before they are saved.
// Tiers and sections must be known and any supplied text non-empty.
func ValidateTemplates(templates map[model.Tier]model.StoredTemplate) error {
	if len(templates) == 0 {
		return eris.New("report: at least one tier template is required")
	}
	for tier, t := range templates {
		if tier != model.TierEnhanced && tier != model.TierBI {
			return eris.Errorf("report: unknown tier %q", tier)
		}
		if t.SystemPrompt != "" && strings.TrimSpace(t.SystemPrompt) == "" {
			return eris.Errorf("report: %s system_prompt is blank", tier)
		}
		allowed := make(map[model.Section]bool)
		for _, s := range tier.RequiredSections() {
			allowed[s] = true
		}
		for s, text := range t.Instructions {
			if !allowed[s] {
				return eris.Errorf("report: %s has no section %q", tier, s)
			}
			if strings.TrimSpace(text) == "" {
				return eris.Errorf("report: %s.%s instruction is blank", tier, s)
			}
		}
	}
	return nil
}
