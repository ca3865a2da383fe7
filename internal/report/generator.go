package report

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/model"
)

// Options bounds the LLM call per tier.
type Options struct {
	EnhancedMaxTokens int
	BIMaxTokens       int
	Temperature       float64
	Timeout           time.Duration
}

// DefaultOptions are the token budgets and temperature used when unset.
func DefaultOptions() Options {
	return Options{EnhancedMaxTokens: 2000, BIMaxTokens: 4000, Temperature: 0.7, Timeout: 60 * time.Second}
}

func (o Options) maxTokens(t model.Tier) int {
	if t == model.TierBI {
		return o.BIMaxTokens
	}
	return o.EnhancedMaxTokens
}

// Generator drafts report content. The LLM is called once; anything it does
// not deliver is filled with fallback prose.
type Generator struct {
	llm  Completer
	opts Options
	now  func() time.Time
}

// NewGenerator creates a generator. llm may be nil, in which case every
// section is fallback prose.
func NewGenerator(llm Completer, opts Options) *Generator {
	def := DefaultOptions()
	if opts.EnhancedMaxTokens <= 0 {
		opts.EnhancedMaxTokens = def.EnhancedMaxTokens
	}
	if opts.BIMaxTokens <= 0 {
		opts.BIMaxTokens = def.BIMaxTokens
	}
	if opts.Temperature < 0 || opts.Temperature > 2 {
		opts.Temperature = def.Temperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	return &Generator{llm: llm, opts: opts, now: time.Now}
}

// Generate drafts the content of a tier report from in using tpl. It does
// not fail: LLM errors and missing or short sections degrade to fallback
// prose.
func (g *Generator) Generate(ctx context.Context, in Input, tpl model.PromptTemplate, tier model.Tier) model.ReportContent {
	now := g.now().UTC()
	vars := BuildContext(in, now)
	required := tier.RequiredSections()
	optional := tier.OptionalSections()

	content := model.ReportContent{Tier: tier}
	extracted := g.draft(ctx, in.Company.ID, tpl, tier, vars, append(append([]model.Section(nil), required...), optional...))
	if g.llm != nil && len(extracted) > 0 {
		content.Model = g.llm.Model()
	}

	for _, s := range required {
		text := strings.TrimSpace(extracted[s])
		if len([]rune(text)) < MinLength(s) {
			text = FallbackText(s, vars)
			content.FallbackSections = append(content.FallbackSections, s)
		}
		content.Set(s, text)
	}
	for _, s := range optional {
		if text := strings.TrimSpace(extracted[s]); text != "" {
			content.Set(s, text)
		}
	}

	content.DataSources = DataSources(enrichmentOf(in))
	content.GeneratedAt = now

	if len(content.FallbackSections) > 0 {
		zap.L().Info("report: fallback content used",
			zap.String("company_id", in.Company.ID),
			zap.String("tier", string(tier)),
			zap.Int("sections", len(content.FallbackSections)),
		)
	}
	return content
}

// draft makes the single LLM call and extracts what it can.
func (g *Generator) draft(ctx context.Context, companyID string, tpl model.PromptTemplate, tier model.Tier, vars Vars, sections []model.Section) map[model.Section]string {
	if g.llm == nil {
		return nil
	}
	system, user := BuildPrompts(tpl, tier, vars)

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := g.llm.Complete(ctx, Completion{
		System:      system,
		User:        user,
		MaxTokens:   g.opts.maxTokens(tier),
		Temperature: g.opts.Temperature,
		JSON:        true,
	})
	if err != nil {
		zap.L().Warn("report: llm call failed, using fallback content",
			zap.String("company_id", companyID),
			zap.String("tier", string(tier)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil
	}

	out := ExtractSections(raw, sections)
	zap.L().Debug("report: llm sections parsed",
		zap.String("company_id", companyID),
		zap.Int("found", len(out)),
		zap.Int("expected", len(sections)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out
}

func enrichmentOf(in Input) *model.EnrichmentResult {
	if in.Enrichment != nil {
		return in.Enrichment
	}
	return in.Company.EnrichmentData
}
