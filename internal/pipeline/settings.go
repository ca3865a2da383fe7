package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/report"
	"github.com/exitschool/offmarket/internal/store"
)

// SourceUpdate changes one enrichment source. Nil fields are left alone.
type SourceUpdate struct {
	SourceName string
	Priority   *model.Priority
	IsEnabled  *bool
}

// ListSources returns the enrichment source configuration.
func (s *Service) ListSources(ctx context.Context) ([]model.EnrichmentSource, error) {
	sources, err := s.store.ListEnrichmentSources(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list sources")
	}
	return sources, nil
}

// UpdateSources applies updates in order. Giving a source a rank another
// source holds demotes the holder to DO_NOT_USE, so ranks stay unique.
func (s *Service) UpdateSources(ctx context.Context, userID string, updates []SourceUpdate) ([]model.EnrichmentSource, error) {
	if len(updates) == 0 {
		return nil, invalid("no source updates given")
	}
	sources, err := s.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(sources))
	for i, src := range sources {
		index[src.SourceName] = i
	}

	changed := make(map[string]bool)
	for _, u := range updates {
		name := strings.ToLower(strings.TrimSpace(u.SourceName))
		i, ok := index[name]
		if !ok {
			return nil, invalid(fmt.Sprintf("unknown source %q", u.SourceName))
		}
		if u.IsEnabled != nil {
			sources[i].IsEnabled = *u.IsEnabled
			changed[name] = true
		}
		if u.Priority == nil {
			continue
		}
		p := model.Priority(strings.ToUpper(string(*u.Priority)))
		if !p.Valid() {
			return nil, invalid(fmt.Sprintf("priority %q must be FIRST, SECOND, THIRD or DO_NOT_USE", *u.Priority))
		}
		if p != model.PriorityDoNotUse {
			for j := range sources {
				if j != i && sources[j].Priority == p {
					zap.L().Info("pipeline: demoting source holding rank",
						zap.String("source", sources[j].SourceName),
						zap.String("priority", string(p)),
					)
					sources[j].Priority = model.PriorityDoNotUse
					changed[sources[j].SourceName] = true
				}
			}
		}
		sources[i].Priority = p
		changed[name] = true
	}

	var save []model.EnrichmentSource
	for _, src := range sources {
		if changed[src.SourceName] {
			save = append(save, src)
		}
	}
	if err := s.store.SaveEnrichmentSources(ctx, save); err != nil {
		return nil, eris.Wrap(err, "pipeline: save sources")
	}

	names := make([]string, 0, len(save))
	for _, src := range save {
		names = append(names, src.SourceName)
	}
	s.audit.Record(ctx, userID, model.AuditActionSettings, "enrichment_sources", "", map[string]any{
		"changed": names,
	})
	return sources, nil
}

// ReportTemplates returns the effective template of each tier.
func (s *Service) ReportTemplates(ctx context.Context) map[model.Tier]model.PromptTemplate {
	return map[model.Tier]model.PromptTemplate{
		model.TierEnhanced: s.templates.Get(ctx, model.TierEnhanced),
		model.TierBI:       s.templates.Get(ctx, model.TierBI),
	}
}

// SaveReportTemplates stores a new settings row. Missing fields fall back to
// the built-in defaults when read.
func (s *Service) SaveReportTemplates(ctx context.Context, userID string, templates map[model.Tier]model.StoredTemplate) (*model.ReportSettings, error) {
	if err := report.ValidateTemplates(templates); err != nil {
		return nil, eris.Wrap(ErrInvalidRequest, err.Error())
	}
	saved, err := s.store.SaveReportSettings(ctx, model.ReportSettings{Templates: templates})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: save report settings")
	}

	tiers := make([]string, 0, len(templates))
	for t := range templates {
		tiers = append(tiers, string(t))
	}
	s.audit.Record(ctx, userID, model.AuditActionSettings, "report_settings", saved.ID, map[string]any{
		"tiers": tiers,
	})
	return saved, nil
}

// RotateCredential encrypts and stores a vendor secret. The new value is
// picked up once the credential cache entry expires.
func (s *Service) RotateCredential(ctx context.Context, userID, service, secret string) error {
	service = strings.ToLower(strings.TrimSpace(service))
	if !knownService(service) {
		return invalid(fmt.Sprintf("unknown service %q", service))
	}
	if strings.TrimSpace(secret) == "" {
		return invalid("secret is required")
	}
	if s.secrets == nil {
		return eris.New("pipeline: credential store is not configured")
	}
	if err := s.secrets.Put(ctx, service, secret); err != nil {
		return eris.Wrapf(err, "pipeline: rotate %s credential", service)
	}
	s.audit.Record(ctx, userID, model.AuditActionCredential, "credential", service, nil)
	return nil
}

func knownService(name string) bool {
	for _, src := range store.DefaultSources {
		if src.SourceName == name {
			return true
		}
	}
	return false
}
