package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/report"
	"github.com/exitschool/offmarket/internal/store"
)

// ReportRequest asks for a report on a company the user discovered.
type ReportRequest struct {
	CompanyID string
	UserID    string
	Tier      string
}

// GenerateReport drafts, validates, renders and stores a new report. LLM
// failures degrade to fallback prose; a missing company, a foreign user and
// a content schema violation are errors. Each call inserts a new row.
func (s *Service) GenerateReport(ctx context.Context, req ReportRequest) (*model.Report, *model.Company, error) {
	if strings.TrimSpace(req.CompanyID) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, nil, invalid("companyId and userId are required")
	}
	tier, ok := model.ParseTier(req.Tier)
	if !ok {
		return nil, nil, invalid(fmt.Sprintf("tier %q must be ENHANCED or BI", req.Tier))
	}

	company, err := s.loadCompany(ctx, req.CompanyID)
	if err != nil {
		return nil, nil, err
	}
	search, err := s.authorize(ctx, company, req.UserID)
	if err != nil {
		return nil, nil, err
	}

	log := zap.L().With(
		zap.String("company_id", company.ID),
		zap.String("user_id", req.UserID),
		zap.String("tier", string(tier)),
	)

	if !company.IsEnriched && s.autoEnrich && s.aggregator != nil {
		enriched, err := s.enrich(ctx, company, req.UserID, nil)
		if err != nil {
			log.Warn("pipeline: auto-enrich failed, continuing with raw company data", zap.Error(err))
		} else {
			company = enriched
		}
	}

	tpl := s.templates.Get(ctx, tier)
	content := s.generator.Generate(ctx, report.Input{
		Company:    *company,
		Search:     search,
		Enrichment: company.EnrichmentData,
	}, tpl, tier)

	content, err = s.validator.Validate(content)
	if err != nil {
		log.Error("pipeline: report content failed validation", zap.Error(err))
		return nil, nil, err
	}

	html, err := report.Render(content, *company)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: render report")
	}

	r := model.Report{
		ID:          uuid.NewString(),
		CompanyID:   company.ID,
		UserID:      req.UserID,
		Tier:        tier,
		ContentJSON: content,
		ContentHTML: html,
		GeneratedAt: content.GeneratedAt,
	}
	if s.archive != nil {
		key, err := s.archive.Put(ctx, r)
		if err != nil {
			log.Warn("pipeline: archive report failed", zap.Error(err))
		}
		r.ArchiveKey = key
	}

	saved, err := s.store.InsertReport(ctx, r)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: insert report")
	}

	s.audit.Record(ctx, req.UserID, model.AuditActionReport, "report", saved.ID, map[string]any{
		"company_id": company.ID,
		"tier":       string(tier),
		"model":      content.Model,
		"fallback":   len(content.FallbackSections),
	})
	if s.notify != nil {
		s.notify.ReportReady(ctx, req.UserID, *saved, company.Name)
	}

	log.Info("pipeline: report generated",
		zap.String("report_id", saved.ID),
		zap.Int("fallback_sections", len(content.FallbackSections)),
	)
	return saved, company, nil
}

// authorize checks the user owns the search the company came from.
func (s *Service) authorize(ctx context.Context, company *model.Company, userID string) (*model.Search, error) {
	if company.SearchID == "" {
		return nil, eris.Wrapf(ErrAccessDenied, "company %s has no search", company.ID)
	}
	search, err := s.store.GetSearch(ctx, company.SearchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrAccessDenied, "search %s", company.SearchID)
		}
		return nil, eris.Wrap(err, "pipeline: load search")
	}
	if search.UserID != userID {
		return nil, eris.Wrapf(ErrAccessDenied, "user %s on company %s", userID, company.ID)
	}
	return search, nil
}

// GetReport returns a stored report.
func (s *Service) GetReport(ctx context.Context, id string) (*model.Report, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("report id is required")
	}
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: get report %s", id)
	}
	return r, nil
}

// ListReports returns a company's reports, newest first.
func (s *Service) ListReports(ctx context.Context, companyID string) ([]model.Report, error) {
	if _, err := s.loadCompany(ctx, companyID); err != nil {
		return nil, err
	}
	reports, err := s.store.ListReports(ctx, companyID)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: list reports for %s", companyID)
	}
	return reports, nil
}
