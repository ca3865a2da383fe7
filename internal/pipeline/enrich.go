package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/model"
)

// EnrichRequest asks for one company to be enriched. Providers overrides the
// configured source priority when non-empty.
type EnrichRequest struct {
	CompanyID string
	UserID    string
	Providers []string
}

// Enrich consults the enrichment vendors for a company, persists the merged
// result atomically and writes an audit entry. Only a missing company or a
// failed save is an error; vendor failures are absorbed.
func (s *Service) Enrich(ctx context.Context, req EnrichRequest) (*model.Company, error) {
	if strings.TrimSpace(req.CompanyID) == "" {
		return nil, invalid("companyId is required")
	}
	company, err := s.loadCompany(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, company, req.UserID, req.Providers)
}

func (s *Service) enrich(ctx context.Context, company *model.Company, userID string, providers []string) (*model.Company, error) {
	if len(providers) == 0 {
		providers = s.resolver.Resolve(ctx)
	}
	log := zap.L().With(zap.String("company_id", company.ID), zap.Strings("providers", providers))
	log.Info("pipeline: enriching company")

	result := s.aggregator.Enrich(ctx, *company, providers)

	if _, err := s.store.SaveEnrichment(ctx, company.ID, *result); err != nil {
		return nil, eris.Wrapf(err, "pipeline: save enrichment for %s", company.ID)
	}

	s.audit.Record(ctx, userID, model.AuditActionEnrich, "company", company.ID, map[string]any{
		"providers":  providers,
		"fields":     result.FieldNames(),
		"pending":    len(result.Pending),
		"confidence": result.Confidence,
	})

	out := *company
	out.IsEnriched = true
	out.EnrichmentData = result
	log.Info("pipeline: enrichment saved",
		zap.Int("fields", len(result.Values)),
		zap.Float64("confidence", result.Confidence),
	)
	return &out, nil
}

// LateEnrichment is a vendor payload that arrived after the enrichment run,
// for example a Clay callback.
type LateEnrichment struct {
	CompanyID string
	Vendor    string
	// RequestID echoes the id the vendor was given at submit time. When both
	// it and the pending lookup carry one they must match.
	RequestID string
	Fields    map[string]any
}

// ApplyLateEnrichment merges a late payload into the company's current
// enrichment with the first-wins rule and persists it. Reports generated
// earlier are not regenerated.
func (s *Service) ApplyLateEnrichment(ctx context.Context, in LateEnrichment) (*model.Company, []string, error) {
	if strings.TrimSpace(in.CompanyID) == "" || strings.TrimSpace(in.Vendor) == "" {
		return nil, nil, invalid("company id and vendor are required")
	}
	company, err := s.loadCompany(ctx, in.CompanyID)
	if err != nil {
		return nil, nil, err
	}

	vendorName := strings.ToLower(strings.TrimSpace(in.Vendor))
	if p := company.EnrichmentData.PendingFor(vendorName); p != nil &&
		in.RequestID != "" && p.RequestID != "" && p.RequestID != in.RequestID {
		zap.L().Warn("pipeline: late enrichment for a different lookup",
			zap.String("company_id", company.ID),
			zap.String("vendor", vendorName),
			zap.String("pending_request_id", p.RequestID),
			zap.String("request_id", in.RequestID),
		)
		return nil, nil, invalid(fmt.Sprintf("request_id %q does not match the pending %s lookup", in.RequestID, vendorName))
	}

	fields := make(map[string]any, len(in.Fields))
	for k, v := range in.Fields {
		if model.IsEnrichmentField(k) {
			fields[k] = v
		}
	}

	result, written := s.aggregator.ApplyLate(company.EnrichmentData, in.Vendor, fields)
	if _, err := s.store.SaveEnrichment(ctx, company.ID, *result); err != nil {
		return nil, nil, eris.Wrapf(err, "pipeline: save late enrichment for %s", company.ID)
	}

	s.audit.Record(ctx, "", model.AuditActionLateEnrich, "company", company.ID, map[string]any{
		"vendor":     vendorName,
		"request_id": in.RequestID,
		"fields":     written,
		"confidence": result.Confidence,
	})

	out := *company
	out.IsEnriched = true
	out.EnrichmentData = result
	return &out, written, nil
}
