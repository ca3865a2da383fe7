// Package pipeline runs the per-company operations of the service: vendor
// enrichment, late enrichment callbacks, report generation and the admin
// settings that steer them.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/exitschool/offmarket/internal/audit"
	"github.com/exitschool/offmarket/internal/enrichment"
	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/report"
	"github.com/exitschool/offmarket/internal/store"
)

var (
	// ErrCompanyNotFound is returned when the company id does not exist.
	ErrCompanyNotFound = eris.New("Company not found")
	// ErrAccessDenied is returned when the user does not own the company's search.
	ErrAccessDenied = eris.New("User does not have access to this company")
	// ErrInvalidRequest is returned for malformed input.
	ErrInvalidRequest = eris.New("invalid request")
)

// Archiver stores rendered report HTML and returns the object key.
type Archiver interface {
	Put(ctx context.Context, r model.Report) (string, error)
}

// Notifier tells a user their report is ready. Implementations must not block
// on failure.
type Notifier interface {
	ReportReady(ctx context.Context, userID string, r model.Report, companyName string)
}

// Secrets rotates vendor credentials.
type Secrets interface {
	Put(ctx context.Context, service, secret string) error
}

// Deps are the collaborators of a Service. Archive, Notify and Secrets are
// optional.
type Deps struct {
	Store      store.Store
	Resolver   *enrichment.Resolver
	Aggregator *enrichment.Aggregator
	Templates  *report.TemplateStore
	Generator  *report.Generator
	Validator  *report.Validator
	Audit      *audit.Logger
	Archive    Archiver
	Notify     Notifier
	Secrets    Secrets
	// AutoEnrich enriches unenriched companies before drafting a report.
	AutoEnrich bool
}

// Service orchestrates enrichment and report generation.
type Service struct {
	store      store.Store
	resolver   *enrichment.Resolver
	aggregator *enrichment.Aggregator
	templates  *report.TemplateStore
	generator  *report.Generator
	validator  *report.Validator
	audit      *audit.Logger
	archive    Archiver
	notify     Notifier
	secrets    Secrets
	autoEnrich bool
	now        func() time.Time
}

// New creates a Service.
func New(d Deps) *Service {
	s := &Service{
		store:      d.Store,
		resolver:   d.Resolver,
		aggregator: d.Aggregator,
		templates:  d.Templates,
		generator:  d.Generator,
		validator:  d.Validator,
		audit:      d.Audit,
		archive:    d.Archive,
		notify:     d.Notify,
		secrets:    d.Secrets,
		autoEnrich: d.AutoEnrich,
		now:        time.Now,
	}
	if s.resolver == nil {
		s.resolver = enrichment.NewResolver(d.Store, nil)
	}
	if s.templates == nil {
		s.templates = report.NewTemplateStore(d.Store)
	}
	if s.validator == nil {
		s.validator = report.NewValidator()
	}
	return s
}

// loadCompany fetches a company, mapping a missing row to ErrCompanyNotFound.
func (s *Service) loadCompany(ctx context.Context, id string) (*model.Company, error) {
	c, err := s.store.GetCompany(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrCompanyNotFound, "company %s", id)
		}
		return nil, eris.Wrapf(err, "pipeline: load company %s", id)
	}
	return c, nil
}

func invalid(msg string) error {
	return eris.Wrap(ErrInvalidRequest, msg)
}
