package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/exitschool/offmarket/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines persistence for companies, enrichment, reports and settings.
type Store interface {
	// Searches and companies
	CreateSearch(ctx context.Context, s model.Search) (*model.Search, error)
	GetSearch(ctx context.Context, id string) (*model.Search, error)
	CreateCompany(ctx context.Context, c model.Company) (*model.Company, error)
	GetCompany(ctx context.Context, id string) (*model.Company, error)

	// Enrichment. SaveEnrichment updates the company and appends an
	// enrichment record in a single transaction.
	SaveEnrichment(ctx context.Context, companyID string, result model.EnrichmentResult) (*model.EnrichmentRecord, error)
	LatestEnrichment(ctx context.Context, companyID string) (*model.EnrichmentRecord, error)

	// Enrichment source configuration
	ListEnrichmentSources(ctx context.Context) ([]model.EnrichmentSource, error)
	SaveEnrichmentSources(ctx context.Context, sources []model.EnrichmentSource) error

	// Report templates (latest row wins)
	LatestReportSettings(ctx context.Context) (*model.ReportSettings, error)
	SaveReportSettings(ctx context.Context, settings model.ReportSettings) (*model.ReportSettings, error)

	// Reports are insert-only.
	InsertReport(ctx context.Context, r model.Report) (*model.Report, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, companyID string) ([]model.Report, error)

	// Audit sink
	InsertAuditLog(ctx context.Context, entry model.AuditEntry) error

	// Credentials and users
	GetCredential(ctx context.Context, service string) (*model.Credential, error)
	PutCredential(ctx context.Context, cred model.Credential) error
	GetUserEmail(ctx context.Context, userID string) (string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// DefaultSources is the enrichment_sources seed applied by Migrate.
var DefaultSources = []model.EnrichmentSource{
	{SourceName: "hunter", DisplayName: "Hunter.io", Priority: model.PriorityFirst, IsEnabled: true},
	{SourceName: "apollo", DisplayName: "Apollo.io", Priority: model.PrioritySecond, IsEnabled: true},
	{SourceName: "zoominfo", DisplayName: "ZoomInfo", Priority: model.PriorityThird, IsEnabled: true},
	{SourceName: "clay", DisplayName: "Clay", Priority: model.PriorityDoNotUse, IsEnabled: false},
}
