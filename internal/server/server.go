// Package server exposes the enrichment and report operations over HTTP.
package server

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/pipeline"
)

// maxBodyBytes bounds request bodies, webhook payloads included.
const maxBodyBytes = 1 << 20

// Service is the pipeline surface the HTTP handlers call.
type Service interface {
	Enrich(ctx context.Context, req pipeline.EnrichRequest) (*model.Company, error)
	ApplyLateEnrichment(ctx context.Context, in pipeline.LateEnrichment) (*model.Company, []string, error)
	GenerateReport(ctx context.Context, req pipeline.ReportRequest) (*model.Report, *model.Company, error)
	GetReport(ctx context.Context, id string) (*model.Report, error)
	ListReports(ctx context.Context, companyID string) ([]model.Report, error)
	ListSources(ctx context.Context) ([]model.EnrichmentSource, error)
	UpdateSources(ctx context.Context, userID string, updates []pipeline.SourceUpdate) ([]model.EnrichmentSource, error)
	ReportTemplates(ctx context.Context) map[model.Tier]model.PromptTemplate
	SaveReportTemplates(ctx context.Context, userID string, templates map[model.Tier]model.StoredTemplate) (*model.ReportSettings, error)
	RotateCredential(ctx context.Context, userID, service, secret string) error
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	// ClaySecret verifies Clay callback signatures. Empty rejects all callbacks.
	ClaySecret string
	// RequestsPerSecond and Burst size the per-IP token bucket. Zero disables it.
	RequestsPerSecond float64
	Burst             int
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	svc      Service
	opts     Options
	validate *validator.Validate
	limiter  *ipRateLimiter
}

// New creates a Server.
func New(svc Service, opts Options) *Server {
	s := &Server{
		svc:      svc,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	s.validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if opts.RequestsPerSecond > 0 && opts.Burst > 0 {
		s.limiter = newIPRateLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware)
		}
		r.Use(middleware.Timeout(3 * time.Minute))

		r.Post("/enrich", s.handleEnrich)
		r.Post("/reports", s.handleGenerateReport)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Get("/reports/{id}/html", s.handleGetReportHTML)
		r.Get("/companies/{id}/reports", s.handleListReports)
		r.Post("/webhooks/clay", s.handleClayWebhook)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/enrichment-sources", s.handleListSources)
			r.Put("/enrichment-sources", s.handleUpdateSources)
			r.Get("/report-templates", s.handleGetTemplates)
			r.Put("/report-templates", s.handleSaveTemplates)
			r.Put("/credentials/{service}", s.handleRotateCredential)
		})
	})
	return r
}
