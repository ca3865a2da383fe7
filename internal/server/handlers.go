package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/pipeline"
	"github.com/exitschool/offmarket/pkg/clay"
)

// userHeader carries the caller id set by the platform auth layer in front
// of the service.
const userHeader = "X-User-ID"

type enrichRequest struct {
	CompanyID string   `json:"companyId" validate:"required"`
	UserID    string   `json:"userId"`
	Providers []string `json:"providers" validate:"omitempty,dive,required"`
}

type enrichResponse struct {
	Success        bool                    `json:"success"`
	CompanyID      string                  `json:"companyId"`
	EnrichmentData *model.EnrichmentResult `json:"enrichmentData"`
	Message        string                  `json:"message"`
}

func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = r.Header.Get(userHeader)
	}

	company, err := s.svc.Enrich(r.Context(), pipeline.EnrichRequest{
		CompanyID: req.CompanyID,
		UserID:    userID,
		Providers: req.Providers,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, enrichResponse{
		Success:        true,
		CompanyID:      company.ID,
		EnrichmentData: company.EnrichmentData,
		Message:        "Company enriched successfully",
	})
}

type reportRequest struct {
	CompanyID string `json:"companyId" validate:"required"`
	UserID    string `json:"userId" validate:"required"`
	Tier      string `json:"tier" validate:"required"`
}

type reportResponse struct {
	Success     bool       `json:"success"`
	ReportID    string     `json:"reportId"`
	CompanyName string     `json:"companyName"`
	Tier        model.Tier `json:"tier"`
	Message     string     `json:"message"`
}

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if !s.decode(w, r, &req) {
		return
	}
	rep, company, err := s.svc.GenerateReport(r.Context(), pipeline.ReportRequest{
		CompanyID: req.CompanyID,
		UserID:    req.UserID,
		Tier:      req.Tier,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		Success:     true,
		ReportID:    rep.ID,
		CompanyName: company.Name,
		Tier:        rep.Tier,
		Message:     rep.Tier.Label() + " report generated successfully",
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": rep})
}

func (s *Server) handleGetReportHTML(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, rep.ContentHTML)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.svc.ListReports(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "reports": reports})
}

func (s *Server) handleClayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !clay.Verify(s.opts.ClaySecret, body, r.Header.Get(clay.SignatureHeader)) {
		zap.L().Warn("http: clay callback signature rejected", zap.String("remote_ip", clientIP(r)))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	cb, err := clay.ParseCallback(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback payload")
		return
	}

	company, written, err := s.svc.ApplyLateEnrichment(r.Context(), pipeline.LateEnrichment{
		CompanyID: cb.CompanyID,
		Vendor:    "clay",
		RequestID: cb.RequestID,
		Fields:    cb.Fields(),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if written == nil {
		written = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"companyId": company.ID,
		"fields":    written,
	})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.svc.ListSources(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sources": sources})
}

type sourceUpdate struct {
	SourceName string  `json:"sourceName" validate:"required"`
	Priority   *string `json:"priority" validate:"omitempty,oneof=FIRST SECOND THIRD DO_NOT_USE first second third do_not_use"`
	IsEnabled  *bool   `json:"isEnabled"`
}

type updateSourcesRequest struct {
	Sources []sourceUpdate `json:"sources" validate:"required,min=1,dive"`
}

func (s *Server) handleUpdateSources(w http.ResponseWriter, r *http.Request) {
	var req updateSourcesRequest
	if !s.decode(w, r, &req) {
		return
	}
	updates := make([]pipeline.SourceUpdate, 0, len(req.Sources))
	for _, u := range req.Sources {
		su := pipeline.SourceUpdate{SourceName: u.SourceName, IsEnabled: u.IsEnabled}
		if u.Priority != nil {
			p := model.Priority(strings.ToUpper(*u.Priority))
			su.Priority = &p
		}
		updates = append(updates, su)
	}

	sources, err := s.svc.UpdateSources(r.Context(), r.Header.Get(userHeader), updates)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sources": sources})
}

func (s *Server) handleGetTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"templates": s.svc.ReportTemplates(r.Context()),
	})
}

type saveTemplatesRequest struct {
	Templates map[model.Tier]model.StoredTemplate `json:"templates" validate:"required,min=1"`
}

func (s *Server) handleSaveTemplates(w http.ResponseWriter, r *http.Request) {
	var req saveTemplatesRequest
	if !s.decode(w, r, &req) {
		return
	}
	saved, err := s.svc.SaveReportTemplates(r.Context(), r.Header.Get(userHeader), req.Templates)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "settings": saved})
}

type rotateCredentialRequest struct {
	Secret string `json:"secret" validate:"required"`
}

func (s *Server) handleRotateCredential(w http.ResponseWriter, r *http.Request) {
	var req rotateCredentialRequest
	if !s.decode(w, r, &req) {
		return
	}
	service := chi.URLParam(r, "service")
	if err := s.svc.RotateCredential(r.Context(), r.Header.Get(userHeader), service, req.Secret); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "service": strings.ToLower(service)})
}
