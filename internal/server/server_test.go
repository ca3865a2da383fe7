package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/pipeline"
	"github.com/exitschool/offmarket/internal/report"
	"github.com/exitschool/offmarket/pkg/clay"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) Enrich(ctx context.Context, req pipeline.EnrichRequest) (*model.Company, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *mockService) ApplyLateEnrichment(ctx context.Context, in pipeline.LateEnrichment) (*model.Company, []string, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Company), args.Get(1).([]string), args.Error(2)
}

func (m *mockService) GenerateReport(ctx context.Context, req pipeline.ReportRequest) (*model.Report, *model.Company, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*model.Report), args.Get(1).(*model.Company), args.Error(2)
}

func (m *mockService) GetReport(ctx context.Context, id string) (*model.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *mockService) ListReports(ctx context.Context, companyID string) ([]model.Report, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Report), args.Error(1)
}

func (m *mockService) ListSources(ctx context.Context) ([]model.EnrichmentSource, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EnrichmentSource), args.Error(1)
}

func (m *mockService) UpdateSources(ctx context.Context, userID string, updates []pipeline.SourceUpdate) ([]model.EnrichmentSource, error) {
	args := m.Called(ctx, userID, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.EnrichmentSource), args.Error(1)
}

func (m *mockService) ReportTemplates(ctx context.Context) map[model.Tier]model.PromptTemplate {
	return m.Called(ctx).Get(0).(map[model.Tier]model.PromptTemplate)
}

func (m *mockService) SaveReportTemplates(ctx context.Context, userID string, templates map[model.Tier]model.StoredTemplate) (*model.ReportSettings, error) {
	args := m.Called(ctx, userID, templates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ReportSettings), args.Error(1)
}

func (m *mockService) RotateCredential(ctx context.Context, userID, service, secret string) error {
	return m.Called(ctx, userID, service, secret).Error(0)
}

func newTestServer(svc Service, opts Options) *httptest.Server {
	return httptest.NewServer(New(svc, opts).Handler())
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&mockService{}, Options{})
	defer srv.Close()

	resp, body := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestEnrich(t *testing.T) {
	svc := &mockService{}
	result := model.NewEnrichmentResult()
	result.Values[model.FieldOwnerName] = "Dana Ruiz"
	result.Sources[model.FieldOwnerName] = "hunter"
	result.Confidence = 0.85
	svc.On("Enrich", mock.Anything, pipeline.EnrichRequest{CompanyID: "c1", UserID: "u1", Providers: []string{"apollo"}}).
		Return(&model.Company{ID: "c1", IsEnriched: true, EnrichmentData: result}, nil)

	srv := newTestServer(svc, Options{})
	defer srv.Close()

	resp, body := do(t, srv, http.MethodPost, "/v1/enrich", `{"companyId":"c1","providers":["apollo"]}`, map[string]string{"X-User-ID": "u1"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "c1", body["companyId"])
	data := body["enrichmentData"].(map[string]any)
	assert.Equal(t, "hunter", data["sources"].(map[string]any)["owner_name"])
	svc.AssertExpectations(t)
}

func TestEnrich_Errors(t *testing.T) {
	svc := &mockService{}
	svc.On("Enrich", mock.Anything, pipeline.EnrichRequest{CompanyID: "ghost"}).
		Return(nil, eris.Wrapf(pipeline.ErrCompanyNotFound, "company %s", "ghost"))
	svc.On("Enrich", mock.Anything, pipeline.EnrichRequest{CompanyID: "boom"}).
		Return(nil, eris.New("connection reset"))

	srv := newTestServer(svc, Options{})
	defer srv.Close()

	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"malformed body", `{`, http.StatusBadRequest, "invalid request body"},
		{"missing company id", `{}`, http.StatusBadRequest, "companyId is required"},
		{"unknown company", `{"companyId":"ghost"}`, http.StatusNotFound, "Company not found"},
		{"internal failure", `{"companyId":"boom"}`, http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodPost, "/v1/enrich", tt.body, nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.errMsg, body["error"])
		})
	}
}

func TestGenerateReport(t *testing.T) {
	svc := &mockService{}
	svc.On("GenerateReport", mock.Anything, pipeline.ReportRequest{CompanyID: "c1", UserID: "u1", Tier: "BI"}).
		Return(&model.Report{ID: "r1", CompanyID: "c1", Tier: model.TierBI}, &model.Company{ID: "c1", Name: "Pike Place Diner"}, nil)

	srv := newTestServer(svc, Options{})
	defer srv.Close()

	resp, body := do(t, srv, http.MethodPost, "/v1/reports", `{"companyId":"c1","userId":"u1","tier":"BI"}`, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "r1", body["reportId"])
	assert.Equal(t, "Pike Place Diner", body["companyName"])
	assert.Equal(t, "BI", body["tier"])
	assert.Equal(t, "Business Intelligence report generated successfully", body["message"])
}

func TestGenerateReport_ErrorMapping(t *testing.T) {
	svc := &mockService{}
	svc.On("GenerateReport", mock.Anything, pipeline.ReportRequest{CompanyID: "c2", UserID: "u1", Tier: "BI"}).
		Return(nil, nil, eris.Wrap(pipeline.ErrAccessDenied, "user u1"))
	svc.On("GenerateReport", mock.Anything, pipeline.ReportRequest{CompanyID: "c1", UserID: "u1", Tier: "GOLD"}).
		Return(nil, nil, eris.Wrap(pipeline.ErrInvalidRequest, `tier "GOLD" must be ENHANCED or BI`))
	svc.On("GenerateReport", mock.Anything, pipeline.ReportRequest{CompanyID: "c3", UserID: "u1", Tier: "BI"}).
		Return(nil, nil, &report.SchemaError{Tier: model.TierBI, Violations: []string{"market_analysis must be at least 100 characters"}})

	srv := newTestServer(svc, Options{})
	defer srv.Close()

	resp, body := do(t, srv, http.MethodPost, "/v1/reports", `{"companyId":"c2","userId":"u1","tier":"BI"}`, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "User does not have access to this company", body["error"])

	resp, body = do(t, srv, http.MethodPost, "/v1/reports", `{"companyId":"c1","userId":"u1","tier":"GOLD"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "must be ENHANCED or BI")

	resp, body = do(t, srv, http.MethodPost, "/v1/reports", `{"companyId":"c3","userId":"u1","tier":"BI"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body["error"], "market_analysis")

	resp, body = do(t, srv, http.MethodPost, "/v1/reports", `{"companyId":"c1","tier":"BI"}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "userId is required", body["error"])
}

func TestReportReads(t *testing.T) {
	svc := &mockService{}
	rep := &model.Report{ID: "r1", CompanyID: "c1", Tier: model.TierEnhanced, ContentHTML: "<html><body>Pike</body></html>", GeneratedAt: time.Now()}
	svc.On("GetReport", mock.Anything, "r1").Return(rep, nil)
	svc.On("ListReports", mock.Anything, "c1").Return([]model.Report{*rep}, nil)
	svc.On("ListReports", mock.Anything, "c9").Return(nil, nil)

	srv := newTestServer(svc, Options{})
	defer srv.Close()

	resp, body := do(t, srv, http.MethodGet, "/v1/reports/r1", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "r1", body["report"].(map[string]any)["id"])

	resp, _ = do(t, srv, http.MethodGet, "/v1/reports/r1/html", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	resp, body = do(t, srv, http.MethodGet, "/v1/companies/c1/reports", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["reports"], 1)

	_, body = do(t, srv, http.MethodGet, "/v1/companies/c9/reports", "", nil)
	assert.Equal(t, []any{}, body["reports"])
}

func TestClayWebhook(t *testing.T) {
	svc := &mockService{}
	svc.On("ApplyLateEnrichment", mock.Anything, mock.MatchedBy(func(in pipeline.LateEnrichment) bool {
		return in.CompanyID == "c1" && in.Vendor == "clay" && in.RequestID == "req-1" &&
			in.Fields[model.FieldOwnerName] == "Dana Ruiz"
	})).Return(&model.Company{ID: "c1"}, []string{model.FieldOwnerName}, nil).Once()

	srv := newTestServer(svc, Options{ClaySecret: "whsec"})
	defer srv.Close()

	payload := `{"request_id":"req-1","company_id":"c1","owner_name":"Dana Ruiz"}`

	resp, body := do(t, srv, http.MethodPost, "/v1/webhooks/clay", payload, map[string]string{
		clay.SignatureHeader: "sha256=" + clay.Sign("whsec", []byte(payload)),
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{model.FieldOwnerName}, body["fields"])

	resp, body = do(t, srv, http.MethodPost, "/v1/webhooks/clay", payload, map[string]string{
		clay.SignatureHeader: clay.Sign("wrong", []byte(payload)),
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid signature", body["error"])

	bad := `{"owner_name":"x"}`
	resp, _ = do(t, srv, http.MethodPost, "/v1/webhooks/clay", bad, map[string]string{
		clay.SignatureHeader: clay.Sign("whsec", []byte(bad)),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestSettings(t *testing.T) {
	svc := &mockService{}
	first := model.PriorityFirst
	enabled := true
	svc.On("UpdateSources", mock.Anything, "admin", []pipeline.SourceUpdate{
		{SourceName: "clay", Priority: &first, IsEnabled: &enabled},
	}).Return([]model.EnrichmentSource{{SourceName: "clay", Priority: model.PriorityFirst, IsEnabled: true}}, nil)
	svc.On("ListSources", mock.Anything).Return([]model.EnrichmentSource{{SourceName: "hunter", Priority: model.PriorityFirst}}, nil)
	svc.On("ReportTemplates", mock.Anything).Return(map[model.Tier]model.PromptTemplate{
		model.TierEnhanced: {Tier: model.TierEnhanced, SystemPrompt: "sys"},
	})
	svc.On("SaveReportTemplates", mock.Anything, "admin", mock.Anything).Return(&model.ReportSettings{ID: "s1"}, nil)
	svc.On("RotateCredential", mock.Anything, "admin", "hunter", "hk_new").Return(nil)

	srv := newTestServer(svc, Options{})
	defer srv.Close()
	admin := map[string]string{"X-User-ID": "admin"}

	resp, body := do(t, srv, http.MethodGet, "/v1/settings/enrichment-sources", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["sources"], 1)

	resp, _ = do(t, srv, http.MethodPut, "/v1/settings/enrichment-sources",
		`{"sources":[{"sourceName":"clay","priority":"first","isEnabled":true}]}`, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPut, "/v1/settings/enrichment-sources",
		`{"sources":[{"sourceName":"clay","priority":"FOURTH"}]}`, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "priority is invalid")

	resp, body = do(t, srv, http.MethodGet, "/v1/settings/report-templates", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["templates"], "ENHANCED")

	resp, body = do(t, srv, http.MethodPut, "/v1/settings/report-templates",
		`{"templates":{"BI":{"system_prompt":"Be concise."}}}`, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "s1", body["settings"].(map[string]any)["id"])

	resp, body = do(t, srv, http.MethodPut, "/v1/settings/credentials/hunter", `{"secret":"hk_new"}`, admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hunter", body["service"])

	resp, _ = do(t, srv, http.MethodPut, "/v1/settings/credentials/hunter", `{}`, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestRateLimit(t *testing.T) {
	svc := &mockService{}
	svc.On("ListSources", mock.Anything).Return([]model.EnrichmentSource{}, nil)

	srv := newTestServer(svc, Options{RequestsPerSecond: 0.001, Burst: 2})
	defer srv.Close()

	for i := 0; i < 2; i++ {
		resp, _ := do(t, srv, http.MethodGet, "/v1/settings/enrichment-sources", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := do(t, srv, http.MethodGet, "/v1/settings/enrichment-sources", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate limit exceeded", body["error"])

	resp, _ = do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
