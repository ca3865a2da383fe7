package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/exitschool/offmarket/internal/audit"
	"github.com/exitschool/offmarket/internal/enrichment"
	"github.com/exitschool/offmarket/internal/enrichment/vendor"
	"github.com/exitschool/offmarket/internal/model"
	"github.com/exitschool/offmarket/internal/report"
	"github.com/exitschool/offmarket/internal/store"
)

// memStore is an in-memory store.Store for pipeline tests.
type memStore struct {
	mu        sync.Mutex
	searches  map[string]model.Search
	companies map[string]model.Company
	records   []model.EnrichmentRecord
	sources   []model.EnrichmentSource
	settings  []model.ReportSettings
	reports   []model.Report
	audits    []model.AuditEntry
	emails    map[string]string

	sourcesErr error
	saveErr    error
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		searches:  make(map[string]model.Search),
		companies: make(map[string]model.Company),
		emails:    make(map[string]string),
		sources:   append([]model.EnrichmentSource(nil), store.DefaultSources...),
	}
}

func (m *memStore) CreateSearch(_ context.Context, s model.Search) (*model.Search, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[s.ID] = s
	return &s, nil
}

func (m *memStore) GetSearch(_ context.Context, id string) (*model.Search, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.searches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) CreateCompany(_ context.Context, c model.Company) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
	return &c, nil
}

func (m *memStore) GetCompany(_ context.Context, id string) (*model.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

// SaveEnrichment round-trips the result through JSON the way the SQL stores do.
func (m *memStore) SaveEnrichment(_ context.Context, companyID string, result model.EnrichmentResult) (*model.EnrichmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	c, ok := m.companies[companyID]
	if !ok {
		return nil, store.ErrNotFound
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var stored model.EnrichmentResult
	if err := json.Unmarshal(b, &stored); err != nil {
		return nil, err
	}
	c.IsEnriched = true
	c.EnrichmentData = &stored
	m.companies[companyID] = c
	rec := model.EnrichmentRecord{ID: companyID + "-enrichment", CompanyID: companyID, Data: stored, Confidence: stored.Confidence}
	m.records = append(m.records, rec)
	return &rec, nil
}

func (m *memStore) LatestEnrichment(_ context.Context, companyID string) (*model.EnrichmentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].CompanyID == companyID {
			r := m.records[i]
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListEnrichmentSources(_ context.Context) ([]model.EnrichmentSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sourcesErr != nil {
		return nil, m.sourcesErr
	}
	out := append([]model.EnrichmentSource(nil), m.sources...)
	sort.Slice(out, func(i, j int) bool { return out[i].SourceName < out[j].SourceName })
	return out, nil
}

func (m *memStore) SaveEnrichmentSources(_ context.Context, sources []model.EnrichmentSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, src := range sources {
		replaced := false
		for i := range m.sources {
			if m.sources[i].SourceName == src.SourceName {
				m.sources[i] = src
				replaced = true
			}
		}
		if !replaced {
			m.sources = append(m.sources, src)
		}
	}
	return nil
}

func (m *memStore) LatestReportSettings(_ context.Context) (*model.ReportSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.settings) == 0 {
		return nil, nil
	}
	s := m.settings[len(m.settings)-1]
	return &s, nil
}

func (m *memStore) SaveReportSettings(_ context.Context, s model.ReportSettings) (*model.ReportSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = "settings-" + string(rune('a'+len(m.settings)))
	m.settings = append(m.settings, s)
	return &s, nil
}

func (m *memStore) InsertReport(_ context.Context, r model.Report) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return &r, nil
}

func (m *memStore) GetReport(_ context.Context, id string) (*model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListReports(_ context.Context, companyID string) ([]model.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Report
	for i := len(m.reports) - 1; i >= 0; i-- {
		if m.reports[i].CompanyID == companyID {
			out = append(out, m.reports[i])
		}
	}
	return out, nil
}

func (m *memStore) InsertAuditLog(_ context.Context, e model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, e)
	return nil
}

func (m *memStore) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.audits))
	for _, a := range m.audits {
		out = append(out, a.Action)
	}
	return out
}

func (m *memStore) GetCredential(_ context.Context, _ string) (*model.Credential, error) {
	return nil, store.ErrNotFound
}

func (m *memStore) PutCredential(_ context.Context, _ model.Credential) error { return nil }

func (m *memStore) GetUserEmail(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.emails[userID]
	if !ok {
		return "", store.ErrNotFound
	}
	return e, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

type stubAdapter struct {
	name  string
	res   vendor.Result
	err   error
	calls atomic.Int32
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Fetch(context.Context, model.Company) (vendor.Result, error) {
	a.calls.Add(1)
	return a.res, a.err
}

type stubCompleter struct {
	text  string
	err   error
	calls atomic.Int32
}

func (c *stubCompleter) Model() string { return "stub-model" }

func (c *stubCompleter) Complete(context.Context, report.Completion) (string, error) {
	c.calls.Add(1)
	return c.text, c.err
}

type stubArchive struct {
	keys []string
	err  error
}

func (a *stubArchive) Put(_ context.Context, r model.Report) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	key := "reports/" + r.CompanyID + "/" + r.ID + ".html"
	a.keys = append(a.keys, key)
	return key, nil
}

type stubNotifier struct {
	sent []string
}

func (n *stubNotifier) ReportReady(_ context.Context, userID string, r model.Report, _ string) {
	n.sent = append(n.sent, userID+":"+r.ID)
}

type stubSecrets struct {
	put map[string]string
	err error
}

func (s *stubSecrets) Put(_ context.Context, service, secret string) error {
	if s.err != nil {
		return s.err
	}
	if s.put == nil {
		s.put = make(map[string]string)
	}
	s.put[service] = secret
	return nil
}

type fixture struct {
	store    *memStore
	hunter   *stubAdapter
	apollo   *stubAdapter
	llm      *stubCompleter
	archive  *stubArchive
	notifier *stubNotifier
	secrets  *stubSecrets
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		store: newMemStore(),
		hunter: &stubAdapter{name: "hunter", res: vendor.Result{Fields: map[string]any{
			model.FieldOwnerName:  "Dana Ruiz",
			model.FieldOwnerEmail: "dana@pikediner.com",
		}}},
		apollo: &stubAdapter{name: "apollo", res: vendor.Result{Fields: map[string]any{
			model.FieldOwnerEmail:    "info@pikediner.com",
			model.FieldEmployeeCount: float64(18),
			model.FieldRevenue:       float64(1_200_000),
		}}},
		llm:      &stubCompleter{err: errors.New("llm unavailable")},
		archive:  &stubArchive{},
		notifier: &stubNotifier{},
		secrets:  &stubSecrets{},
	}

	f.store.searches["s1"] = model.Search{ID: "s1", UserID: "u1", Industry: "restaurants", City: "Seattle", State: "WA"}
	f.store.companies["c1"] = model.Company{ID: "c1", SearchID: "s1", Name: "Pike Place Diner", Website: "pikediner.com"}
	f.store.emails["u1"] = "buyer@example.com"

	registry := vendor.NewRegistry(f.hunter, f.apollo)
	f.svc = New(Deps{
		Store:      f.store,
		Aggregator: enrichment.NewAggregator(registry, enrichment.Options{}),
		Generator:  report.NewGenerator(f.llm, report.DefaultOptions()),
		Audit:      audit.New(f.store),
		Archive:    f.archive,
		Notify:     f.notifier,
		Secrets:    f.secrets,
		AutoEnrich: true,
	})
	return f
}

func sectionJSON(tier model.Tier) string {
	body := strings.Repeat("The diner has a loyal lunch crowd and steady catering demand. ", 3)
	obj := make(map[string]string)
	for _, s := range tier.RequiredSections() {
		obj[string(s)] = body
	}
	b, _ := json.Marshal(obj)
	return string(b)
}
