package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/exitschool/offmarket/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and tests.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection keeps ":memory:" databases consistent across calls.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id    TEXT PRIMARY KEY,
	email TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS searches (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	query      TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	search_id       TEXT NOT NULL REFERENCES searches(id),
	name            TEXT NOT NULL,
	website         TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	address         TEXT NOT NULL DEFAULT '',
	rating          REAL,
	review_count    INTEGER,
	place_id        TEXT NOT NULL DEFAULT '',
	is_enriched     INTEGER NOT NULL DEFAULT 0,
	enrichment_data TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS company_enrichments (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	data       TEXT NOT NULL,
	confidence REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_company_enrichments_company ON company_enrichments(company_id);

CREATE TABLE IF NOT EXISTS enrichment_sources (
	source_name  TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	priority     TEXT NOT NULL DEFAULT 'DO_NOT_USE',
	is_enabled   INTEGER NOT NULL DEFAULT 1
);

INSERT OR IGNORE INTO enrichment_sources (source_name, display_name, priority, is_enabled) VALUES
	('hunter', 'Hunter.io', 'FIRST', 1),
	('apollo', 'Apollo.io', 'SECOND', 1),
	('zoominfo', 'ZoomInfo', 'THIRD', 1),
	('clay', 'Clay', 'DO_NOT_USE', 0);

CREATE TABLE IF NOT EXISTS report_settings (
	id         TEXT PRIMARY KEY,
	templates  TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY,
	company_id   TEXT NOT NULL REFERENCES companies(id),
	user_id      TEXT NOT NULL DEFAULT '',
	tier         TEXT NOT NULL,
	content_json TEXT NOT NULL,
	content_html TEXT NOT NULL,
	archive_key  TEXT NOT NULL DEFAULT '',
	generated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reports_company ON reports(company_id);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL,
	entity     TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	metadata   TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS credentials (
	service          TEXT PRIMARY KEY,
	encrypted_secret TEXT NOT NULL,
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// AddProfile registers a user email. Profiles are owned by the auth platform;
// this exists for local development and tests.
func (s *SQLiteStore) AddProfile(ctx context.Context, userID, email string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email) VALUES (?, ?) ON CONFLICT (id) DO UPDATE SET email = excluded.email`,
		userID, email)
	return eris.Wrap(err, "sqlite: add profile")
}

func (s *SQLiteStore) CreateSearch(ctx context.Context, search model.Search) (*model.Search, error) {
	if search.ID == "" {
		search.ID = uuid.New().String()
	}
	if search.CreatedAt.IsZero() {
		search.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO searches (id, user_id, query, industry, city, state, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		search.ID, search.UserID, search.Query, search.Industry, search.City, search.State, search.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert search")
	}
	return &search, nil
}

func (s *SQLiteStore) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	var out model.Search
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, query, industry, city, state, created_at FROM searches WHERE id = ?`, id,
	).Scan(&out.ID, &out.UserID, &out.Query, &out.Industry, &out.City, &out.State, &out.CreatedAt)
	if err != nil {
		return nil, sqliteNotFound(err, "sqlite: get search %s", id)
	}
	return &out, nil
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, search_id, name, website, phone, address, rating, review_count, place_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SearchID, c.Name, c.Website, c.Phone, c.Address, c.Rating, c.ReviewCount, c.PlaceID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert company")
	}
	return &c, nil
}

func (s *SQLiteStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	var enrichment sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, search_id, name, website, phone, address, rating, review_count, place_id,
		        is_enriched, enrichment_data, created_at, updated_at
		 FROM companies WHERE id = ?`, id,
	).Scan(&c.ID, &c.SearchID, &c.Name, &c.Website, &c.Phone, &c.Address, &c.Rating, &c.ReviewCount,
		&c.PlaceID, &c.IsEnriched, &enrichment, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, sqliteNotFound(err, "sqlite: get company %s", id)
	}
	if enrichment.Valid && enrichment.String != "" {
		c.EnrichmentData = &model.EnrichmentResult{}
		if err := json.Unmarshal([]byte(enrichment.String), c.EnrichmentData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal enrichment data")
		}
	}
	return &c, nil
}

func (s *SQLiteStore) SaveEnrichment(ctx context.Context, companyID string, result model.EnrichmentResult) (*model.EnrichmentRecord, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal enrichment")
	}
	rec := &model.EnrichmentRecord{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		Data:       result,
		Confidence: result.Confidence,
		CreatedAt:  time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE companies SET is_enriched = 1, enrichment_data = ?, updated_at = ? WHERE id = ?`,
		string(data), rec.CreatedAt, companyID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update company %s", companyID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: company %s", companyID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO company_enrichments (id, company_id, data, confidence, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, companyID, string(data), rec.Confidence, rec.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert enrichment")
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit enrichment")
	}
	return rec, nil
}

func (s *SQLiteStore) LatestEnrichment(ctx context.Context, companyID string) (*model.EnrichmentRecord, error) {
	var rec model.EnrichmentRecord
	var data string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, company_id, data, confidence, created_at FROM company_enrichments
		 WHERE company_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, companyID,
	).Scan(&rec.ID, &rec.CompanyID, &data, &rec.Confidence, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest enrichment")
	}
	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal enrichment")
	}
	return &rec, nil
}

func (s *SQLiteStore) ListEnrichmentSources(ctx context.Context) ([]model.EnrichmentSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_name, display_name, priority, is_enabled FROM enrichment_sources ORDER BY source_name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list enrichment sources")
	}
	defer rows.Close()

	var out []model.EnrichmentSource
	for rows.Next() {
		var src model.EnrichmentSource
		if err := rows.Scan(&src.SourceName, &src.DisplayName, &src.Priority, &src.IsEnabled); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan enrichment source")
		}
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list enrichment sources iterate")
}

func (s *SQLiteStore) SaveEnrichmentSources(ctx context.Context, sources []model.EnrichmentSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, src := range sources {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO enrichment_sources (source_name, display_name, priority, is_enabled) VALUES (?, ?, ?, ?)
			 ON CONFLICT (source_name) DO UPDATE SET display_name = excluded.display_name,
			   priority = excluded.priority, is_enabled = excluded.is_enabled`,
			src.SourceName, src.DisplayName, string(src.Priority), src.IsEnabled,
		); err != nil {
			return eris.Wrapf(err, "sqlite: save enrichment source %s", src.SourceName)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit enrichment sources")
}

func (s *SQLiteStore) LatestReportSettings(ctx context.Context) (*model.ReportSettings, error) {
	var rs model.ReportSettings
	var templates string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, templates, created_at FROM report_settings ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&rs.ID, &templates, &rs.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: latest report settings")
	}
	if err := json.Unmarshal([]byte(templates), &rs.Templates); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report settings")
	}
	return &rs, nil
}

func (s *SQLiteStore) SaveReportSettings(ctx context.Context, settings model.ReportSettings) (*model.ReportSettings, error) {
	settings.ID = uuid.New().String()
	settings.CreatedAt = time.Now().UTC()

	templates, err := json.Marshal(settings.Templates)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal report settings")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO report_settings (id, templates, created_at) VALUES (?, ?, ?)`,
		settings.ID, string(templates), settings.CreatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert report settings")
	}
	return &settings, nil
}

func (s *SQLiteStore) InsertReport(ctx context.Context, r model.Report) (*model.Report, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	content, err := json.Marshal(r.ContentJSON)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal report content")
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, company_id, user_id, tier, content_json, content_html, archive_key, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CompanyID, r.UserID, string(r.Tier), string(content), r.ContentHTML, r.ArchiveKey, r.GeneratedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert report")
	}
	return &r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteReport(row rowScanner) (*model.Report, error) {
	var r model.Report
	var content string
	if err := row.Scan(&r.ID, &r.CompanyID, &r.UserID, &r.Tier, &content, &r.ContentHTML, &r.ArchiveKey, &r.GeneratedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &r.ContentJSON); err != nil {
		return nil, eris.Wrap(err, "unmarshal report content")
	}
	return &r, nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, err := scanSQLiteReport(s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if err != nil {
		return nil, sqliteNotFound(err, "sqlite: get report %s", id)
	}
	return r, nil
}

func (s *SQLiteStore) ListReports(ctx context.Context, companyID string) ([]model.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE company_id = ? ORDER BY generated_at DESC, rowid DESC`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		r, err := scanSQLiteReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reports iterate")
}

func (s *SQLiteStore) InsertAuditLog(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal audit metadata")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, entity, entity_id, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.UserID, entry.Action, entry.Entity, entry.EntityID, string(meta), entry.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert audit log")
}

// CountAuditLogs returns the number of audit rows for an action.
func (s *SQLiteStore) CountAuditLogs(ctx context.Context, action string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs WHERE action = ?`, action).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count audit logs")
}

func (s *SQLiteStore) GetCredential(ctx context.Context, service string) (*model.Credential, error) {
	var c model.Credential
	err := s.db.QueryRowContext(ctx,
		`SELECT service, encrypted_secret, updated_at FROM credentials WHERE service = ?`, service,
	).Scan(&c.Service, &c.EncryptedSecret, &c.UpdatedAt)
	if err != nil {
		return nil, sqliteNotFound(err, "sqlite: get credential %s", service)
	}
	return &c, nil
}

func (s *SQLiteStore) PutCredential(ctx context.Context, cred model.Credential) error {
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (service, encrypted_secret, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (service) DO UPDATE SET encrypted_secret = excluded.encrypted_secret, updated_at = excluded.updated_at`,
		cred.Service, cred.EncryptedSecret, cred.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: put credential %s", cred.Service)
}

func (s *SQLiteStore) GetUserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, `SELECT email FROM profiles WHERE id = ?`, userID).Scan(&email)
	if err != nil {
		return "", sqliteNotFound(err, "sqlite: get user email %s", userID)
	}
	return email, nil
}

func sqliteNotFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	return eris.Wrapf(err, format, args...)
}
