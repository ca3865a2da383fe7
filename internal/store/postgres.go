package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/exitschool/offmarket/internal/db"
	"github.com/exitschool/offmarket/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS profiles (
	id    TEXT PRIMARY KEY,
	email TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS searches (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	query      TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	search_id       TEXT NOT NULL REFERENCES searches(id),
	name            TEXT NOT NULL,
	website         TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	address         TEXT NOT NULL DEFAULT '',
	rating          DOUBLE PRECISION,
	review_count    INTEGER,
	place_id        TEXT NOT NULL DEFAULT '',
	is_enriched     BOOLEAN NOT NULL DEFAULT false,
	enrichment_data JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_search_id ON companies(search_id);

CREATE TABLE IF NOT EXISTS company_enrichments (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id TEXT NOT NULL REFERENCES companies(id),
	data       JSONB NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_company_enrichments_company ON company_enrichments(company_id, created_at DESC);

CREATE TABLE IF NOT EXISTS enrichment_sources (
	source_name  TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	priority     TEXT NOT NULL DEFAULT 'DO_NOT_USE',
	is_enabled   BOOLEAN NOT NULL DEFAULT true
);

INSERT INTO enrichment_sources (source_name, display_name, priority, is_enabled) VALUES
	('hunter', 'Hunter.io', 'FIRST', true),
	('apollo', 'Apollo.io', 'SECOND', true),
	('zoominfo', 'ZoomInfo', 'THIRD', true),
	('clay', 'Clay', 'DO_NOT_USE', false)
ON CONFLICT (source_name) DO NOTHING;

CREATE TABLE IF NOT EXISTS report_settings (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	templates  JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS reports (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_id   TEXT NOT NULL REFERENCES companies(id),
	user_id      TEXT NOT NULL DEFAULT '',
	tier         TEXT NOT NULL,
	content_json JSONB NOT NULL,
	content_html TEXT NOT NULL,
	archive_key  TEXT NOT NULL DEFAULT '',
	generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_reports_company ON reports(company_id, generated_at DESC);

CREATE TABLE IF NOT EXISTS audit_logs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL DEFAULT '',
	action     TEXT NOT NULL,
	entity     TEXT NOT NULL,
	entity_id  TEXT NOT NULL,
	metadata   JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credentials (
	service          TEXT PRIMARY KEY,
	encrypted_secret TEXT NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSearch(ctx context.Context, search model.Search) (*model.Search, error) {
	if search.ID == "" {
		search.ID = uuid.New().String()
	}
	if search.CreatedAt.IsZero() {
		search.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO searches (id, user_id, query, industry, city, state, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		search.ID, search.UserID, search.Query, search.Industry, search.City, search.State, search.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert search")
	}
	return &search, nil
}

func (s *PostgresStore) GetSearch(ctx context.Context, id string) (*model.Search, error) {
	var out model.Search
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, query, industry, city, state, created_at FROM searches WHERE id = $1`,
		id,
	).Scan(&out.ID, &out.UserID, &out.Query, &out.Industry, &out.City, &out.State, &out.CreatedAt)
	if err != nil {
		return nil, wrapNotFound(err, "postgres: get search %s", id)
	}
	return &out, nil
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c model.Company) (*model.Company, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (id, search_id, name, website, phone, address, rating, review_count, place_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.SearchID, c.Name, c.Website, c.Phone, c.Address, c.Rating, c.ReviewCount, c.PlaceID, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert company")
	}
	return &c, nil
}

func (s *PostgresStore) GetCompany(ctx context.Context, id string) (*model.Company, error) {
	var c model.Company
	var enrichment []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, search_id, name, website, phone, address, rating, review_count, place_id,
		        is_enriched, enrichment_data, created_at, updated_at
		 FROM companies WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.SearchID, &c.Name, &c.Website, &c.Phone, &c.Address, &c.Rating, &c.ReviewCount,
		&c.PlaceID, &c.IsEnriched, &enrichment, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err, "postgres: get company %s", id)
	}
	if len(enrichment) > 0 {
		c.EnrichmentData = &model.EnrichmentResult{}
		if err := json.Unmarshal(enrichment, c.EnrichmentData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal enrichment data")
		}
	}
	return &c, nil
}

func (s *PostgresStore) SaveEnrichment(ctx context.Context, companyID string, result model.EnrichmentResult) (*model.EnrichmentRecord, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal enrichment")
	}

	rec := &model.EnrichmentRecord{
		ID:         uuid.New().String(),
		CompanyID:  companyID,
		Data:       result,
		Confidence: result.Confidence,
		CreatedAt:  time.Now().UTC(),
	}

	err = db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE companies SET is_enriched = true, enrichment_data = $1, updated_at = $2 WHERE id = $3`,
			data, rec.CreatedAt, companyID,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: update company %s", companyID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "postgres: company %s", companyID)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO company_enrichments (id, company_id, data, confidence, created_at) VALUES ($1, $2, $3, $4, $5)`,
			rec.ID, companyID, data, rec.Confidence, rec.CreatedAt,
		)
		return eris.Wrap(err, "postgres: insert enrichment")
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) LatestEnrichment(ctx context.Context, companyID string) (*model.EnrichmentRecord, error) {
	var rec model.EnrichmentRecord
	var data []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, company_id, data, confidence, created_at FROM company_enrichments
		 WHERE company_id = $1 ORDER BY created_at DESC LIMIT 1`,
		companyID,
	).Scan(&rec.ID, &rec.CompanyID, &data, &rec.Confidence, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest enrichment")
	}
	if err := json.Unmarshal(data, &rec.Data); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal enrichment")
	}
	return &rec, nil
}

func (s *PostgresStore) ListEnrichmentSources(ctx context.Context) ([]model.EnrichmentSource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_name, display_name, priority, is_enabled FROM enrichment_sources ORDER BY source_name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list enrichment sources")
	}
	defer rows.Close()

	var out []model.EnrichmentSource
	for rows.Next() {
		var src model.EnrichmentSource
		if err := rows.Scan(&src.SourceName, &src.DisplayName, &src.Priority, &src.IsEnabled); err != nil {
			return nil, eris.Wrap(err, "postgres: scan enrichment source")
		}
		out = append(out, src)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list enrichment sources iterate")
}

func (s *PostgresStore) SaveEnrichmentSources(ctx context.Context, sources []model.EnrichmentSource) error {
	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, src := range sources {
			_, err := tx.Exec(ctx,
				`INSERT INTO enrichment_sources (source_name, display_name, priority, is_enabled) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (source_name) DO UPDATE SET display_name = $2, priority = $3, is_enabled = $4`,
				src.SourceName, src.DisplayName, string(src.Priority), src.IsEnabled,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: save enrichment source %s", src.SourceName)
			}
		}
		return nil
	})
}

func (s *PostgresStore) LatestReportSettings(ctx context.Context) (*model.ReportSettings, error) {
	var rs model.ReportSettings
	var templates []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, templates, created_at FROM report_settings ORDER BY created_at DESC LIMIT 1`,
	).Scan(&rs.ID, &templates, &rs.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest report settings")
	}
	if err := json.Unmarshal(templates, &rs.Templates); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report settings")
	}
	return &rs, nil
}

func (s *PostgresStore) SaveReportSettings(ctx context.Context, settings model.ReportSettings) (*model.ReportSettings, error) {
	settings.ID = uuid.New().String()
	settings.CreatedAt = time.Now().UTC()

	templates, err := json.Marshal(settings.Templates)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal report settings")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO report_settings (id, templates, created_at) VALUES ($1, $2, $3)`,
		settings.ID, templates, settings.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert report settings")
	}
	return &settings, nil
}

func (s *PostgresStore) InsertReport(ctx context.Context, r model.Report) (*model.Report, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	content, err := json.Marshal(r.ContentJSON)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal report content")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, company_id, user_id, tier, content_json, content_html, archive_key, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.CompanyID, r.UserID, string(r.Tier), content, r.ContentHTML, r.ArchiveKey, r.GeneratedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert report")
	}
	return &r, nil
}

const reportColumns = `id, company_id, user_id, tier, content_json, content_html, archive_key, generated_at`

func (s *PostgresStore) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, err := scanReport(s.pool.QueryRow(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id))
	if err != nil {
		return nil, wrapNotFound(err, "postgres: get report %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, companyID string) ([]model.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE company_id = $1 ORDER BY generated_at DESC`, companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	defer rows.Close()

	var out []model.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan report")
		}
		out = append(out, *r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list reports iterate")
}

func scanReport(row pgx.Row) (*model.Report, error) {
	var r model.Report
	var content []byte
	if err := row.Scan(&r.ID, &r.CompanyID, &r.UserID, &r.Tier, &content, &r.ContentHTML, &r.ArchiveKey, &r.GeneratedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &r.ContentJSON); err != nil {
		return nil, eris.Wrap(err, "unmarshal report content")
	}
	return &r, nil
}

func (s *PostgresStore) InsertAuditLog(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal audit metadata")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, entity, entity_id, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.Action, entry.Entity, entry.EntityID, meta, entry.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert audit log")
}

func (s *PostgresStore) GetCredential(ctx context.Context, service string) (*model.Credential, error) {
	var c model.Credential
	err := s.pool.QueryRow(ctx,
		`SELECT service, encrypted_secret, updated_at FROM credentials WHERE service = $1`, service,
	).Scan(&c.Service, &c.EncryptedSecret, &c.UpdatedAt)
	if err != nil {
		return nil, wrapNotFound(err, "postgres: get credential %s", service)
	}
	return &c, nil
}

func (s *PostgresStore) PutCredential(ctx context.Context, cred model.Credential) error {
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credentials (service, encrypted_secret, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (service) DO UPDATE SET encrypted_secret = $2, updated_at = $3`,
		cred.Service, cred.EncryptedSecret, cred.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: put credential %s", cred.Service)
}

func (s *PostgresStore) GetUserEmail(ctx context.Context, userID string) (string, error) {
	var email string
	err := s.pool.QueryRow(ctx, `SELECT email FROM profiles WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		return "", wrapNotFound(err, "postgres: get user email %s", userID)
	}
	return email, nil
}

func wrapNotFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, format, args...)
	}
	return eris.Wrapf(err, format, args...)
}
