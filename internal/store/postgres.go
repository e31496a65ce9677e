package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/aragant-group/b2b-intel/internal/db"
	"github.com/aragant-group/b2b-intel/internal/model"
)

// PostgresStore implements Store using pgxpool. Transactional views
// share the same methods by swapping the pool for a pgx.Tx.
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
	minConns := int32(2)
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
CREATE TABLE IF NOT EXISTS companies (
	id                TEXT PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	legal_form        TEXT NOT NULL DEFAULT '',
	inn               TEXT,
	ogrn              TEXT,
	website           TEXT,
	wb_present        BOOLEAN NOT NULL DEFAULT FALSE,
	ozon_present      BOOLEAN NOT NULL DEFAULT FALSE,
	revenue_total     DOUBLE PRECISION,
	sales_total       DOUBLE PRECISION,
	avg_price         DOUBLE PRECISION,
	enrichment_status TEXT NOT NULL DEFAULT 'new',
	lead_score        INTEGER NOT NULL DEFAULT 0,
	source_file       TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS facts (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	kind       TEXT NOT NULL,
	value      TEXT NOT NULL,
	value_norm TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, kind, value_norm)
);

CREATE TABLE IF NOT EXISTS persons (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	name       TEXT NOT NULL,
	name_norm  TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_id, name_norm)
);

CREATE TABLE IF NOT EXISTS intelligence (
	company_id        TEXT PRIMARY KEY REFERENCES companies(id),
	summary           TEXT NOT NULL DEFAULT '',
	pain_points       JSONB NOT NULL DEFAULT '[]',
	strengths         JSONB NOT NULL DEFAULT '[]',
	products          JSONB NOT NULL DEFAULT '[]',
	competitors       JSONB NOT NULL DEFAULT '[]',
	approach_strategy TEXT NOT NULL DEFAULT '',
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_companies_status ON companies(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_companies_score ON companies(lead_score);
CREATE INDEX IF NOT EXISTS idx_facts_company ON facts(company_id);
CREATE INDEX IF NOT EXISTS idx_facts_provenance ON facts(provenance);
CREATE INDEX IF NOT EXISTS idx_persons_company ON persons(company_id);
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

func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.pool.(pgx.Tx); inTx {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	if err := fn(&PostgresStore{pool: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit")
}

func (s *PostgresStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.StatusNew
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO companies (
			id, slug, name, legal_form, inn, ogrn, website,
			wb_present, ozon_present, revenue_total, sales_total, avg_price,
			enrichment_status, lead_score, source_file, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		c.ID, c.Slug, c.Name, c.LegalForm, c.INN, c.OGRN, c.Website,
		c.WBPresent, c.OzonPresent, c.RevenueTotal, c.SalesTotal, c.AvgPrice,
		string(c.Status), c.LeadScore, c.SourceFile, now, now,
	)
	return eris.Wrapf(err, "postgres: insert company %s", c.Slug)
}

func (s *PostgresStore) GetCompany(ctx context.Context, slug string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE slug = $1`, slug)
	return scanCompanyPgx(row)
}

func (s *PostgresStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND enrichment_status = ` + placeholder(len(args))
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		query += ` AND lead_score >= ` + placeholder(len(args))
	}
	query += ` ORDER BY lead_score DESC, slug`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompanyPgx(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) SetWebsiteIfNull(ctx context.Context, companyID, website string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE companies SET website = $1, updated_at = now()
		WHERE id = $2 AND (website IS NULL OR website = '')`,
		website, companyID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: set website for %s", companyID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetINNIfNull(ctx context.Context, companyID, inn string) (bool, error) {
	if !model.ValidINN(inn) {
		return false, eris.Errorf("postgres: invalid inn %q", inn)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE companies SET inn = $1, updated_at = now()
		WHERE id = $2 AND (inn IS NULL OR inn = '')`,
		inn, companyID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: set inn for %s", companyID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, companyID string, status model.EnrichmentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET enrichment_status = $1, updated_at = now() WHERE id = $2`,
		string(status), companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update status %s", companyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %s", companyID)
	}
	return nil
}

func (s *PostgresStore) UpdateLeadScore(ctx context.Context, companyID string, score int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET lead_score = $1, updated_at = now() WHERE id = $2`,
		score, companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead score %s", companyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %s", companyID)
	}
	return nil
}

func (s *PostgresStore) ResetStatuses(ctx context.Context, to model.EnrichmentStatus) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET enrichment_status = $1, updated_at = now() WHERE enrichment_status != $1`,
		string(to),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset statuses")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertFactIfAbsent(ctx context.Context, f *model.Fact) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO facts (id, company_id, kind, value, value_norm, label, provenance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, kind, value_norm) DO NOTHING`,
		f.ID, f.CompanyID, string(f.Kind), f.Value, f.ValueNorm, f.Label, f.Provenance,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert fact for %s", f.CompanyID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListFacts(ctx context.Context, companyID string) ([]model.Fact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, kind, value, value_norm, label, provenance, created_at
		FROM facts WHERE company_id = $1 ORDER BY kind, created_at`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facts")
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var f model.Fact
		var kind string
		if err := rows.Scan(&f.ID, &f.CompanyID, &kind, &f.Value, &f.ValueNorm, &f.Label, &f.Provenance, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		f.Kind = model.FactKind(kind)
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "postgres: list facts iterate")
}

func (s *PostgresStore) CountFactsOfKind(ctx context.Context, companyID string, kinds ...model.FactKind) (int, error) {
	query := `SELECT COUNT(*) FROM facts WHERE company_id = $1`
	args := []any{companyID}
	if len(kinds) > 0 {
		kindStrs := make([]string, len(kinds))
		for i, k := range kinds {
			kindStrs[i] = string(k)
		}
		args = append(args, kindStrs)
		query += ` AND kind = ANY(` + placeholder(len(args)) + `)`
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count facts")
	}
	return n, nil
}

func (s *PostgresStore) DeleteFactsByProvenance(ctx context.Context, provenance string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM facts WHERE provenance = $1`, provenance)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete facts by provenance %s", provenance)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) InsertPersonIfAbsent(ctx context.Context, p *model.Person) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO persons (id, company_id, name, name_norm, role, provenance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (company_id, name_norm) DO NOTHING`,
		p.ID, p.CompanyID, p.Name, p.NameNorm, p.Role, p.Provenance,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert person for %s", p.CompanyID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) UpdatePersonRole(ctx context.Context, companyID, nameNorm, role, provenance string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE persons SET role = $1, provenance = $2
		WHERE company_id = $3 AND name_norm = $4`,
		role, provenance, companyID, nameNorm,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update person role for %s", companyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("person not found: %s", nameNorm)
	}
	return nil
}

func (s *PostgresStore) ListPersons(ctx context.Context, companyID string) ([]model.Person, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, name, name_norm, role, provenance, created_at
		FROM persons WHERE company_id = $1 ORDER BY created_at`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list persons")
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.NameNorm, &p.Role, &p.Provenance, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan person")
		}
		persons = append(persons, p)
	}
	return persons, eris.Wrap(rows.Err(), "postgres: list persons iterate")
}

func (s *PostgresStore) DeletePersonsByProvenance(ctx context.Context, provenance string) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE provenance = $1`, provenance)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete persons by provenance %s", provenance)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) UpsertIntelligence(ctx context.Context, intel *model.Intelligence) error {
	painPoints, strengths, products, competitors, err := marshalIntelLists(intel)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO intelligence (company_id, summary, pain_points, strengths, products, competitors, approach_strategy, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (company_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			pain_points = EXCLUDED.pain_points,
			strengths = EXCLUDED.strengths,
			products = EXCLUDED.products,
			competitors = EXCLUDED.competitors,
			approach_strategy = EXCLUDED.approach_strategy,
			updated_at = EXCLUDED.updated_at`,
		intel.CompanyID, intel.Summary, painPoints, strengths, products, competitors, intel.ApproachStrategy,
	)
	return eris.Wrapf(err, "postgres: upsert intelligence for %s", intel.CompanyID)
}

func (s *PostgresStore) GetIntelligence(ctx context.Context, companyID string) (*model.Intelligence, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT company_id, summary, pain_points, strengths, products, competitors, approach_strategy, updated_at
		FROM intelligence WHERE company_id = $1`,
		companyID,
	)

	var intel model.Intelligence
	var painPoints, strengths, products, competitors []byte
	err := row.Scan(&intel.CompanyID, &intel.Summary, &painPoints, &strengths, &products, &competitors,
		&intel.ApproachStrategy, &intel.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get intelligence")
	}
	for _, pair := range []struct {
		raw []byte
		dst *[]string
	}{
		{painPoints, &intel.PainPoints},
		{strengths, &intel.Strengths},
		{products, &intel.Products},
		{competitors, &intel.Competitors},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal intelligence list")
		}
	}
	return &intel, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[model.EnrichmentStatus]int)}

	rows, err := s.pool.Query(ctx,
		`SELECT enrichment_status, COUNT(*) FROM companies GROUP BY enrichment_status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan stats")
		}
		stats.ByStatus[model.EnrichmentStatus(status)] = n
		stats.TotalCompanies += n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: stats iterate")
	}

	if err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(AVG(lead_score), 0) FROM companies`).Scan(&stats.AvgLeadScore); err != nil {
		return nil, eris.Wrap(err, "postgres: stats avg score")
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM facts`).Scan(&stats.FactCount); err != nil {
		return nil, eris.Wrap(err, "postgres: stats fact count")
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM persons`).Scan(&stats.PersonCount); err != nil {
		return nil, eris.Wrap(err, "postgres: stats person count")
	}
	return stats, nil
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanCompanyPgx(row pgx.Row) (*model.Company, error) {
	var c model.Company
	var status string
	err := row.Scan(
		&c.ID, &c.Slug, &c.Name, &c.LegalForm, &c.INN, &c.OGRN, &c.Website,
		&c.WBPresent, &c.OzonPresent, &c.RevenueTotal, &c.SalesTotal, &c.AvgPrice,
		&status, &c.LeadScore, &c.SourceFile, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan company")
	}
	c.Status = model.EnrichmentStatus(status)
	return &c, nil
}
