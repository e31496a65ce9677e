package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/aragant-group/b2b-intel/internal/model"
)

// execer is satisfied by both *sql.DB and *sql.Tx so every store method
// works inside and outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
	q  execer
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if strings.Contains(dsn, ":memory:") {
		// Each pooled connection would otherwise see its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                TEXT PRIMARY KEY,
	slug              TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	legal_form        TEXT NOT NULL DEFAULT '',
	inn               TEXT,
	ogrn              TEXT,
	website           TEXT,
	wb_present        INTEGER NOT NULL DEFAULT 0,
	ozon_present      INTEGER NOT NULL DEFAULT 0,
	revenue_total     REAL,
	sales_total       REAL,
	avg_price         REAL,
	enrichment_status TEXT NOT NULL DEFAULT 'new',
	lead_score        INTEGER NOT NULL DEFAULT 0,
	source_file       TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS facts (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	kind       TEXT NOT NULL,
	value      TEXT NOT NULL,
	value_norm TEXT NOT NULL,
	label      TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_id, kind, value_norm)
);

CREATE TABLE IF NOT EXISTS persons (
	id         TEXT PRIMARY KEY,
	company_id TEXT NOT NULL REFERENCES companies(id),
	name       TEXT NOT NULL,
	name_norm  TEXT NOT NULL,
	role       TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_id, name_norm)
);

CREATE TABLE IF NOT EXISTS intelligence (
	company_id        TEXT PRIMARY KEY REFERENCES companies(id),
	summary           TEXT NOT NULL DEFAULT '',
	pain_points       TEXT NOT NULL DEFAULT '[]',
	strengths         TEXT NOT NULL DEFAULT '[]',
	products          TEXT NOT NULL DEFAULT '[]',
	competitors       TEXT NOT NULL DEFAULT '[]',
	approach_strategy TEXT NOT NULL DEFAULT '',
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_companies_status ON companies(enrichment_status);
CREATE INDEX IF NOT EXISTS idx_companies_score ON companies(lead_score);
CREATE INDEX IF NOT EXISTS idx_facts_company ON facts(company_id);
CREATE INDEX IF NOT EXISTS idx_facts_provenance ON facts(provenance);
CREATE INDEX IF NOT EXISTS idx_persons_company ON persons(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := fn(&SQLiteStore{db: s.db, q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) CreateCompany(ctx context.Context, c *model.Company) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = model.StatusNew
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO companies (
			id, slug, name, legal_form, inn, ogrn, website,
			wb_present, ozon_present, revenue_total, sales_total, avg_price,
			enrichment_status, lead_score, source_file, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Slug, c.Name, c.LegalForm, c.INN, c.OGRN, c.Website,
		c.WBPresent, c.OzonPresent, c.RevenueTotal, c.SalesTotal, c.AvgPrice,
		string(c.Status), c.LeadScore, c.SourceFile, now, now,
	)
	return eris.Wrapf(err, "sqlite: insert company %s", c.Slug)
}

const companyColumns = `id, slug, name, legal_form, inn, ogrn, website,
	wb_present, ozon_present, revenue_total, sales_total, avg_price,
	enrichment_status, lead_score, source_file, created_at, updated_at`

func (s *SQLiteStore) GetCompany(ctx context.Context, slug string) (*model.Company, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE slug = ?`, slug)
	return scanCompany(row)
}

func (s *SQLiteStore) ListCompanies(ctx context.Context, filter CompanyFilter) ([]model.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND enrichment_status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinScore > 0 {
		query += ` AND lead_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY lead_score DESC, slug`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, *c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) SetWebsiteIfNull(ctx context.Context, companyID, website string) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE companies SET website = ?, updated_at = ?
		WHERE id = ? AND (website IS NULL OR website = '')`,
		website, time.Now().UTC(), companyID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: set website for %s", companyID)
	}
	return oneRowWritten(res)
}

func (s *SQLiteStore) SetINNIfNull(ctx context.Context, companyID, inn string) (bool, error) {
	if !model.ValidINN(inn) {
		return false, eris.Errorf("sqlite: invalid inn %q", inn)
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE companies SET inn = ?, updated_at = ?
		WHERE id = ? AND (inn IS NULL OR inn = '')`,
		inn, time.Now().UTC(), companyID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: set inn for %s", companyID)
	}
	return oneRowWritten(res)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, companyID string, status model.EnrichmentStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE companies SET enrichment_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", companyID)
	}
	return checkRowsAffected(res, "company", companyID)
}

func (s *SQLiteStore) UpdateLeadScore(ctx context.Context, companyID string, score int) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE companies SET lead_score = ?, updated_at = ? WHERE id = ?`,
		score, time.Now().UTC(), companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead score %s", companyID)
	}
	return checkRowsAffected(res, "company", companyID)
}

func (s *SQLiteStore) ResetStatuses(ctx context.Context, to model.EnrichmentStatus) (int, error) {
	res, err := s.q.ExecContext(ctx,
		`UPDATE companies SET enrichment_status = ?, updated_at = ? WHERE enrichment_status != ?`,
		string(to), time.Now().UTC(), string(to),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset statuses")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) InsertFactIfAbsent(ctx context.Context, f *model.Fact) (bool, error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO facts (id, company_id, kind, value, value_norm, label, provenance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, kind, value_norm) DO NOTHING`,
		f.ID, f.CompanyID, string(f.Kind), f.Value, f.ValueNorm, f.Label, f.Provenance, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert fact for %s", f.CompanyID)
	}
	return oneRowWritten(res)
}

func (s *SQLiteStore) ListFacts(ctx context.Context, companyID string) ([]model.Fact, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, company_id, kind, value, value_norm, label, provenance, created_at
		FROM facts WHERE company_id = ? ORDER BY kind, created_at`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facts")
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		var f model.Fact
		var kind string
		if err := rows.Scan(&f.ID, &f.CompanyID, &kind, &f.Value, &f.ValueNorm, &f.Label, &f.Provenance, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		f.Kind = model.FactKind(kind)
		facts = append(facts, f)
	}
	return facts, eris.Wrap(rows.Err(), "sqlite: list facts iterate")
}

func (s *SQLiteStore) CountFactsOfKind(ctx context.Context, companyID string, kinds ...model.FactKind) (int, error) {
	query := `SELECT COUNT(*) FROM facts WHERE company_id = ?`
	args := []any{companyID}
	if len(kinds) > 0 {
		query += ` AND kind IN (?` + repeatPlaceholder(len(kinds)-1) + `)`
		for _, k := range kinds {
			args = append(args, string(k))
		}
	}

	var n int
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count facts")
	}
	return n, nil
}

func (s *SQLiteStore) DeleteFactsByProvenance(ctx context.Context, provenance string) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM facts WHERE provenance = ?`, provenance)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete facts by provenance %s", provenance)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) InsertPersonIfAbsent(ctx context.Context, p *model.Person) (bool, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO persons (id, company_id, name, name_norm, role, provenance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, name_norm) DO NOTHING`,
		p.ID, p.CompanyID, p.Name, p.NameNorm, p.Role, p.Provenance, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert person for %s", p.CompanyID)
	}
	return oneRowWritten(res)
}

func (s *SQLiteStore) UpdatePersonRole(ctx context.Context, companyID, nameNorm, role, provenance string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE persons SET role = ?, provenance = ?
		WHERE company_id = ? AND name_norm = ?`,
		role, provenance, companyID, nameNorm,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update person role for %s", companyID)
	}
	return checkRowsAffected(res, "person", nameNorm)
}

func (s *SQLiteStore) ListPersons(ctx context.Context, companyID string) ([]model.Person, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, company_id, name, name_norm, role, provenance, created_at
		FROM persons WHERE company_id = ? ORDER BY created_at`,
		companyID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list persons")
	}
	defer rows.Close()

	var persons []model.Person
	for rows.Next() {
		var p model.Person
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.NameNorm, &p.Role, &p.Provenance, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan person")
		}
		persons = append(persons, p)
	}
	return persons, eris.Wrap(rows.Err(), "sqlite: list persons iterate")
}

func (s *SQLiteStore) DeletePersonsByProvenance(ctx context.Context, provenance string) (int, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM persons WHERE provenance = ?`, provenance)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete persons by provenance %s", provenance)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) UpsertIntelligence(ctx context.Context, intel *model.Intelligence) error {
	painPoints, strengths, products, competitors, err := marshalIntelLists(intel)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO intelligence (company_id, summary, pain_points, strengths, products, competitors, approach_strategy, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id) DO UPDATE SET
			summary = excluded.summary,
			pain_points = excluded.pain_points,
			strengths = excluded.strengths,
			products = excluded.products,
			competitors = excluded.competitors,
			approach_strategy = excluded.approach_strategy,
			updated_at = excluded.updated_at`,
		intel.CompanyID, intel.Summary, painPoints, strengths, products, competitors,
		intel.ApproachStrategy, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert intelligence for %s", intel.CompanyID)
}

func (s *SQLiteStore) GetIntelligence(ctx context.Context, companyID string) (*model.Intelligence, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT company_id, summary, pain_points, strengths, products, competitors, approach_strategy, updated_at
		FROM intelligence WHERE company_id = ?`,
		companyID,
	)

	var intel model.Intelligence
	var painPoints, strengths, products, competitors string
	err := row.Scan(&intel.CompanyID, &intel.Summary, &painPoints, &strengths, &products, &competitors,
		&intel.ApproachStrategy, &intel.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get intelligence")
	}
	if err := unmarshalIntelLists(&intel, painPoints, strengths, products, competitors); err != nil {
		return nil, err
	}
	return &intel, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[model.EnrichmentStatus]int)}

	rows, err := s.q.QueryContext(ctx,
		`SELECT enrichment_status, COUNT(*) FROM companies GROUP BY enrichment_status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stats")
		}
		stats.ByStatus[model.EnrichmentStatus(status)] = n
		stats.TotalCompanies += n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats iterate")
	}

	if err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(lead_score), 0) FROM companies`).Scan(&stats.AvgLeadScore); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats avg score")
	}
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&stats.FactCount); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats fact count")
	}
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM persons`).Scan(&stats.PersonCount); err != nil {
		return nil, eris.Wrap(err, "sqlite: stats person count")
	}
	return stats, nil
}

// helpers

func oneRowWritten(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "rows affected")
	}
	return n > 0, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func repeatPlaceholder(n int) string {
	out := ""
	for range n {
		out += ", ?"
	}
	return out
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompany(row scannable) (*model.Company, error) {
	var c model.Company
	var status string
	err := row.Scan(
		&c.ID, &c.Slug, &c.Name, &c.LegalForm, &c.INN, &c.OGRN, &c.Website,
		&c.WBPresent, &c.OzonPresent, &c.RevenueTotal, &c.SalesTotal, &c.AvgPrice,
		&status, &c.LeadScore, &c.SourceFile, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan company")
	}
	c.Status = model.EnrichmentStatus(status)
	return &c, nil
}

func marshalIntelLists(intel *model.Intelligence) (painPoints, strengths, products, competitors string, err error) {
	marshal := func(list []string) (string, error) {
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return "", eris.Wrap(err, "marshal intelligence list")
		}
		return string(b), nil
	}
	if painPoints, err = marshal(intel.PainPoints); err != nil {
		return
	}
	if strengths, err = marshal(intel.Strengths); err != nil {
		return
	}
	if products, err = marshal(intel.Products); err != nil {
		return
	}
	competitors, err = marshal(intel.Competitors)
	return
}

func unmarshalIntelLists(intel *model.Intelligence, painPoints, strengths, products, competitors string) error {
	for _, pair := range []struct {
		raw string
		dst *[]string
	}{
		{painPoints, &intel.PainPoints},
		{strengths, &intel.Strengths},
		{products, &intel.Products},
		{competitors, &intel.Competitors},
	} {
		if pair.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(pair.raw), pair.dst); err != nil {
			return eris.Wrap(err, "unmarshal intelligence list")
		}
	}
	return nil
}
