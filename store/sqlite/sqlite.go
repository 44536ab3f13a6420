/*
Package sqlite provides a SQLite-backed implementation of workforce.TxStore.

PURPOSE:
  Persists the registries (employees, clients, sites, deployments, trade
  categories), the attendance ledger, month locks, derived payroll and
  productivity records, and spreadsheet upload tracking.

KEY TABLES:
  attendance_events: the ledger, UNIQUE(employee_id, site_id, date)
  month_locks:       UNIQUE(year, month)
  payroll_records:   UNIQUE(employee_id, year, month)
  productivity_records: UNIQUE(employee_id, site_id, year, month)
  trade_categories:  rules stored as JSON columns (see package rules)

CONCURRENCY:
  The month lock is only meaningful if "check lock" and "write attendance"
  commit together. Write transactions are opened with BEGIN IMMEDIATE
  (_txlock=immediate) so SQLite takes the write lock up front, and the pool
  holds a single connection, so transactions are serialized. Inside
  WithTx every query goes through the *sql.Tx.

STORAGE FORMATS:
  Dates:      TEXT "2006-01-02"
  Timestamps: TEXT RFC 3339 (UTC, fixed nanosecond width)
  Money:      TEXT decimal string (shopspring/decimal Valuer/Scanner)
  Lists:      TEXT JSON

USAGE:
  store, err := sqlite.New("./data/payroll.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := workforce.NewLedger(store)

MIGRATION:
  Schema is auto-migrated on New().
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/site-payroll/workforce"
)

// execer is the subset of *sql.DB and *sql.Tx the queries need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements workforce.Store against either the database or a
// transaction.
type queries struct {
	db execer
}

// Store implements workforce.TxStore using SQLite.
type Store struct {
	queries
	conn *sql.DB
}

var (
	_ workforce.TxStore = (*Store)(nil)
	_ workforce.Store   = queries{}
)

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	store := &Store{queries: queries{db: db}, conn: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// WithTx executes fn within a database transaction.
// If fn returns error, transaction is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(workforce.Store) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS trade_categories (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		payroll_rules TEXT,
		productivity_rules TEXT,
		rule_version TEXT NOT NULL DEFAULT '1.0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		father_name TEXT,
		mother_name TEXT,
		date_of_birth TEXT,
		home_address TEXT,
		home_phone TEXT,
		emergency_contact TEXT,
		passport_number TEXT,
		passport_expiry TEXT,
		visa_type TEXT,
		visa_expiry TEXT,
		passport_doc_url TEXT,
		visa_doc_url TEXT,
		photo_url TEXT,
		other_documents TEXT NOT NULL DEFAULT '[]',
		trade_category_id TEXT REFERENCES trade_categories(id),
		joining_date TEXT,
		recruitment_agency TEXT,
		basic_salary TEXT,
		food_allowance TEXT,
		foreman_allowance TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_name ON employees(full_name);
	CREATE INDEX IF NOT EXISTS idx_employees_passport
		ON employees(passport_number) WHERE passport_number IS NOT NULL;

	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		company_name TEXT NOT NULL,
		contract_start TEXT,
		contract_end TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		client_id TEXT NOT NULL REFERENCES clients(id),
		name TEXT NOT NULL,
		code TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sites_client ON sites(client_id);
	CREATE INDEX IF NOT EXISTS idx_sites_code ON sites(code) WHERE code IS NOT NULL;

	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		site_id TEXT NOT NULL REFERENCES sites(id),
		from_date TEXT NOT NULL,
		to_date TEXT,
		rate_override TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Daily-rate resolution scans an employee's deployments by date.
	CREATE INDEX IF NOT EXISTS idx_deployments_employee_dates
		ON deployments(employee_id, from_date, to_date);
	CREATE INDEX IF NOT EXISTS idx_deployments_site ON deployments(site_id);

	CREATE TABLE IF NOT EXISTS month_locks (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		is_locked INTEGER NOT NULL DEFAULT 0,
		locked_by TEXT,
		locked_at TEXT,
		unlocked_by TEXT,
		unlock_reason TEXT,
		unlocked_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(year, month)
	);

	CREATE TABLE IF NOT EXISTS excel_uploads (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		upload_type TEXT NOT NULL,
		status TEXT NOT NULL,
		year INTEGER,
		month INTEGER,
		total_rows INTEGER NOT NULL DEFAULT 0,
		processed_rows INTEGER NOT NULL DEFAULT 0,
		success_rows INTEGER NOT NULL DEFAULT 0,
		error_rows INTEGER NOT NULL DEFAULT 0,
		errors TEXT NOT NULL DEFAULT '[]',
		mapping TEXT NOT NULL DEFAULT '{}',
		uploaded_by TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- The ledger: exactly one row per (employee, site, date).
	CREATE TABLE IF NOT EXISTS attendance_events (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		site_id TEXT NOT NULL REFERENCES sites(id),
		date TEXT NOT NULL,
		status TEXT NOT NULL,
		hours TEXT,
		source TEXT NOT NULL,
		source_file_id TEXT REFERENCES excel_uploads(id),
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, site_id, date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_employee_date
		ON attendance_events(employee_id, date);
	CREATE INDEX IF NOT EXISTS idx_attendance_site_date
		ON attendance_events(site_id, date);

	CREATE TABLE IF NOT EXISTS payroll_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		paid_days INTEGER NOT NULL,
		ot_count INTEGER NOT NULL,
		daily_rate TEXT NOT NULL,
		salary TEXT NOT NULL,
		ot_amount TEXT NOT NULL,
		net_salary TEXT NOT NULL,
		rule_version TEXT NOT NULL,
		calculated_at TEXT NOT NULL,
		calculated_by TEXT NOT NULL,
		UNIQUE(employee_id, year, month)
	);

	CREATE TABLE IF NOT EXISTS productivity_records (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES employees(id),
		site_id TEXT NOT NULL REFERENCES sites(id),
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		productivity_days INTEGER NOT NULL,
		rate TEXT NOT NULL,
		amount TEXT NOT NULL,
		rule_version TEXT NOT NULL,
		calculated_at TEXT NOT NULL,
		calculated_by TEXT NOT NULL,
		UNIQUE(employee_id, site_id, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_productivity_site_period
		ON productivity_records(site_id, year, month);
	`
	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

// Reset deletes all data. Used by the seed command and tests.
func (s *Store) Reset(ctx context.Context) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []string{
		"productivity_records", "payroll_records", "attendance_events",
		"excel_uploads", "month_locks", "deployments", "sites", "clients",
		"employees", "trade_categories",
	}
	for _, t := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func fmtDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(time.DateOnly, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtDate(*t), Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: fmtTime(*t), Valid: true}
}

func datePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseDate(ns.String)
	return &t
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// mapErr turns constraint violations into workforce conflicts and wraps
// everything else with what was being done.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return workforce.Conflictf(workforce.ReasonDuplicate, "Cannot %s: record already exists", what)
		case sqlite3.ErrConstraintForeignKey:
			if strings.HasPrefix(what, "delete") {
				return workforce.Conflictf(workforce.ReasonInUse, "Cannot %s: record is referenced by other records", what)
			}
			return workforce.BadRequestf(workforce.ReasonInvalidInput, "Cannot %s: referenced record does not exist", what)
		}
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}
