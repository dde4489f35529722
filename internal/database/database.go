package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"legacy-portal/internal/apperr"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicateCode = errors.New("discount code already exists")
)

type Store struct {
	db     *sql.DB
	dbType string // "postgres" or "sqlite"
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, dsn string) (*Store, error) {
	var db *sql.DB
	var err error
	var dbType string

	if dsn == "" || strings.HasPrefix(dsn, "sqlite:") {
		dbType = "sqlite"
		sqlitePath := "data.db"
		if strings.HasPrefix(dsn, "sqlite:") {
			sqlitePath = strings.TrimPrefix(dsn, "sqlite:")
		}
		sep := "?"
		if strings.Contains(sqlitePath, "?") {
			sep = "&"
		}
		db, err = sql.Open("sqlite", sqlitePath+sep+"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		// SQLite has no row locks; a single connection serializes every transaction.
		db.SetMaxOpenConns(1)
	} else {
		dbType = "postgres"
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres open: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	store := &Store{db: db, dbType: dbType}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

func (s *Store) Dialect() string {
	return s.dbType
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	var schema string
	if s.dbType == "sqlite" {
		schema = sqliteSchema
	} else {
		schema = postgresSchema
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dbType == "sqlite" {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// forUpdate returns the row-lock clause for the dialect.
func (s *Store) forUpdate() string {
	if s.dbType == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}

// WithTx runs fn inside one transaction. Any error returned by fn, or a panic,
// rolls back every statement fn issued.
func (s *Store) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx, s: s}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Store(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "duplicate")
}

func nullableInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	val := n.Int64
	return &val
}

func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	val := t.Time
	return &val
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	val := s.String
	return &val
}

// timeArg converts an optional time into a driver value.
func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func int64Arg(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password TEXT NOT NULL DEFAULT '',
    email TEXT,
    avatar TEXT,
    admin INTEGER NOT NULL DEFAULT 0,
    legacycoin INTEGER NOT NULL DEFAULT 0 CHECK (legacycoin >= 0)
);

CREATE TABLE IF NOT EXISTS characters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account INTEGER NOT NULL REFERENCES accounts(id),
    charactername TEXT,
    money INTEGER NOT NULL DEFAULT 0,
    bankmoney INTEGER NOT NULL DEFAULT 0,
    hoursplayed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    mta_serial TEXT,
    ip TEXT,
    account INTEGER,
    admin INTEGER,
    reason TEXT NOT NULL,
    date TIMESTAMP NOT NULL,
    until TIMESTAMP,
    threadid INTEGER
);

CREATE TABLE IF NOT EXISTS web_discount_codes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL,
    code TEXT NOT NULL UNIQUE,
    percent INTEGER NOT NULL,
    used BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    used_at TIMESTAMP,
    expires_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS web_wheel_spins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    reward_value INTEGER,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS web_purchase_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id INTEGER NOT NULL,
    character_id INTEGER NOT NULL,
    item_id INTEGER NOT NULL,
    item_value TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TIMESTAMP NOT NULL,
    delivered_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_characters_account ON characters(account);
CREATE INDEX IF NOT EXISTS idx_bans_account ON bans(account);
CREATE INDEX IF NOT EXISTS idx_discount_codes_account ON web_discount_codes(account_id);
CREATE INDEX IF NOT EXISTS idx_wheel_spins_account ON web_wheel_spins(account_id, id);
CREATE INDEX IF NOT EXISTS idx_purchase_queue_status ON web_purchase_queue(status);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS accounts (
    id BIGSERIAL PRIMARY KEY,
    username TEXT UNIQUE NOT NULL,
    password TEXT NOT NULL DEFAULT '',
    email TEXT,
    avatar TEXT,
    admin INTEGER NOT NULL DEFAULT 0,
    legacycoin BIGINT NOT NULL DEFAULT 0 CHECK (legacycoin >= 0)
);

CREATE TABLE IF NOT EXISTS characters (
    id BIGSERIAL PRIMARY KEY,
    account BIGINT NOT NULL REFERENCES accounts(id),
    charactername TEXT,
    money BIGINT NOT NULL DEFAULT 0,
    bankmoney BIGINT NOT NULL DEFAULT 0,
    hoursplayed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bans (
    id BIGSERIAL PRIMARY KEY,
    mta_serial TEXT,
    ip TEXT,
    account BIGINT,
    admin BIGINT,
    reason TEXT NOT NULL,
    date TIMESTAMPTZ NOT NULL,
    until TIMESTAMPTZ,
    threadid BIGINT
);

CREATE TABLE IF NOT EXISTS web_discount_codes (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL,
    code VARCHAR(64) NOT NULL UNIQUE,
    percent INTEGER NOT NULL,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    used_at TIMESTAMPTZ,
    expires_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS web_wheel_spins (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL,
    outcome VARCHAR(32) NOT NULL,
    reward_value BIGINT,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS web_purchase_queue (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL,
    character_id BIGINT NOT NULL,
    item_id INTEGER NOT NULL,
    item_value TEXT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending',
    created_at TIMESTAMPTZ NOT NULL,
    delivered_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_characters_account ON characters(account);
CREATE INDEX IF NOT EXISTS idx_bans_account ON bans(account);
CREATE INDEX IF NOT EXISTS idx_discount_codes_account ON web_discount_codes(account_id);
CREATE INDEX IF NOT EXISTS idx_wheel_spins_account ON web_wheel_spins(account_id, id);
CREATE INDEX IF NOT EXISTS idx_purchase_queue_status ON web_purchase_queue(status);
`
