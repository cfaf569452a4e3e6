// Package sqlite implements the storage backend for SQLite using database/sql
// and the pure-Go modernc driver. Upserts use INSERT ... ON CONFLICT (keys)
// DO UPDATE inside one transaction. The pool is limited to one connection:
// SQLite serializes writers anyway, and ":memory:" databases are
// per-connection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vuvuzela92/waregouse-project/internal/ddl"
	"github.com/vuvuzela92/waregouse-project/internal/schema"
	"github.com/vuvuzela92/waregouse-project/internal/storage"
)

const (
	// maxParams is SQLITE_MAX_VARIABLE_NUMBER for builds since 3.32.
	maxParams = 32766
	// maxRows keeps VALUES lists small enough for older SQLite builds.
	maxRows = 500
)

// Config holds SQLite backend configuration.
type Config struct {
	// DSN is passed to database/sql, e.g. "file:warehouse.db" or ":memory:".
	DSN         string
	PingTimeout time.Duration
}

// Repository is the SQLite storage.Backend.
type Repository struct {
	db  *sql.DB
	dsn string
}

var _ storage.Backend = (*Repository)(nil)

// Open opens a SQLite database with foreign keys and a busy timeout enabled.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// NewRepository opens the database and pings it.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	return New(db, cfg.DSN), nil
}

// New wraps an already opened database.
func New(db *sql.DB, dsn string) *Repository {
	return &Repository{db: db, dsn: dsn}
}

func (r *Repository) Kind() string        { return "sqlite" }
func (r *Repository) Destination() string { return "sqlite://" + r.dsn }
func (r *Repository) Close()              { _ = r.db.Close() }

// DB exposes the underlying handle for read-side queries.
func (r *Repository) DB() *sql.DB { return r.db }

// Acquire reserves a dedicated connection.
func (r *Repository) Acquire(ctx context.Context) (storage.Conn, error) {
	c, err := r.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

type conn struct {
	c *sql.Conn
}

func (c *conn) Release() { _ = c.c.Close() }

// EnsureTable creates the table when sqlite_master has no entry for it.
func (c *conn) EnsureTable(ctx context.Context, ct *schema.Contract) (bool, error) {
	create, err := CreateTableSQL(ct)
	if err != nil {
		return false, &schema.SchemaError{Table: ct.Name(), Reason: schema.Reason(err.Error())}
	}

	var name string
	err = c.c.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", tableName(ct.Name())).Scan(&name)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("sqlite: lookup table: %w", err)
	}

	if _, err := c.c.ExecContext(ctx, create); err != nil {
		return false, fmt.Errorf("sqlite: create table: %w", err)
	}
	return true, nil
}

// Upsert writes rows in chunks inside a single transaction.
func (c *conn) Upsert(ctx context.Context, ct *schema.Contract, rows [][]any) (err error) {
	if len(rows) == 0 {
		return nil
	}
	width := len(ct.ColumnNames())

	tx, err := c.c.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, chunk := range storage.Chunk(rows, width, maxParams, maxRows) {
		args := make([]any, 0, len(chunk)*width)
		for _, row := range chunk {
			if len(row) != width {
				return fmt.Errorf("sqlite: row length %d != columns length %d", len(row), width)
			}
			args = append(args, row...)
		}
		if _, err = tx.ExecContext(ctx, UpsertSQL(ct, len(chunk)), args...); err != nil {
			return fmt.Errorf("sqlite: upsert: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for a contract. SQLite
// accepts every declared type name as-is and maps it to a storage affinity.
func CreateTableSQL(ct *schema.Contract) (string, error) {
	td := ddl.FromContract(ct, nil)
	td.FQN = tableName(ct.Name())
	return ddl.BuildCreateTableSQL(td, ddl.Dialect{QuoteIdent: quoteIdent, IfNotExists: true})
}

// UpsertSQL renders a multi-row INSERT for n rows with an ON CONFLICT target
// on the key columns.
func UpsertSQL(ct *schema.Contract, n int) string {
	cols := ct.ColumnNames()
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", quoteIdent(tableName(ct.Name())), strings.Join(quoted, ", "))
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}

	keys := ct.Keys()
	if len(keys) == 0 {
		return sb.String()
	}
	target := make([]string, len(keys))
	for i, k := range keys {
		target[i] = quoteIdent(k)
	}
	fmt.Fprintf(&sb, " ON CONFLICT (%s)", strings.Join(target, ", "))

	nonKey := ct.NonKeyColumns()
	if len(nonKey) == 0 {
		sb.WriteString(" DO NOTHING")
		return sb.String()
	}
	sets := make([]string, len(nonKey))
	for i, c := range nonKey {
		sets[i] = fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c))
	}
	sb.WriteString(" DO UPDATE SET ")
	sb.WriteString(strings.Join(sets, ", "))
	return sb.String()
}

// tableName flattens a dotted name; SQLite schemas are attached databases,
// not namespaces inside one file.
func tableName(fqn string) string {
	return strings.ReplaceAll(strings.Trim(fqn, "."), ".", "_")
}

// quoteIdent quotes an identifier with double quotes, escaping embedded ones.
func quoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }
