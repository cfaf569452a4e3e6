// Package postgres implements the storage backend for Postgres using pgx v5.
// Table creation runs inside a transaction holding a transaction-scoped
// advisory lock keyed by the table name, so processes sharing a database do
// not race on CREATE TABLE. Upserts are multi-row INSERT ... ON CONFLICT ON
// CONSTRAINT statements executed in one transaction.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeebo/xxh3"

	"github.com/vuvuzela92/waregouse-project/internal/ddl"
	"github.com/vuvuzela92/waregouse-project/internal/schema"
	"github.com/vuvuzela92/waregouse-project/internal/storage"
)

// maxParams is the Postgres wire protocol limit on bind parameters per
// statement.
const maxParams = 65535

// Config holds Postgres backend configuration.
type Config struct {
	DSN            string        // connection string for pgxpool
	MaxConns       int32         // pool size; 0 keeps the pgxpool default
	ConnectTimeout time.Duration // 0 keeps the DSN's connect_timeout
}

// Repository is the Postgres storage.Backend.
type Repository struct {
	pool *pgxpool.Pool
	dest string
}

var _ storage.Backend = (*Repository)(nil)

// NewRepository opens a pool and pings the server.
func NewRepository(ctx context.Context, cfg Config) (*Repository, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		pcfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	cc := pcfg.ConnConfig
	dest := fmt.Sprintf("postgres://%s/%s", net.JoinHostPort(cc.Host, fmt.Sprint(cc.Port)), cc.Database)
	return &Repository{pool: pool, dest: dest}, nil
}

func (r *Repository) Kind() string        { return "postgres" }
func (r *Repository) Destination() string { return r.dest }
func (r *Repository) Close()              { r.pool.Close() }

// Acquire checks a connection out of the pool.
func (r *Repository) Acquire(ctx context.Context) (storage.Conn, error) {
	c, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &conn{c: c}, nil
}

type conn struct {
	c *pgxpool.Conn
}

func (c *conn) Release() { c.c.Release() }

// EnsureTable checks for the table and creates it under an advisory lock.
func (c *conn) EnsureTable(ctx context.Context, ct *schema.Contract) (bool, error) {
	create, err := CreateTableSQL(ct)
	if err != nil {
		return false, &schema.SchemaError{Table: ct.Name(), Reason: schema.Reason(err.Error())}
	}

	var exists bool
	err = pgx.BeginFunc(ctx, c.c, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", LockKey(ct.Name())); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
		if err := tx.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", pgFQN(ct.Name())).Scan(&exists); err != nil {
			return fmt.Errorf("lookup table: %w", err)
		}
		if exists {
			return nil
		}
		if _, err := tx.Exec(ctx, create); err != nil {
			return wrapPgErr("create table", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Upsert writes rows in chunks that fit the bind-parameter limit, all inside
// one transaction.
func (c *conn) Upsert(ctx context.Context, ct *schema.Contract, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	width := len(ct.ColumnNames())

	return pgx.BeginFunc(ctx, c.c, func(tx pgx.Tx) error {
		for _, chunk := range storage.Chunk(rows, width, maxParams, 0) {
			args := make([]any, 0, len(chunk)*width)
			for _, row := range chunk {
				args = append(args, row...)
			}
			if _, err := tx.Exec(ctx, UpsertSQL(ct, len(chunk)), args...); err != nil {
				return wrapPgErr("insert", err)
			}
		}
		return nil
	})
}

// LockKey derives the advisory lock key for a table name.
func LockKey(table string) int64 {
	return int64(xxh3.HashString("warehouse:create:" + table))
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for a contract.
func CreateTableSQL(ct *schema.Contract) (string, error) {
	return ddl.BuildCreateTableSQL(ddl.FromContract(ct, nil), ddl.Dialect{QuoteIdent: pgIdent, IfNotExists: true})
}

// UpsertSQL renders a multi-row INSERT for n rows. With a key tuple it
// resolves conflicts on the contract's unique constraint, overwriting every
// non-key column; without one it appends.
func UpsertSQL(ct *schema.Contract, n int) string {
	cols := ct.ColumnNames()
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", pgFQN(ct.Name()), strings.Join(mapIdent(cols), ", "))

	p := 1
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range cols {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", p)
			p++
		}
		sb.WriteByte(')')
	}

	if len(ct.Keys()) == 0 {
		return sb.String()
	}
	fmt.Fprintf(&sb, " ON CONFLICT ON CONSTRAINT %s", pgIdent(ddl.ConstraintName(ct.Name())))
	updates := updateColumns(ct.NonKeyColumns())
	if len(updates) == 0 {
		sb.WriteString(" DO NOTHING")
		return sb.String()
	}
	sb.WriteString(" DO UPDATE SET ")
	sb.WriteString(strings.Join(updates, ", "))
	return sb.String()
}

// updateColumns generates column updates in the form "col" = EXCLUDED."col".
func updateColumns(cols []string) []string {
	updates := make([]string, 0, len(cols))
	for _, col := range cols {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(col), pgIdent(col)))
	}
	return updates
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.acts" to
// "public"."acts".
func pgFQN(name string) string { return ddl.QuoteFQN(name, pgIdent) }

// mapIdent maps a list of column names to their quoted forms.
func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// wrapPgErr adds detail and SQLSTATE from a *pgconn.PgError while keeping the
// original error in the chain.
func wrapPgErr(stage string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%s: %s (%s): %w", stage, pgErr.Detail, pgErr.SQLState(), err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
