package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vuvuzela92/waregouse-project/internal/metrics"
	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// Loader validates, reconciles and upserts row batches into a Backend. It is
// safe for concurrent use; every call checks out its own connection.
type Loader struct {
	backend Backend
	logger  *slog.Logger
	locks   *KeyedLock
	now     func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for reconciliation notices and load summaries.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// WithLocks replaces the process-wide table-creation lock table. Tests use it
// to isolate loaders from each other.
func WithLocks(l *KeyedLock) Option {
	return func(ld *Loader) {
		if l != nil {
			ld.locks = l
		}
	}
}

// NewLoader returns a Loader over b.
func NewLoader(b Backend, opts ...Option) *Loader {
	ld := &Loader{
		backend: b,
		logger:  slog.Default(),
		locks:   creationLocks,
		now:     time.Now,
	}
	for _, o := range opts {
		o(ld)
	}
	return ld
}

// Load runs the full cycle for one batch over a single connection: check the
// contract, reconcile the rows, ensure the table exists, and upsert. It
// returns the number of rows submitted. The connection is released on every
// path. Load performs no retries.
func (l *Loader) Load(ctx context.Context, c *schema.Contract, batch schema.Batch) (int64, error) {
	start := l.now()
	n, err := l.load(ctx, c, batch)
	table := ""
	if c != nil {
		table = c.Name()
	}
	metrics.RecordLoad(table, err, l.now().Sub(start))
	return n, err
}

func (l *Loader) load(ctx context.Context, c *schema.Contract, batch schema.Batch) (int64, error) {
	if err := c.Check(); err != nil {
		return 0, err
	}

	conn, err := l.acquire(ctx, c)
	if err != nil {
		return 0, err
	}
	defer conn.Release()

	if err := l.ensureTable(ctx, conn, c); err != nil {
		return 0, err
	}
	return l.upsertRows(ctx, conn, c, batch)
}

// EnsureTable creates the contract's table if it does not exist, using its
// own connection. Repeated and concurrent calls leave exactly one table.
func (l *Loader) EnsureTable(ctx context.Context, c *schema.Contract) error {
	if err := c.Check(); err != nil {
		return err
	}
	conn, err := l.acquire(ctx, c)
	if err != nil {
		return err
	}
	defer conn.Release()
	return l.ensureTable(ctx, conn, c)
}

// UpsertRows writes batch into an existing table using its own connection.
func (l *Loader) UpsertRows(ctx context.Context, c *schema.Contract, batch schema.Batch) (int64, error) {
	if err := c.Check(); err != nil {
		return 0, err
	}
	conn, err := l.acquire(ctx, c)
	if err != nil {
		return 0, err
	}
	defer conn.Release()
	return l.upsertRows(ctx, conn, c, batch)
}

func (l *Loader) acquire(ctx context.Context, c *schema.Contract) (Conn, error) {
	conn, err := l.backend.Acquire(ctx)
	if err != nil {
		return nil, &StoreError{Op: OpAcquire, Table: c.Name(), Err: err}
	}
	return conn, nil
}

func (l *Loader) ensureTable(ctx context.Context, conn Conn, c *schema.Contract) error {
	key := l.backend.Destination() + "|" + c.Name()
	unlock, err := l.locks.Lock(ctx, key)
	if err != nil {
		return &StoreError{Op: OpLock, Table: c.Name(), Err: err}
	}
	defer unlock()

	created, err := conn.EnsureTable(ctx, c)
	if err != nil {
		return asStoreError(OpEnsureTable, c.Name(), err)
	}
	if created {
		l.logger.InfoContext(ctx, "loader: created table",
			slog.String("table", c.Name()),
			slog.Any("keys", c.Keys()),
			slog.String("backend", l.backend.Kind()))
	}
	return nil
}

func (l *Loader) upsertRows(ctx context.Context, conn Conn, c *schema.Contract, batch schema.Batch) (int64, error) {
	submitted := int64(len(batch))
	if submitted == 0 {
		return 0, nil
	}
	start := l.now()

	rec := schema.Reconcile(ctx, l.logger, c.Columns(), batch)
	unique := rec.Dedupe(c.KeyIndexes(), c.Types())

	if err := conn.Upsert(ctx, c, unique.Tuples()); err != nil {
		return 0, asStoreError(OpUpsert, c.Name(), err)
	}

	metrics.RecordRows(c.Name(), "submitted", submitted)
	metrics.RecordRows(c.Name(), "deduplicated", submitted-int64(len(unique.Rows)))
	metrics.RecordRows(c.Name(), "written", int64(len(unique.Rows)))

	l.logger.InfoContext(ctx, "loader: batch upserted",
		slog.String("table", c.Name()),
		slog.Int64("rows", submitted),
		slog.Int("unique", len(unique.Rows)),
		slog.Duration("elapsed", l.now().Sub(start)))
	return submitted, nil
}

// asStoreError wraps err unless it already is a schema or store error.
func asStoreError(op Op, table string, err error) error {
	var se *StoreError
	if errors.As(err, &se) || schema.IsSchemaError(err) {
		return err
	}
	return &StoreError{Op: op, Table: table, Err: err}
}
