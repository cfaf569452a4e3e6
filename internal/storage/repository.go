// Package storage is the backend-agnostic half of the upsert loader. It
// defines the Backend/Conn contracts every database adapter implements, a
// registry so callers can open a backend by kind, and the Loader that runs
// validate, reconcile, ensure-table and upsert over a single connection.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vuvuzela92/waregouse-project/internal/schema"
)

// Config selects and configures a backend.
type Config struct {
	Kind           string        // "postgres", "sqlite" or "mssql"
	DSN            string        // driver-specific connection string
	MaxConns       int           // upper bound on pooled connections; 0 keeps the driver default
	ConnectTimeout time.Duration // dial/ping timeout; 0 keeps the driver default
}

// Backend owns a connection pool for one destination database.
type Backend interface {
	// Kind returns the registered backend kind.
	Kind() string
	// Destination identifies the database for table-creation locking, e.g.
	// "postgres://host:5432/db". It must not contain credentials.
	Destination() string
	// Acquire checks out a dedicated connection. The caller must Release it.
	Acquire(ctx context.Context) (Conn, error)
	Close()
}

// Conn is one checked-out connection.
type Conn interface {
	// EnsureTable creates the contract's table and unique constraint when
	// the table does not exist yet. It reports whether it created the table.
	EnsureTable(ctx context.Context, c *schema.Contract) (bool, error)
	// Upsert writes rows positionally aligned to c.ColumnNames() in a single
	// transaction. Rows must already be free of duplicate keys.
	Upsert(ctx context.Context, c *schema.Contract, rows [][]any) error
	Release()
}

// Factory opens a Backend from a Config.
type Factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) a factory for kind. Backend packages call
// it from init.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Backend, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no backend registered for kind %q (have %v)", cfg.Kind, Kinds())
	}
	b, err := f(ctx, cfg)
	if err != nil {
		return nil, &StoreError{Op: OpConnect, Err: err}
	}
	return b, nil
}
