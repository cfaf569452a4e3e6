package postgres

import (
	"context"

	"github.com/vuvuzela92/waregouse-project/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// init registers the "postgres" backend with the storage factory so callers
// can stay backend-agnostic:
//
//	b, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//	defer b.Close()
//	n, err := storage.NewLoader(b).Load(ctx, contract, batch)
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		r, err := newRepository(ctx, Config{
			DSN:            cfg.DSN,
			MaxConns:       int32(cfg.MaxConns),
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
