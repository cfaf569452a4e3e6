package mssql

import (
	"context"

	"github.com/vuvuzela92/waregouse-project/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// init registers the "mssql" backend with the storage factory.
func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		r, err := newRepository(ctx, Config{
			DSN:            cfg.DSN,
			MaxConns:       cfg.MaxConns,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
