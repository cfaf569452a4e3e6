package sqlite

import (
	"context"

	"github.com/vuvuzela92/waregouse-project/internal/storage"
)

// init registers the "sqlite" backend with the storage factory.
func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Backend, error) {
		r, err := NewRepository(ctx, Config{DSN: cfg.DSN, PingTimeout: cfg.ConnectTimeout})
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
