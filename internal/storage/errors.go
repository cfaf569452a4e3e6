package storage

import (
	"errors"
	"fmt"
)

// Op names the loader stage a StoreError came from.
type Op string

const (
	OpConnect     Op = "connect"
	OpAcquire     Op = "acquire"
	OpLock        Op = "lock"
	OpEnsureTable Op = "ensure_table"
	OpUpsert      Op = "upsert"
)

// StoreError reports a connection, DDL or DML failure at the destination.
// The underlying driver error is available through errors.As / Unwrap.
type StoreError struct {
	Op    Op
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsStoreError reports whether err wraps a *StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
