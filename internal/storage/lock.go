package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// KeyedLock is a process-wide mutual exclusion keyed by string. Waiting for a
// key honours context cancellation. Entries are kept for the life of the
// process; keys are table identities, so the set stays small.
type KeyedLock struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewKeyedLock returns an empty lock table.
func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[string]*semaphore.Weighted)}
}

// Lock blocks until key is free or ctx is done. On success the returned
// function releases the key; it must be called exactly once.
func (l *KeyedLock) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.locks[key]
	if !ok {
		s = semaphore.NewWeighted(1)
		l.locks[key] = s
	}
	l.mu.Unlock()

	if err := s.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { s.Release(1) }) }, nil
}

// creationLocks guards check-and-create sequences for every Loader in the
// process, so two loaders over the same destination still serialize.
var creationLocks = NewKeyedLock()
