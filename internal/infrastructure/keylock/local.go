// Package keylock implements per-correlation-key mutual exclusion for the
// reconciliation pipeline. LocalLocker serializes within one process;
// RedisLocker serializes across instances sharing a Redis.
package keylock

import (
	"context"
	"sync"
	"time"

	"github.com/erp/clinicsync/internal/domain/reconciliation"
)

type localEntry struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process KeyLocker. Entries are reference counted and
// dropped once no caller holds or waits on them.
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

// Lock blocks until key is free or ctx is done. ttl is ignored: a local
// holder cannot disappear without releasing.
func (l *LocalLocker) Lock(ctx context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.release(key, e)
		})
	}, nil
}

func (l *LocalLocker) release(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (l *LocalLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

var _ reconciliation.KeyLocker = (*LocalLocker)(nil)
