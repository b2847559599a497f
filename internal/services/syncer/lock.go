package syncer

import (
	"context"
	"errors"
	"sync"
)

var ErrSyncInProgress = errors.New("sync already in progress")

// Locker is a per-tenant single-flight guard. TryAcquire never blocks: it
// returns ErrSyncInProgress when another holder owns the tenant.
type Locker interface {
	TryAcquire(ctx context.Context, tenantID string) (release func(), err error)
}

// MemoryLocker guards tenants within a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, tenantID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[tenantID]; ok {
		return nil, ErrSyncInProgress
	}
	l.held[tenantID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, tenantID)
			l.mu.Unlock()
		})
	}, nil
}
