package lock

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Manager creates named locks shared across processes. Implementations may
// make locks of the same name re-entrant within a Manager, so callers still
// need local synchronization between goroutines of one process.
type Manager interface {
	Create(ctx context.Context, name string) (DistributedLock, error)
}

// DistributedLock is a handle to a single named lock
type DistributedLock interface {
	// Acquire blocks until the lock is held. The returned channel is closed
	// once the lock is lost, which happens on Unlock, when ctx is done, or
	// when the implementation can no longer guarantee ownership.
	Acquire(ctx context.Context) (<-chan struct{}, error)

	// Unlock releases the lock if it is held. It is idempotent.
	Unlock(ctx context.Context) error

	IsLocked() bool
}

// ErrAcquireTimeout indicates a lock could not be acquired in time
var ErrAcquireTimeout = errors.New("timed out acquiring lock")

// AcquireWithin acquires l, giving up after timeout. The timeout only bounds
// acquisition. Once held, the lock lives until ctx is done or it is unlocked.
func AcquireWithin(ctx context.Context, l DistributedLock, timeout time.Duration) (<-chan struct{}, context.CancelFunc, error) {
	lockCtx, cancel := context.WithCancel(ctx)

	timer := time.AfterFunc(timeout, cancel)
	lostCh, err := l.Acquire(lockCtx)
	if !timer.Stop() {
		if err == nil {
			l.Unlock(ctx)
		}
		cancel()
		return nil, nil, ErrAcquireTimeout
	} else if err != nil {
		cancel()
		return nil, nil, err
	}

	return lostCh, cancel, nil
}
