package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovmcloud/ocfs2-manager/pkg/lock"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
)

func TestSerializedManager_SameClusterRunsDoNotOverlap(t *testing.T) {
	inner := &blockingManager{delay: 50 * time.Millisecond}
	m := NewSerializedManager(inner, &fakeLockManager{}, withManualTestOverrides(&testOverrides{}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.PrepareNodesForCluster(context.Background(), 42)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, inner.calls.Load())
	assert.EqualValues(t, 1, inner.maxConcurrent.Load())
}

func TestSerializedManager_DistributedLock(t *testing.T) {
	inner := &blockingManager{}
	locks := &fakeLockManager{}
	m := NewSerializedManager(inner, locks, withManualTestOverrides(&testOverrides{
		useDistributedLock: true,
		lockTimeout:        time.Second,
	}))

	_, err := m.PrepareNodesForCluster(context.Background(), 42)
	require.NoError(t, err)

	_, err = m.PrepareNodes(context.Background(), "cluster42", []*host.Record{{Id: 1, ClusterId: 42}})
	require.NoError(t, err)

	_, err = m.PrepareNodesForPool(context.Background(), nil, &pool.Record{Id: 1, ClusterId: 7})
	require.NoError(t, err)

	assert.Equal(t, []string{"cluster/42", "cluster/42", "cluster/7"}, locks.created)
	for _, l := range locks.locks {
		assert.False(t, l.IsLocked())
	}
}

func TestSerializedManager_LockTimeout(t *testing.T) {
	inner := &blockingManager{}
	locks := &fakeLockManager{blockAcquire: true}
	m := NewSerializedManager(inner, locks, withManualTestOverrides(&testOverrides{
		useDistributedLock: true,
		lockTimeout:        50 * time.Millisecond,
	}))

	_, err := m.PrepareNodesForCluster(context.Background(), 42)
	assert.ErrorIs(t, err, lock.ErrAcquireTimeout)
	assert.EqualValues(t, 0, inner.calls.Load())
}

type blockingManager struct {
	delay         time.Duration
	calls         atomic.Int64
	concurrent    atomic.Int64
	maxConcurrent atomic.Int64
}

func (m *blockingManager) run() (*Verdict, error) {
	m.calls.Add(1)
	current := m.concurrent.Add(1)
	defer m.concurrent.Add(-1)

	for {
		prev := m.maxConcurrent.Load()
		if current <= prev || m.maxConcurrent.CompareAndSwap(prev, current) {
			break
		}
	}

	time.Sleep(m.delay)
	return newSuccessVerdict("cluster42"), nil
}

func (m *blockingManager) PrepareNodesForCluster(_ context.Context, _ uint64) (*Verdict, error) {
	return m.run()
}

func (m *blockingManager) PrepareNodes(_ context.Context, _ string, _ []*host.Record) (*Verdict, error) {
	return m.run()
}

func (m *blockingManager) PrepareNodesForPool(_ context.Context, _ []*host.Record, _ *pool.Record) (*Verdict, error) {
	return m.run()
}

type fakeLockManager struct {
	mu           sync.Mutex
	blockAcquire bool
	created      []string
	locks        []*fakeLock
}

func (m *fakeLockManager) Create(_ context.Context, name string) (lock.DistributedLock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l := &fakeLock{block: m.blockAcquire}
	m.created = append(m.created, name)
	m.locks = append(m.locks, l)
	return l, nil
}

type fakeLock struct {
	mu     sync.Mutex
	block  bool
	locked bool
}

func (l *fakeLock) Acquire(ctx context.Context) (<-chan struct{}, error) {
	if l.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	l.mu.Lock()
	l.locked = true
	l.mu.Unlock()
	return make(chan struct{}), nil
}

func (l *fakeLock) Unlock(_ context.Context) error {
	l.mu.Lock()
	l.locked = false
	l.mu.Unlock()
	return nil
}

func (l *fakeLock) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}
