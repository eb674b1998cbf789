package etcd

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v3 "go.etcd.io/etcd/client/v3"

	"github.com/ovmcloud/ocfs2-manager/pkg/etcdtest"
	"github.com/ovmcloud/ocfs2-manager/pkg/lock"
)

var testClient *v3.Client

func TestMain(m *testing.M) {
	log := logrus.StandardLogger()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.WithError(err).Error("Error creating docker pool")
		os.Exit(1)
	}

	client, teardown, err := etcdtest.StartEtcd(pool)
	if err != nil {
		log.WithError(err).Error("Error starting etcd container")
		os.Exit(1)
	}
	testClient = client

	code := m.Run()
	teardown()
	os.Exit(code)
}

func TestNewLockManager_InvalidTtl(t *testing.T) {
	for _, ttl := range []time.Duration{0, 500 * time.Millisecond, 2 * time.Minute} {
		_, err := NewLockManager(testClient, "/ocfs2/locks", ttl, "manager")
		assert.Error(t, err)
	}
}

func TestLock_HappyPath(t *testing.T) {
	ctx := context.Background()
	rootKey := "/ocfs2/locks/happy"

	lm, err := NewLockManager(testClient, rootKey, 10*time.Second, "manager-1")
	require.NoError(t, err)
	defer lm.Close()

	l, err := lm.Create(ctx, "cluster/1")
	require.NoError(t, err)
	assert.False(t, l.IsLocked())

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, l.IsLocked())

	resp, err := testClient.Get(ctx, rootKey+"/cluster/1", v3.WithPrefix())
	require.NoError(t, err)
	require.Len(t, resp.Kvs, 1)
	assert.Equal(t, "manager-1", string(resp.Kvs[0].Value))

	require.NoError(t, l.Unlock(ctx))
	requireLost(t, lostCh)
	assert.False(t, l.IsLocked())

	// Unlock is idempotent
	require.NoError(t, l.Unlock(ctx))
}

func TestLock_MutualExclusion(t *testing.T) {
	ctx := context.Background()
	rootKey := "/ocfs2/locks/exclusion"

	var managers []*LockManager
	for i := 0; i < 2; i++ {
		lm, err := NewLockManager(testClient, rootKey, 10*time.Second, fmt.Sprintf("manager-%d", i))
		require.NoError(t, err)
		defer lm.Close()
		managers = append(managers, lm)
	}

	first, err := managers[0].Create(ctx, "cluster/1")
	require.NoError(t, err)
	firstLostCh, err := first.Acquire(ctx)
	require.NoError(t, err)

	second, err := managers[1].Create(ctx, "cluster/1")
	require.NoError(t, err)

	acquiredCh := make(chan (<-chan struct{}), 1)
	go func() {
		lostCh, err := second.Acquire(ctx)
		if err == nil {
			acquiredCh <- lostCh
		}
	}()

	select {
	case <-acquiredCh:
		require.FailNow(t, "lock held by two managers")
	case <-time.After(time.Second):
	}

	// A different cluster is not blocked
	other, err := managers[1].Create(ctx, "cluster/2")
	require.NoError(t, err)
	otherLostCh, err := other.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, other.Unlock(ctx))
	requireLost(t, otherLostCh)

	require.NoError(t, first.Unlock(ctx))
	requireLost(t, firstLostCh)

	select {
	case lostCh := <-acquiredCh:
		assert.True(t, second.IsLocked())
		require.NoError(t, second.Unlock(ctx))
		requireLost(t, lostCh)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "lock was not handed over")
	}
}

func TestLock_ReentrantPerManager(t *testing.T) {
	ctx := context.Background()

	lm, err := NewLockManager(testClient, "/ocfs2/locks/reentrant", 10*time.Second, "manager")
	require.NoError(t, err)
	defer lm.Close()

	first, err := lm.Create(ctx, "cluster/1")
	require.NoError(t, err)
	_, err = first.Acquire(ctx)
	require.NoError(t, err)

	second, err := lm.Create(ctx, "cluster/1")
	require.NoError(t, err)

	acquireCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	lostCh, err := second.Acquire(acquireCtx)
	require.NoError(t, err)

	require.NoError(t, second.Unlock(ctx))
	requireLost(t, lostCh)
}

func TestLock_ContextCancellation(t *testing.T) {
	lm, err := NewLockManager(testClient, "/ocfs2/locks/cancel", 10*time.Second, "manager")
	require.NoError(t, err)
	defer lm.Close()

	l, err := lm.Create(context.Background(), "cluster/1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)

	cancel()
	requireLost(t, lostCh)

	require.Eventually(t, func() bool { return !l.IsLocked() }, 2*time.Second, 50*time.Millisecond)

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLock_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()

	lm, err := NewLockManager(testClient, "/ocfs2/locks/concurrent", 10*time.Second, "manager")
	require.NoError(t, err)
	defer lm.Close()

	l, err := lm.Create(ctx, "cluster/1")
	require.NoError(t, err)

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrConcurrentAcquire)

	require.NoError(t, l.Unlock(ctx))
	requireLost(t, lostCh)
}

func TestLockManager_Close(t *testing.T) {
	ctx := context.Background()

	lm, err := NewLockManager(testClient, "/ocfs2/locks/close", 10*time.Second, "manager")
	require.NoError(t, err)

	l, err := lm.Create(ctx, "cluster/1")
	require.NoError(t, err)

	lostCh, err := l.Acquire(ctx)
	require.NoError(t, err)

	lm.Close()
	lm.Close()
	requireLost(t, lostCh)

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrManagerClosed)

	_, err = lm.Create(ctx, "cluster/1")
	assert.ErrorIs(t, err, ErrManagerClosed)
}

func TestAcquireWithin(t *testing.T) {
	ctx := context.Background()
	rootKey := "/ocfs2/locks/within"

	holder, err := NewLockManager(testClient, rootKey, 10*time.Second, "holder")
	require.NoError(t, err)
	defer holder.Close()

	waiter, err := NewLockManager(testClient, rootKey, 10*time.Second, "waiter")
	require.NoError(t, err)
	defer waiter.Close()

	held, err := holder.Create(ctx, "cluster/1")
	require.NoError(t, err)
	_, err = held.Acquire(ctx)
	require.NoError(t, err)

	blocked, err := waiter.Create(ctx, "cluster/1")
	require.NoError(t, err)

	start := time.Now()
	_, _, err = lock.AcquireWithin(ctx, blocked, 500*time.Millisecond)
	assert.ErrorIs(t, err, lock.ErrAcquireTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, blocked.IsLocked())

	require.NoError(t, held.Unlock(ctx))

	lostCh, release, err := lock.AcquireWithin(ctx, blocked, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, blocked.IsLocked())

	release()
	requireLost(t, lostCh)
}

func requireLost(t *testing.T, lostCh <-chan struct{}) {
	select {
	case <-lostCh:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "lock was not released")
	}
}
