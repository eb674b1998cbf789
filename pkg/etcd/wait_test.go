package etcd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitForKey_Present(t *testing.T) {
	ctx := context.Background()
	key := "/ocfs2/wait/present"

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- WaitForKey(ctx, testClient, key, true)
	}()

	select {
	case <-resultCh:
		require.Fail(t, "returned before the key was written")
	case <-time.After(500 * time.Millisecond):
	}

	_, err := testClient.Put(ctx, key, "1")
	require.NoError(t, err)
	require.NoError(t, <-resultCh)

	// Already present
	require.NoError(t, WaitForKey(ctx, testClient, key, true))
}

func TestWaitForKey_Absent(t *testing.T) {
	ctx := context.Background()
	key := "/ocfs2/wait/absent"

	require.NoError(t, WaitForKey(ctx, testClient, key, false))

	_, err := testClient.Put(ctx, key, "1")
	require.NoError(t, err)

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- WaitForKey(ctx, testClient, key, false)
	}()

	select {
	case <-resultCh:
		require.Fail(t, "returned before the key was deleted")
	case <-time.After(500 * time.Millisecond):
	}

	_, err = testClient.Delete(ctx, key)
	require.NoError(t, err)
	require.NoError(t, <-resultCh)
}

func TestWaitForKey_ContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := WaitForKey(ctx, testClient, "/ocfs2/wait/never", true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}
