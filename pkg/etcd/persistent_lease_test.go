package etcd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v3 "go.etcd.io/etcd/client/v3"
)

func TestPersistentLease_InvalidTtl(t *testing.T) {
	for _, ttl := range []time.Duration{0, 500 * time.Millisecond, 2 * time.Minute} {
		_, err := NewPersistentLease(testClient, "/ocfs2/hosts/0", "", ttl)
		assert.Error(t, err)
	}
}

func TestPersistentLease_Recreated(t *testing.T) {
	ctx := context.Background()
	key := "/ocfs2/hosts/1"

	pl, err := NewPersistentLease(testClient, key, "registered", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, key, pl.Key())

	getValue := func() (string, v3.LeaseID, bool) {
		resp, err := testClient.Get(ctx, key)
		if err != nil || len(resp.Kvs) != 1 {
			return "", 0, false
		}
		return string(resp.Kvs[0].Value), v3.LeaseID(resp.Kvs[0].Lease), true
	}

	// Alternate between deleting the key and revoking its lease
	for i := 0; i < 4; i++ {
		require.Eventually(t, func() bool {
			_, _, ok := getValue()
			return ok
		}, 3*time.Second, 50*time.Millisecond)

		val, lease, _ := getValue()
		assert.Equal(t, "registered", val)
		require.NotZero(t, lease)

		if i%2 == 0 {
			_, err = testClient.Delete(ctx, key)
		} else {
			_, err = testClient.Revoke(ctx, lease)
		}
		require.NoError(t, err)
	}

	pl.SetValue("updated")
	require.Eventually(t, func() bool {
		val, _, ok := getValue()
		return ok && val == "updated"
	}, 3*time.Second, 50*time.Millisecond)

	pl.Close()
	pl.Close()
	pl.SetValue("ignored")

	require.Eventually(t, func() bool {
		_, _, ok := getValue()
		return !ok
	}, 3*time.Second, 50*time.Millisecond)
}
