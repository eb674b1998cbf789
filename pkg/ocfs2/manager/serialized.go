package manager

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ovmcloud/ocfs2-manager/pkg/lock"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
	sync_util "github.com/ovmcloud/ocfs2-manager/pkg/sync"
)

type serializedManager struct {
	log              *logrus.Entry
	inner            Manager
	clusterLocks     *sync_util.StripedLock
	distributedLocks lock.Manager
	conf             *conf
}

// NewSerializedManager returns a Manager that runs at most one preparation per
// cluster at a time. Within the process, runs are serialized with a striped
// lock keyed by cluster id. When distributed locking is enabled, runs are also
// serialized across processes using distributedLocks.
func NewSerializedManager(inner Manager, distributedLocks lock.Manager, configProvider ConfigProvider) Manager {
	return &serializedManager{
		log:              logrus.StandardLogger().WithField("type", "ocfs2/serializedManager"),
		inner:            inner,
		clusterLocks:     sync_util.NewStripedLock(256),
		distributedLocks: distributedLocks,
		conf:             configProvider(),
	}
}

// PrepareNodesForCluster implements Manager.PrepareNodesForCluster
func (m *serializedManager) PrepareNodesForCluster(ctx context.Context, clusterId uint64) (*Verdict, error) {
	var verdict *Verdict
	err := m.withClusterLock(ctx, clusterId, func() error {
		var err error
		verdict, err = m.inner.PrepareNodesForCluster(ctx, clusterId)
		return err
	})
	return verdict, err
}

// PrepareNodes implements Manager.PrepareNodes
func (m *serializedManager) PrepareNodes(ctx context.Context, clusterName string, hosts []*host.Record) (*Verdict, error) {
	if len(hosts) == 0 {
		return m.inner.PrepareNodes(ctx, clusterName, hosts)
	}

	var verdict *Verdict
	err := m.withClusterLock(ctx, hosts[0].ClusterId, func() error {
		var err error
		verdict, err = m.inner.PrepareNodes(ctx, clusterName, hosts)
		return err
	})
	return verdict, err
}

// PrepareNodesForPool implements Manager.PrepareNodesForPool
func (m *serializedManager) PrepareNodesForPool(ctx context.Context, hosts []*host.Record, poolRecord *pool.Record) (*Verdict, error) {
	var verdict *Verdict
	err := m.withClusterLock(ctx, poolRecord.ClusterId, func() error {
		var err error
		verdict, err = m.inner.PrepareNodesForPool(ctx, hosts, poolRecord)
		return err
	})
	return verdict, err
}

func (m *serializedManager) withClusterLock(ctx context.Context, clusterId uint64, fn func() error) error {
	key := fmt.Sprintf("cluster/%d", clusterId)

	mu := m.clusterLocks.Get([]byte(key))
	mu.Lock()
	defer mu.Unlock()

	if m.distributedLocks == nil || !m.conf.useDistributedLock.Get(ctx) {
		return fn()
	}

	distributedLock, err := m.distributedLocks.Create(ctx, key)
	if err != nil {
		return errors.Wrap(err, "error creating distributed lock")
	}

	lostCh, cancel, err := lock.AcquireWithin(ctx, distributedLock, m.conf.lockTimeout.Get(ctx))
	if err != nil {
		return errors.Wrapf(err, "error acquiring distributed lock for cluster %d", clusterId)
	}
	defer cancel()
	defer distributedLock.Unlock(ctx)

	err = fn()

	select {
	case <-lostCh:
		m.log.WithField("cluster", clusterId).Warn("distributed lock was lost during preparation")
	default:
	}

	return err
}
