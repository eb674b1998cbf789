package etcd

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	v3 "go.etcd.io/etcd/client/v3"

	etcd_util "github.com/ovmcloud/ocfs2-manager/pkg/etcd"
	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/resource"
)

// HostWatcher turns host registrations in etcd into resource lifecycle
// operations. A registration that appears is added to the directory, and one
// that disappears removes its host.
type HostWatcher struct {
	log    *logrus.Entry
	client *v3.Client
	prefix string
	data   ocfs2_data.Provider
	bus    resource.EventBus
}

func NewHostWatcher(client *v3.Client, prefix string, data ocfs2_data.Provider, bus resource.EventBus) *HostWatcher {
	return &HostWatcher{
		log: logrus.StandardLogger().WithFields(logrus.Fields{
			"type":   "resource/etcd/HostWatcher",
			"prefix": prefix,
		}),
		client: client,
		prefix: prefix,
		data:   data,
		bus:    bus,
	}
}

// Run processes registration changes until ctx is cancelled. The first
// snapshot only adds hosts. Hosts missing from it are left alone, since their
// absence may predate the watcher.
func (w *HostWatcher) Run(ctx context.Context) error {
	snapshots := etcd_util.WatchPrefix(ctx, w.client, w.prefix, parseRegistration)

	var previous map[uint64]*registration
	for snapshot := range snapshots {
		added, removed := diff(previous, snapshot.Tree)
		previous = snapshot.Tree

		if len(added) > 0 || len(removed) > 0 {
			w.log.WithFields(logrus.Fields{
				"revision": snapshot.Revision,
				"added":    len(added),
				"removed":  len(removed),
			}).Debug("host registrations changed")
		}

		w.handleRemoved(ctx, removed)
		w.handleAdded(ctx, snapshot.Tree, added)
	}

	return ctx.Err()
}

func (w *HostWatcher) handleAdded(ctx context.Context, tree map[uint64]*registration, added []uint64) {
	if len(added) == 0 {
		return
	}

	records := make([]*host.Record, 0, len(added))
	for _, hostId := range added {
		records = append(records, tree[hostId].toHostRecord())
	}

	if err := resource.AddHosts(ctx, w.data, w.bus, records); err != nil {
		w.log.WithError(err).Warn("failure adding registered hosts")
	}
}

func (w *HostWatcher) handleRemoved(ctx context.Context, removed []uint64) {
	for _, hostId := range removed {
		log := w.log.WithField("host", hostId)

		_, err := resource.RemoveHost(ctx, w.data, w.bus, hostId)
		if err == host.ErrNotFound {
			log.Debug("deregistered host is already removed")
		} else if err != nil {
			log.WithError(err).Warn("failure removing deregistered host")
		}
	}
}

// diff returns sorted host ids that were added to and removed from the tree
func diff(previous, current map[uint64]*registration) (added, removed []uint64) {
	for hostId, r := range current {
		if prev, ok := previous[hostId]; !ok || *prev != *r {
			added = append(added, hostId)
		}
	}

	for hostId := range previous {
		if _, ok := current[hostId]; !ok {
			removed = append(removed, hostId)
		}
	}

	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return added, removed
}
