package async_listener

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"github.com/ovmcloud/ocfs2-manager/pkg/metrics"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/manager"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/resource"
)

const (
	listenerName = "ocfs2-membership"

	metricsStructName = "ocfs2.async.listener"
)

// Listener keeps OCFS2 cluster membership in sync after a host has been
// removed. It only subscribes to the after-delete event. All other hooks are
// no-ops.
type Listener struct {
	log     *logrus.Entry
	manager manager.Manager
	bus     resource.EventBus

	running atomic.Bool
}

func New(manager manager.Manager, bus resource.EventBus) *Listener {
	return &Listener{
		log:     logrus.StandardLogger().WithField("service", listenerName),
		manager: manager,
		bus:     bus,
	}
}

// Name implements resource.Listener.Name
func (l *Listener) Name() string {
	return listenerName
}

// Start subscribes the listener to host removal events
func (l *Listener) Start() error {
	if err := l.bus.Register(l, resource.EventDeleteHostAfter); err != nil {
		return err
	}
	l.running.Store(true)
	return nil
}

// Stop unsubscribes the listener. Events that are already being delivered
// are ignored once Stop has been called.
func (l *Listener) Stop() {
	l.running.Store(false)
	l.bus.Unregister(l)
}

// ProcessDeleteHostEventAfter re-prepares the remaining nodes of the removed
// host's cluster. Failures are logged and never returned, since the host is
// already gone.
func (l *Listener) ProcessDeleteHostEventAfter(ctx context.Context, record *host.Record) error {
	if !l.running.Load() {
		return nil
	}

	if record == nil {
		l.log.Warn("received host removal event without a host")
		return nil
	}

	// The removal already happened. The event source's cancellation must not
	// cut the cascading preparation short.
	ctx, endTransaction := l.startTransaction(context.WithoutCancel(ctx))
	defer endTransaction()

	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ProcessDeleteHostEventAfter")
	defer tracer.End()

	log := l.log.WithFields(logrus.Fields{
		"method":  "ProcessDeleteHostEventAfter",
		"host":    record.Id,
		"zone":    record.DataCenterId,
		"pod":     record.PodId,
		"cluster": record.ClusterId,
	})

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			tracer.OnError(err)
			log.WithError(err).Warn("unable to prepare ocfs2 nodes after host removal")
		}
	}()

	verdict, err := l.manager.PrepareNodesForCluster(ctx, record.ClusterId)
	if err != nil {
		tracer.OnError(err)
		log.WithError(err).Warn("unable to prepare ocfs2 nodes after host removal")
		return nil
	}

	if !verdict.Success {
		log.WithFields(logrus.Fields{
			"failed_host": verdict.FailedHostId,
			"details":     verdict.Details,
		}).Warn("ocfs2 nodes were not prepared after host removal")
		return nil
	}

	log.WithFields(logrus.Fields{
		"prepared": len(verdict.Prepared),
		"skipped":  len(verdict.Skipped),
	}).Debug("ocfs2 nodes prepared after host removal")
	return nil
}

// startTransaction starts a New Relic transaction when the event arrives
// outside of one, which is the case for events fired by background watchers.
func (l *Listener) startTransaction(ctx context.Context) (context.Context, func()) {
	nr, ok := ctx.Value(metrics.NewRelicContextKey{}).(*newrelic.Application)
	if !ok || nr == nil || newrelic.FromContext(ctx) != nil {
		return ctx, func() {}
	}

	m := nr.StartTransaction("async__ocfs2_listener__delete_host_after")
	return newrelic.NewContext(ctx, m), m.End
}

func (l *Listener) ProcessDiscoverEventBefore(ctx context.Context, req *resource.DiscoverRequest) error {
	return nil
}

func (l *Listener) ProcessDiscoverEventAfter(ctx context.Context, resources []*resource.DiscoveredResource) error {
	return nil
}

func (l *Listener) ProcessDeleteHostEventBefore(ctx context.Context, record *host.Record) error {
	return nil
}

func (l *Listener) ProcessCancelMaintenanceEventBefore(ctx context.Context, hostId uint64) error {
	return nil
}

func (l *Listener) ProcessCancelMaintenanceEventAfter(ctx context.Context, hostId uint64) error {
	return nil
}

func (l *Listener) ProcessPrepareMaintenanceEventBefore(ctx context.Context, hostId uint64) error {
	return nil
}

func (l *Listener) ProcessPrepareMaintenanceEventAfter(ctx context.Context, hostId uint64) error {
	return nil
}
