package resource

import (
	"context"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

// Listener reacts to resource lifecycle events. Implementations must provide
// every hook, even the ones they don't act on.
//
// Errors returned from a "before" hook veto the operation. Errors from an
// "after" hook are logged, since the operation has already completed.
type Listener interface {
	Name() string

	ProcessDiscoverEventBefore(ctx context.Context, req *DiscoverRequest) error
	ProcessDiscoverEventAfter(ctx context.Context, resources []*DiscoveredResource) error

	ProcessDeleteHostEventBefore(ctx context.Context, record *host.Record) error
	ProcessDeleteHostEventAfter(ctx context.Context, record *host.Record) error

	ProcessCancelMaintenanceEventBefore(ctx context.Context, hostId uint64) error
	ProcessCancelMaintenanceEventAfter(ctx context.Context, hostId uint64) error

	ProcessPrepareMaintenanceEventBefore(ctx context.Context, hostId uint64) error
	ProcessPrepareMaintenanceEventAfter(ctx context.Context, hostId uint64) error
}

type handler func(ctx context.Context, l Listener, e *Event) error

var handlers = map[EventKind]handler{
	EventDiscoverBefore: func(ctx context.Context, l Listener, e *Event) error {
		return l.ProcessDiscoverEventBefore(ctx, e.Discover)
	},
	EventDiscoverAfter: func(ctx context.Context, l Listener, e *Event) error {
		return l.ProcessDiscoverEventAfter(ctx, e.Resources)
	},
	EventDeleteHostBefore: func(ctx context.Context, l Listener, e *Event) error {
		return l.ProcessDeleteHostEventBefore(ctx, e.Host)
	},
	EventDeleteHostAfter: func(ctx context.Context, l Listener, e *Event) error {
		return l.ProcessDeleteHostEventAfter(ctx, e.Host)
	},
	EventCancelMaintenanceBefore: func(ctx context.Context, l Listener, e *Event) error {
		return l.ProcessCancelMaintenanceEventBefore(ctx, e.HostId)
	},
	EventCancelMaintenanceAfter: func(ctx context.Context, l Listener, e *Event) error {
		return l.ProcessCancelMaintenanceEventAfter(ctx, e.HostId)
	},
	EventPrepareMaintenanceBefore: func(ctx context.Context, l Listener, e *Event) error {
		return l.ProcessPrepareMaintenanceEventBefore(ctx, e.HostId)
	},
	EventPrepareMaintenanceAfter: func(ctx context.Context, l Listener, e *Event) error {
		return l.ProcessPrepareMaintenanceEventAfter(ctx, e.HostId)
	},
}
