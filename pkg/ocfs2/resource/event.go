package resource

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventDiscoverBefore
	EventDiscoverAfter
	EventDeleteHostBefore
	EventDeleteHostAfter
	EventCancelMaintenanceBefore
	EventCancelMaintenanceAfter
	EventPrepareMaintenanceBefore
	EventPrepareMaintenanceAfter
)

// DiscoverRequest describes a request to discover hosts at a location
type DiscoverRequest struct {
	DataCenterId uint64
	PodId        uint64
	ClusterId    uint64

	Uri      *url.URL
	Username string
	Password string
	HostTags []string
}

// DiscoveredResource is a host found during discovery
type DiscoveredResource struct {
	Host    *host.Record
	Details map[string]string
}

// Event is a resource lifecycle notification. Which payload field is set
// depends on Kind.
type Event struct {
	Id   uuid.UUID
	Kind EventKind

	// EventDiscoverBefore
	Discover *DiscoverRequest

	// EventDiscoverAfter
	Resources []*DiscoveredResource

	// EventDeleteHostBefore and EventDeleteHostAfter
	Host *host.Record

	// Maintenance events
	HostId uint64
}

func NewDiscoverBeforeEvent(req *DiscoverRequest) *Event {
	return &Event{Id: uuid.New(), Kind: EventDiscoverBefore, Discover: req}
}

func NewDiscoverAfterEvent(resources []*DiscoveredResource) *Event {
	return &Event{Id: uuid.New(), Kind: EventDiscoverAfter, Resources: resources}
}

func NewDeleteHostEvent(kind EventKind, record *host.Record) *Event {
	return &Event{Id: uuid.New(), Kind: kind, Host: record}
}

func NewMaintenanceEvent(kind EventKind, hostId uint64) *Event {
	return &Event{Id: uuid.New(), Kind: kind, HostId: hostId}
}

func (k EventKind) String() string {
	switch k {
	case EventDiscoverBefore:
		return "discover_before"
	case EventDiscoverAfter:
		return "discover_after"
	case EventDeleteHostBefore:
		return "delete_host_before"
	case EventDeleteHostAfter:
		return "delete_host_after"
	case EventCancelMaintenanceBefore:
		return "cancel_maintenance_before"
	case EventCancelMaintenanceAfter:
		return "cancel_maintenance_after"
	case EventPrepareMaintenanceBefore:
		return "prepare_maintenance_before"
	case EventPrepareMaintenanceAfter:
		return "prepare_maintenance_after"
	}
	return "unknown"
}
