package host

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

type Type uint8

const (
	TypeUnknown Type = iota
	TypeRouting      // Hypervisor hosts that mount the shared filesystem
	TypeStorage
	TypeSecondaryStorage
	TypeConsoleProxy
)

type Status uint8

const (
	StatusUnknown Status = iota
	StatusCreating
	StatusConnecting
	StatusUp
	StatusDown
	StatusDisconnected
	StatusAlert
	StatusRemoved
	StatusError
	StatusRebalancing
	StatusMaintenance
)

type Record struct {
	Id uint64

	Name   string
	Type   Type
	Status Status

	// PrivateIpAddress is the dotted-quad address used both to reach the
	// host's agent and as the host's identity within the shared filesystem
	// cluster.
	PrivateIpAddress string

	ClusterId    uint64
	PodId        uint64
	DataCenterId uint64

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if r.Id == 0 {
		return errors.New("id is required")
	}

	if len(r.Name) == 0 {
		return errors.New("name is required")
	}

	if r.Type == TypeUnknown || r.Type > TypeConsoleProxy {
		return errors.New("invalid host type")
	}

	if r.Status == StatusUnknown || r.Status > StatusMaintenance {
		return errors.New("invalid host status")
	}

	parsed := net.ParseIP(r.PrivateIpAddress)
	if parsed == nil || parsed.To4() == nil || parsed.String() != r.PrivateIpAddress {
		return errors.Errorf("private ip address %q is not a dotted-quad ipv4 address", r.PrivateIpAddress)
	}

	if r.ClusterId == 0 {
		return errors.New("cluster id is required")
	}

	if r.PodId == 0 {
		return errors.New("pod id is required")
	}

	if r.DataCenterId == 0 {
		return errors.New("data center id is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		Name:   r.Name,
		Type:   r.Type,
		Status: r.Status,

		PrivateIpAddress: r.PrivateIpAddress,

		ClusterId:    r.ClusterId,
		PodId:        r.PodId,
		DataCenterId: r.DataCenterId,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Name = r.Name
	dst.Type = r.Type
	dst.Status = r.Status

	dst.PrivateIpAddress = r.PrivateIpAddress

	dst.ClusterId = r.ClusterId
	dst.PodId = r.PodId
	dst.DataCenterId = r.DataCenterId

	dst.CreatedAt = r.CreatedAt
}

func (t Type) String() string {
	switch t {
	case TypeRouting:
		return "routing"
	case TypeStorage:
		return "storage"
	case TypeSecondaryStorage:
		return "secondary_storage"
	case TypeConsoleProxy:
		return "console_proxy"
	}
	return "unknown"
}

func (s Status) String() string {
	switch s {
	case StatusCreating:
		return "creating"
	case StatusConnecting:
		return "connecting"
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	case StatusDisconnected:
		return "disconnected"
	case StatusAlert:
		return "alert"
	case StatusRemoved:
		return "removed"
	case StatusError:
		return "error"
	case StatusRebalancing:
		return "rebalancing"
	case StatusMaintenance:
		return "maintenance"
	}
	return "unknown"
}
