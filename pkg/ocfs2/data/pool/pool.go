package pool

import (
	"time"

	"github.com/pkg/errors"
)

type Type uint8

const (
	TypeUnknown Type = iota
	TypeNetworkFilesystem
	TypeFilesystem
	TypeLVM
	TypeIscsiLUN
	TypeOCFS2
	TypeRBD
	TypeSharedMountPoint
)

type Record struct {
	Id uint64

	Name string
	Type Type

	// ClusterId is zero for pools scoped to an entire data center
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

	if r.Type == TypeUnknown || r.Type > TypeSharedMountPoint {
		return errors.New("invalid pool type")
	}

	if r.DataCenterId == 0 {
		return errors.New("data center id is required")
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		Name: r.Name,
		Type: r.Type,

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

	dst.ClusterId = r.ClusterId
	dst.PodId = r.PodId
	dst.DataCenterId = r.DataCenterId

	dst.CreatedAt = r.CreatedAt
}

func (t Type) String() string {
	switch t {
	case TypeNetworkFilesystem:
		return "nfs"
	case TypeFilesystem:
		return "filesystem"
	case TypeLVM:
		return "lvm"
	case TypeIscsiLUN:
		return "iscsi_lun"
	case TypeOCFS2:
		return "ocfs2"
	case TypeRBD:
		return "rbd"
	case TypeSharedMountPoint:
		return "shared_mount_point"
	}
	return "unknown"
}
