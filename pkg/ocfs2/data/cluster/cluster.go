package cluster

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/ovmcloud/ocfs2-manager/pkg/pointer"
)

type Record struct {
	Id uint64

	// Name is optional. Clusters created without one are addressed by their
	// id based default name, see ClusterName.
	Name *string

	PodId        uint64
	DataCenterId uint64

	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if r.Id == 0 {
		return errors.New("id is required")
	}

	if r.PodId == 0 {
		return errors.New("pod id is required")
	}

	if r.DataCenterId == 0 {
		return errors.New("data center id is required")
	}

	return nil
}

// ClusterName returns the name the shared filesystem service on each host
// knows this cluster by.
func (r *Record) ClusterName() string {
	if r.Name == nil || len(*r.Name) == 0 {
		return fmt.Sprintf("cluster%d", r.Id)
	}
	return *r.Name
}

func (r *Record) Clone() Record {
	return Record{
		Id: r.Id,

		Name: pointer.Copy(r.Name),

		PodId:        r.PodId,
		DataCenterId: r.DataCenterId,

		CreatedAt: r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id

	dst.Name = pointer.Copy(r.Name)

	dst.PodId = r.PodId
	dst.DataCenterId = r.DataCenterId

	dst.CreatedAt = r.CreatedAt
}
