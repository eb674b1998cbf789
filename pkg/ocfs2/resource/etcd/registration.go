package etcd

import (
	"context"
	"encoding/json"
	"path"
	"strconv"
	"time"

	"github.com/pkg/errors"
	v3 "go.etcd.io/etcd/client/v3"

	etcd_util "github.com/ovmcloud/ocfs2-manager/pkg/etcd"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

// registration is the value a host agent keeps under <prefix>/<host id>
// while it is alive
type registration struct {
	Id               uint64 `json:"id"`
	Name             string `json:"name"`
	Type             uint8  `json:"type"`
	PrivateIpAddress string `json:"private_ip_address"`
	ClusterId        uint64 `json:"cluster_id"`
	PodId            uint64 `json:"pod_id"`
	DataCenterId     uint64 `json:"data_center_id"`
}

func toRegistration(record *host.Record) *registration {
	return &registration{
		Id:               record.Id,
		Name:             record.Name,
		Type:             uint8(record.Type),
		PrivateIpAddress: record.PrivateIpAddress,
		ClusterId:        record.ClusterId,
		PodId:            record.PodId,
		DataCenterId:     record.DataCenterId,
	}
}

func (r *registration) toHostRecord() *host.Record {
	return &host.Record{
		Id:               r.Id,
		Name:             r.Name,
		Type:             host.Type(r.Type),
		Status:           host.StatusUp,
		PrivateIpAddress: r.PrivateIpAddress,
		ClusterId:        r.ClusterId,
		PodId:            r.PodId,
		DataCenterId:     r.DataCenterId,
	}
}

// RegisterHost keeps a registration for the host under prefix for as long as
// the returned lease is open. Closing the lease, or the registering process
// dying, removes the host.
func RegisterHost(client *v3.Client, prefix string, record *host.Record, ttl time.Duration) (*etcd_util.PersistentLease, error) {
	if err := record.Validate(); err != nil {
		return nil, err
	}

	value, err := json.Marshal(toRegistration(record))
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling host registration")
	}

	return etcd_util.NewPersistentLease(client, hostKey(prefix, record.Id), string(value), ttl)
}

// WaitForRegistration blocks until the host's registration is visible under
// prefix, or gone when registered is false
func WaitForRegistration(ctx context.Context, client *v3.Client, prefix string, hostId uint64, registered bool) error {
	return etcd_util.WaitForKey(ctx, client, hostKey(prefix, hostId), registered)
}

func hostKey(prefix string, hostId uint64) string {
	return path.Join(prefix, strconv.FormatUint(hostId, 10))
}

func parseRegistration(k, v []byte) (uint64, *registration, error) {
	hostId, err := strconv.ParseUint(path.Base(string(k)), 10, 64)
	if err != nil {
		return 0, nil, errors.Wrap(err, "invalid host id in key")
	}

	var r registration
	if err := json.Unmarshal(v, &r); err != nil {
		return 0, nil, errors.Wrap(err, "invalid host registration")
	}

	if r.Id != hostId {
		return 0, nil, errors.Errorf("host id %d does not match key", r.Id)
	}

	if err := r.toHostRecord().Validate(); err != nil {
		return 0, nil, err
	}

	return hostId, &r, nil
}
