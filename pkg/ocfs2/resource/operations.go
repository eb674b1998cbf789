package resource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

// ErrRemovalVetoed is returned by RemoveHost when a "before" listener rejects
// the removal. The listener's error is wrapped alongside it.
var ErrRemovalVetoed = errors.New("host removal vetoed")

// RemoveHost deletes a host from the directory, notifying listeners before
// and after. A failing "before" listener vetoes the removal. Failures of
// "after" listeners are logged and never undo the removal.
//
// Returns host.ErrNotFound if the host doesn't exist.
func RemoveHost(ctx context.Context, data ocfs2_data.Provider, bus EventBus, hostId uint64) (*host.Record, error) {
	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"method": "RemoveHost",
		"host":   hostId,
	})

	record, err := data.GetHost(ctx, hostId)
	if err != nil {
		return nil, err
	}

	if err := bus.Fire(ctx, NewDeleteHostEvent(EventDeleteHostBefore, record)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemovalVetoed, err)
	}

	if err := data.DeleteHost(ctx, hostId); err != nil {
		return nil, err
	}

	log.WithField("cluster", record.ClusterId).Info("host removed")

	if err := bus.Fire(ctx, NewDeleteHostEvent(EventDeleteHostAfter, record)); err != nil {
		log.WithError(err).Warn("failure notifying listeners of host removal")
	}

	return record, nil
}

// AddHosts records newly discovered hosts in a single transaction and
// notifies listeners. Hosts that already exist have their status and address
// refreshed instead.
func AddHosts(ctx context.Context, data ocfs2_data.Provider, bus EventBus, records []*host.Record) error {
	log := logrus.StandardLogger().WithField("method", "AddHosts")

	var resources []*DiscoveredResource
	err := data.ExecuteInTx(ctx, sql.LevelDefault, func(ctx context.Context) error {
		for _, record := range records {
			if err := saveHost(ctx, data, record); err != nil {
				return errors.Wrapf(err, "error saving host %d", record.Id)
			}

			resources = append(resources, &DiscoveredResource{
				Host: record,
				Details: map[string]string{
					"name":    record.Name,
					"address": record.PrivateIpAddress,
				},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(resources) == 0 {
		return nil
	}

	if err := bus.Fire(ctx, NewDiscoverAfterEvent(resources)); err != nil {
		log.WithError(err).Warn("failure notifying listeners of discovered hosts")
	}
	return nil
}

// saveHost avoids relying on a failed insert, which would abort the
// surrounding transaction
func saveHost(ctx context.Context, data ocfs2_data.Provider, record *host.Record) error {
	_, err := data.GetHost(ctx, record.Id)
	switch err {
	case nil:
		return data.UpdateHost(ctx, record)
	case host.ErrNotFound:
		return data.PutHost(ctx, record)
	default:
		return err
	}
}
