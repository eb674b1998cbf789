package manager

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ovmcloud/ocfs2-manager/pkg/metrics"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/agent"
	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/membership"
)

const (
	metricsStructName = "manager.manager"

	prepareEventName       = "OCFS2PrepareNodes"
	skippedHostsMetricName = "OCFS2PrepareNodes.SkippedHosts"
)

var (
	ErrClusterNotFound  = errors.New("cluster not found")
	ErrNotOCFS2Pool     = errors.New("storage pool is not an ocfs2 pool")
	ErrEmptyClusterName = errors.New("cluster name is required")
)

// Manager keeps the ocfs2 membership configuration on every host of a cluster
// in sync.
type Manager interface {
	// PrepareNodesForCluster pushes the current membership of a cluster to all
	// of its routing hosts, regardless of host status. A cluster without hosts
	// trivially succeeds.
	//
	// Returns ErrClusterNotFound if the cluster doesn't exist.
	PrepareNodesForCluster(ctx context.Context, clusterId uint64) (*Verdict, error)

	// PrepareNodes pushes a membership built from hosts to each host in order,
	// stopping at the first host whose agent rejects the command. Unreachable
	// hosts are skipped.
	PrepareNodes(ctx context.Context, clusterName string, hosts []*host.Record) (*Verdict, error)

	// PrepareNodesForPool is PrepareNodes for the cluster owning an ocfs2
	// storage pool.
	//
	// Returns ErrNotOCFS2Pool for any other pool type, and ErrClusterNotFound
	// if the pool's cluster doesn't exist.
	PrepareNodesForPool(ctx context.Context, hosts []*host.Record, pool *pool.Record) (*Verdict, error)
}

type manager struct {
	log        *logrus.Entry
	data       ocfs2_data.Provider
	dispatcher agent.Dispatcher
}

func NewManager(data ocfs2_data.Provider, dispatcher agent.Dispatcher) Manager {
	return &manager{
		log:        logrus.StandardLogger().WithField("type", "ocfs2/manager"),
		data:       data,
		dispatcher: dispatcher,
	}
}

// PrepareNodesForCluster implements Manager.PrepareNodesForCluster
func (m *manager) PrepareNodesForCluster(ctx context.Context, clusterId uint64) (*Verdict, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "PrepareNodesForCluster")
	tracer.AddAttribute("cluster", clusterId)
	defer tracer.End()

	log := m.log.WithFields(logrus.Fields{
		"method":  "PrepareNodesForCluster",
		"cluster": clusterId,
	})

	verdict, err := func() (*Verdict, error) {
		clusterRecord, err := m.getCluster(ctx, clusterId)
		if err != nil {
			return nil, err
		}

		hosts, err := m.data.GetAllHostsByTypeInAllStatus(
			ctx,
			host.TypeRouting,
			clusterRecord.Id,
			clusterRecord.PodId,
			clusterRecord.DataCenterId,
		)
		if err == host.ErrNotFound {
			log.Debug("cluster has no hosts, nothing to prepare")
			return newSuccessVerdict(clusterRecord.ClusterName()), nil
		} else if err != nil {
			return nil, errors.Wrap(err, "error getting cluster hosts")
		}

		return m.PrepareNodes(ctx, clusterRecord.ClusterName(), hosts)
	}()

	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return verdict, nil
}

// PrepareNodesForPool implements Manager.PrepareNodesForPool
func (m *manager) PrepareNodesForPool(ctx context.Context, hosts []*host.Record, poolRecord *pool.Record) (*Verdict, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "PrepareNodesForPool")
	tracer.AddAttribute("pool", poolRecord.Id)
	defer tracer.End()

	verdict, err := func() (*Verdict, error) {
		if poolRecord.Type != pool.TypeOCFS2 {
			return nil, errors.Wrapf(ErrNotOCFS2Pool, "pool %d is of type %s", poolRecord.Id, poolRecord.Type)
		}

		clusterRecord, err := m.getCluster(ctx, poolRecord.ClusterId)
		if err != nil {
			return nil, err
		}

		if len(hosts) == 0 {
			return newSuccessVerdict(clusterRecord.ClusterName()), nil
		}

		return m.PrepareNodes(ctx, clusterRecord.ClusterName(), hosts)
	}()

	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return verdict, nil
}

// PrepareNodes implements Manager.PrepareNodes
func (m *manager) PrepareNodes(ctx context.Context, clusterName string, hosts []*host.Record) (*Verdict, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "PrepareNodes")
	tracer.AddAttributes(map[string]interface{}{
		"cluster_name": clusterName,
		"hosts":        len(hosts),
	})
	defer tracer.End()

	log := m.log.WithFields(logrus.Fields{
		"method":       "PrepareNodes",
		"cluster_name": clusterName,
	})

	if len(clusterName) == 0 {
		tracer.OnError(ErrEmptyClusterName)
		return nil, ErrEmptyClusterName
	}

	// Once dispatching starts it runs to the end of the host list. Each send
	// is bounded by the dispatcher's own timeout.
	ctx = context.WithoutCancel(ctx)

	cmd := agent.NewPrepareNodesCommand(membership.New(clusterName, hosts))

	verdict := newSuccessVerdict(clusterName)
	for _, h := range hosts {
		log := log.WithField("host", h.Id)

		answer, err := m.dispatcher.Send(ctx, h.Id, cmd)
		if errors.Is(err, agent.ErrUnreachable) {
			log.Debug("host is not addressable, skipping")
			verdict.Skipped = append(verdict.Skipped, h.Id)
			continue
		} else if err != nil {
			log.WithError(err).Warn("failure dispatching prepare nodes command")
			verdict.fail(h.Id, err.Error())
			break
		}

		if !answer.Result {
			log.WithField("details", answer.Details).Warn("host failed to prepare ocfs2 nodes")
			verdict.fail(h.Id, answer.Details)
			break
		}

		verdict.Prepared = append(verdict.Prepared, h.Id)
	}

	recordPrepareEvent(ctx, verdict, len(hosts))
	return verdict, nil
}

func (m *manager) getCluster(ctx context.Context, clusterId uint64) (*cluster.Record, error) {
	record, err := m.data.GetCluster(ctx, clusterId)
	if err == cluster.ErrNotFound {
		return nil, errors.Wrapf(ErrClusterNotFound, "cluster %d", clusterId)
	} else if err != nil {
		return nil, errors.Wrap(err, "error getting cluster record")
	}
	return record, nil
}

func recordPrepareEvent(ctx context.Context, verdict *Verdict, hostCount int) {
	kvs := map[string]interface{}{
		"cluster_name": verdict.ClusterName,
		"hosts":        hostCount,
		"prepared":     len(verdict.Prepared),
		"skipped":      len(verdict.Skipped),
		"success":      verdict.Success,
	}
	if !verdict.Success {
		kvs["failed_host"] = verdict.FailedHostId
	}
	metrics.RecordEvent(ctx, prepareEventName, kvs)

	if len(verdict.Skipped) > 0 {
		metrics.RecordCount(ctx, skippedHostsMetricName, uint64(len(verdict.Skipped)))
	}
}
