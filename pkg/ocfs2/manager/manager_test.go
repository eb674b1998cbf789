package manager

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/agent"
	agent_memory "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/agent/memory"
	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/membership"
	"github.com/ovmcloud/ocfs2-manager/pkg/pointer"
	_ "github.com/ovmcloud/ocfs2-manager/pkg/testutil"
)

func TestPrepareNodes_AllSucceed(t *testing.T) {
	env := setup(t)

	hosts := env.newHosts(1, 2, 3)

	verdict, err := env.manager.PrepareNodes(env.ctx, "cluster1", hosts)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Equal(t, []uint64{1, 2, 3}, verdict.Prepared)
	assert.Empty(t, verdict.Skipped)

	sent := env.dispatcher.GetSent()
	require.Len(t, sent, 3)
	expected := membership.New("cluster1", hosts)
	for i, cmd := range sent {
		assert.Equal(t, hosts[i].Id, cmd.HostId)

		// Every host receives the full membership
		assert.Equal(t, expected.ClusterName, cmd.Command.ClusterName)
		assert.Equal(t, expected.Nodes, cmd.Command.Nodes)
	}
}

func TestPrepareNodes_FailFast(t *testing.T) {
	env := setup(t)

	hosts := env.newHosts(1, 2, 3)
	env.dispatcher.SetAnswer(2, &agent.Answer{Result: false, Details: "heartbeat region busy"})

	verdict, err := env.manager.PrepareNodes(env.ctx, "cluster1", hosts)
	require.NoError(t, err)
	assert.False(t, verdict.Success)
	assert.EqualValues(t, 2, verdict.FailedHostId)
	assert.Equal(t, "heartbeat region busy", verdict.Details)
	assert.Equal(t, []uint64{1}, verdict.Prepared)

	assert.Equal(t, []uint64{1, 2}, env.dispatcher.GetSentHostIds())
}

func TestPrepareNodes_UnreachableHostsAreSkipped(t *testing.T) {
	env := setup(t)

	hosts := env.newHosts(1, 2)
	env.dispatcher.SetUnreachable(1)

	verdict, err := env.manager.PrepareNodes(env.ctx, "cluster1", hosts)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Equal(t, []uint64{2}, verdict.Prepared)
	assert.Equal(t, []uint64{1}, verdict.Skipped)

	assert.Equal(t, []uint64{2}, env.dispatcher.GetSentHostIds())
}

func TestPrepareNodes_WrappedUnreachableIsSkipped(t *testing.T) {
	env := setup(t)

	hosts := env.newHosts(1, 2)
	env.dispatcher.SetError(1, errors.Wrap(agent.ErrUnreachable, "connection refused"))

	verdict, err := env.manager.PrepareNodes(env.ctx, "cluster1", hosts)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Equal(t, []uint64{1}, verdict.Skipped)
	assert.Equal(t, []uint64{2}, verdict.Prepared)
}

func TestPrepareNodes_DispatchErrorIsHardFailure(t *testing.T) {
	env := setup(t)

	hosts := env.newHosts(1, 2)
	env.dispatcher.SetError(1, errors.New("500 status code returned"))

	verdict, err := env.manager.PrepareNodes(env.ctx, "cluster1", hosts)
	require.NoError(t, err)
	assert.False(t, verdict.Success)
	assert.EqualValues(t, 1, verdict.FailedHostId)
	assert.Equal(t, "500 status code returned", verdict.Details)
	assert.Equal(t, []uint64{1}, env.dispatcher.GetSentHostIds())
}

func TestPrepareNodes_RunsToCompletionAfterCancellation(t *testing.T) {
	env := setup(t)

	hosts := env.newHosts(1, 2, 3)

	ctx, cancel := context.WithCancel(env.ctx)
	defer cancel()
	env.dispatcher.OnSend(func(hostId uint64) {
		if hostId == 1 {
			cancel()
		}
	})

	verdict, err := env.manager.PrepareNodes(ctx, "cluster1", hosts)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Equal(t, []uint64{1, 2, 3}, verdict.Prepared)
	assert.Empty(t, verdict.Skipped)
	assert.Equal(t, []uint64{1, 2, 3}, env.dispatcher.GetSentHostIds())
}

func TestPrepareNodes_EmptyHosts(t *testing.T) {
	env := setup(t)

	verdict, err := env.manager.PrepareNodes(env.ctx, "cluster1", nil)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Empty(t, env.dispatcher.GetSent())
}

func TestPrepareNodes_EmptyClusterName(t *testing.T) {
	env := setup(t)

	_, err := env.manager.PrepareNodes(env.ctx, "", env.newHosts(1))
	assert.Equal(t, ErrEmptyClusterName, err)
	assert.Empty(t, env.dispatcher.GetSent())
}

func TestPrepareNodesForCluster_HappyPath(t *testing.T) {
	env := setup(t)

	env.putCluster(t, 42, nil)
	for _, id := range []uint64{3, 1, 2} {
		env.putHost(t, id, 42, host.TypeRouting, host.StatusUp)
	}
	env.putHost(t, 4, 42, host.TypeRouting, host.StatusDisconnected)
	env.putHost(t, 5, 42, host.TypeStorage, host.StatusUp)
	env.putHost(t, 6, 43, host.TypeRouting, host.StatusUp)

	verdict, err := env.manager.PrepareNodesForCluster(env.ctx, 42)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Equal(t, "cluster42", verdict.ClusterName)

	// Hosts in any status are included
	assert.Equal(t, []uint64{1, 2, 3, 4}, env.dispatcher.GetSentHostIds())

	sent := env.dispatcher.GetSent()
	require.NotEmpty(t, sent)
	assert.Equal(t, "cluster42", sent[0].Command.ClusterName)
	require.Len(t, sent[0].Command.Nodes, 4)
	for i, node := range sent[0].Command.Nodes {
		assert.Equal(t, i, node.Ordinal)
		assert.Equal(t, fmt.Sprintf("10.0.0.%d", i+1), node.Address)
		assert.Equal(t, fmt.Sprintf("ovm_10_0_0_%d", i+1), node.Name)
	}
}

func TestPrepareNodesForCluster_NamedCluster(t *testing.T) {
	env := setup(t)

	env.putCluster(t, 42, pointer.To("prod-ocfs2"))
	env.putHost(t, 1, 42, host.TypeRouting, host.StatusUp)

	verdict, err := env.manager.PrepareNodesForCluster(env.ctx, 42)
	require.NoError(t, err)
	assert.True(t, verdict.Success)

	sent := env.dispatcher.GetSent()
	require.Len(t, sent, 1)
	assert.Equal(t, "prod-ocfs2", sent[0].Command.ClusterName)
}

func TestPrepareNodesForCluster_NoHosts(t *testing.T) {
	env := setup(t)

	env.putCluster(t, 42, nil)

	verdict, err := env.manager.PrepareNodesForCluster(env.ctx, 42)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Empty(t, env.dispatcher.GetSent())
}

func TestPrepareNodesForCluster_ClusterNotFound(t *testing.T) {
	env := setup(t)

	env.putHost(t, 1, 42, host.TypeRouting, host.StatusUp)

	_, err := env.manager.PrepareNodesForCluster(env.ctx, 42)
	assert.True(t, errors.Is(err, ErrClusterNotFound))
	assert.Contains(t, err.Error(), "42")
	assert.Empty(t, env.dispatcher.GetSent())
}

func TestPrepareNodesForPool(t *testing.T) {
	env := setup(t)

	env.putCluster(t, 42, nil)
	hosts := env.newHosts(1, 2)

	nfsPool := &pool.Record{Id: 1, Name: "nfs", Type: pool.TypeNetworkFilesystem, ClusterId: 42, PodId: 1, DataCenterId: 1}
	_, err := env.manager.PrepareNodesForPool(env.ctx, hosts, nfsPool)
	assert.True(t, errors.Is(err, ErrNotOCFS2Pool))

	orphanedPool := &pool.Record{Id: 2, Name: "orphan", Type: pool.TypeOCFS2, ClusterId: 99, PodId: 1, DataCenterId: 1}
	_, err = env.manager.PrepareNodesForPool(env.ctx, hosts, orphanedPool)
	assert.True(t, errors.Is(err, ErrClusterNotFound))

	assert.Empty(t, env.dispatcher.GetSent())

	ocfs2Pool := &pool.Record{Id: 3, Name: "shared", Type: pool.TypeOCFS2, ClusterId: 42, PodId: 1, DataCenterId: 1}
	verdict, err := env.manager.PrepareNodesForPool(env.ctx, hosts, ocfs2Pool)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Equal(t, "cluster42", verdict.ClusterName)
	assert.Equal(t, []uint64{1, 2}, env.dispatcher.GetSentHostIds())

	env.dispatcher.Reset()

	verdict, err = env.manager.PrepareNodesForPool(env.ctx, nil, ocfs2Pool)
	require.NoError(t, err)
	assert.True(t, verdict.Success)
	assert.Empty(t, env.dispatcher.GetSent())
}

type testEnv struct {
	ctx        context.Context
	data       ocfs2_data.Provider
	dispatcher *agent_memory.Dispatcher
	manager    Manager
}

func setup(t *testing.T) *testEnv {
	data := ocfs2_data.NewTestDataProvider()
	dispatcher := agent_memory.NewDispatcher()
	return &testEnv{
		ctx:        context.Background(),
		data:       data,
		dispatcher: dispatcher,
		manager:    NewManager(data, dispatcher),
	}
}

func (e *testEnv) newHosts(ids ...uint64) []*host.Record {
	var res []*host.Record
	for _, id := range ids {
		res = append(res, newHost(id, 42, host.TypeRouting, host.StatusUp))
	}
	return res
}

func (e *testEnv) putCluster(t *testing.T, id uint64, name *string) {
	require.NoError(t, e.data.PutCluster(e.ctx, &cluster.Record{
		Id:           id,
		Name:         name,
		PodId:        1,
		DataCenterId: 1,
	}))
}

func (e *testEnv) putHost(t *testing.T, id, clusterId uint64, hostType host.Type, status host.Status) {
	require.NoError(t, e.data.PutHost(e.ctx, newHost(id, clusterId, hostType, status)))
}

func newHost(id, clusterId uint64, hostType host.Type, status host.Status) *host.Record {
	return &host.Record{
		Id:               id,
		Name:             fmt.Sprintf("hv%d", id),
		Type:             hostType,
		Status:           status,
		PrivateIpAddress: fmt.Sprintf("10.0.0.%d", id),
		ClusterId:        clusterId,
		PodId:            1,
		DataCenterId:     1,
	}
}
