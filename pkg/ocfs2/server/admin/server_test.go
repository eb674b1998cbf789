package admin

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/agent"
	agent_memory "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/agent/memory"
	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/manager"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/resource"
	"github.com/ovmcloud/ocfs2-manager/pkg/pointer"
	"github.com/ovmcloud/ocfs2-manager/pkg/testutil"
)

func TestPrepareCluster_HappyPath(t *testing.T) {
	env, cleanup := setup(t, &testOverrides{})
	defer cleanup()

	env.putCluster(t, 1, pointer.To("prod"))
	env.putHost(t, 10, 1)
	env.putHost(t, 11, 1)

	resp, err := env.client.PrepareCluster(env.ctx, wrapperspb.UInt64(1))
	require.NoError(t, err)

	verdict, err := VerdictFromProto(resp)
	require.NoError(t, err)
	assert.Equal(t, "prod", verdict.ClusterName)
	assert.True(t, verdict.Success)
	assert.Equal(t, []uint64{10, 11}, verdict.Prepared)
	assert.Empty(t, verdict.Skipped)

	assert.Equal(t, []uint64{10, 11}, env.dispatcher.GetSentHostIds())
}

func TestPrepareCluster_FailedVerdict(t *testing.T) {
	env, cleanup := setup(t, &testOverrides{})
	defer cleanup()

	env.putCluster(t, 1, nil)
	env.putHost(t, 10, 1)
	env.putHost(t, 11, 1)
	env.dispatcher.SetUnreachable(10)
	env.dispatcher.SetAnswer(11, &agent.Answer{Result: false, Details: "heartbeat failure"})

	resp, err := env.client.PrepareCluster(env.ctx, wrapperspb.UInt64(1))
	require.NoError(t, err)

	expected, err := VerdictToProto(&manager.Verdict{
		ClusterName:  "cluster1",
		Success:      false,
		FailedHostId: 11,
		Details:      "heartbeat failure",
		Skipped:      []uint64{10},
	})
	require.NoError(t, err)
	require.NoError(t, testutil.ProtoEqual(expected, resp))
}

func TestPrepareCluster_Errors(t *testing.T) {
	env, cleanup := setup(t, &testOverrides{})
	defer cleanup()

	_, err := env.client.PrepareCluster(env.ctx, wrapperspb.UInt64(0))
	testutil.AssertStatusErrorWithCode(t, err, codes.InvalidArgument)

	_, err = env.client.PrepareCluster(env.ctx, wrapperspb.UInt64(1))
	testutil.AssertStatusErrorWithCode(t, err, codes.NotFound)
}

func TestPrepareCluster_RateLimited(t *testing.T) {
	env, cleanup := setup(t, &testOverrides{prepareRateLimit: 1})
	defer cleanup()

	env.putCluster(t, 1, nil)
	env.putCluster(t, 2, nil)

	_, err := env.client.PrepareCluster(env.ctx, wrapperspb.UInt64(1))
	require.NoError(t, err)

	_, err = env.client.PrepareCluster(env.ctx, wrapperspb.UInt64(1))
	testutil.AssertStatusErrorWithCode(t, err, codes.ResourceExhausted)

	// Limits are per cluster
	_, err = env.client.PrepareCluster(env.ctx, wrapperspb.UInt64(2))
	require.NoError(t, err)
}

func TestPreparePool(t *testing.T) {
	env, cleanup := setup(t, &testOverrides{})
	defer cleanup()

	env.putCluster(t, 1, pointer.To("shared"))
	env.putHost(t, 10, 1)
	env.putHost(t, 11, 1)
	env.putPool(t, 100, pool.TypeOCFS2, 1)
	env.putPool(t, 101, pool.TypeNetworkFilesystem, 1)

	req, err := NewPreparePoolRequest(100, []uint64{11, 10})
	require.NoError(t, err)

	resp, err := env.client.PreparePool(env.ctx, req)
	require.NoError(t, err)

	verdict, err := VerdictFromProto(resp)
	require.NoError(t, err)
	assert.Equal(t, "shared", verdict.ClusterName)
	assert.True(t, verdict.Success)
	assert.Equal(t, []uint64{11, 10}, verdict.Prepared)

	sent := env.dispatcher.GetSent()
	require.Len(t, sent, 2)
	assert.Equal(t, "10.0.1.11", sent[0].Command.Nodes[0].Address)
	assert.Equal(t, "10.0.1.10", sent[0].Command.Nodes[1].Address)

	req, err = NewPreparePoolRequest(101, []uint64{10})
	require.NoError(t, err)
	_, err = env.client.PreparePool(env.ctx, req)
	testutil.AssertStatusErrorWithCode(t, err, codes.FailedPrecondition)

	req, err = NewPreparePoolRequest(102, []uint64{10})
	require.NoError(t, err)
	_, err = env.client.PreparePool(env.ctx, req)
	testutil.AssertStatusErrorWithCode(t, err, codes.NotFound)

	req, err = NewPreparePoolRequest(100, []uint64{12})
	require.NoError(t, err)
	_, err = env.client.PreparePool(env.ctx, req)
	testutil.AssertStatusErrorWithCode(t, err, codes.NotFound)
}

func TestPreparePool_InvalidRequest(t *testing.T) {
	env, cleanup := setup(t, &testOverrides{})
	defer cleanup()

	for _, fields := range []map[string]interface{}{
		{},
		{"pool_id": 0},
		{"pool_id": -1},
		{"pool_id": 1.5},
		{"pool_id": "1"},
		{"pool_id": 1, "host_ids": "1,2"},
		{"pool_id": 1, "host_ids": []interface{}{"1"}},
	} {
		req, err := structpb.NewStruct(fields)
		require.NoError(t, err)

		_, err = env.client.PreparePool(env.ctx, req)
		testutil.AssertStatusErrorWithCode(t, err, codes.InvalidArgument)
	}
}

func TestRemoveHost(t *testing.T) {
	env, cleanup := setup(t, &testOverrides{})
	defer cleanup()

	env.putCluster(t, 1, nil)
	env.putHost(t, 10, 1)

	listener := &vetoListener{}
	require.NoError(t, env.bus.Register(listener, resource.EventDeleteHostBefore, resource.EventDeleteHostAfter))

	_, err := env.client.RemoveHost(env.ctx, wrapperspb.UInt64(0))
	testutil.AssertStatusErrorWithCode(t, err, codes.InvalidArgument)

	_, err = env.client.RemoveHost(env.ctx, wrapperspb.UInt64(11))
	testutil.AssertStatusErrorWithCode(t, err, codes.NotFound)

	listener.veto = true
	_, err = env.client.RemoveHost(env.ctx, wrapperspb.UInt64(10))
	testutil.AssertStatusErrorWithCode(t, err, codes.FailedPrecondition)

	_, err = env.data.GetHost(env.ctx, 10)
	require.NoError(t, err)

	listener.veto = false
	_, err = env.client.RemoveHost(env.ctx, wrapperspb.UInt64(10))
	require.NoError(t, err)

	_, err = env.data.GetHost(env.ctx, 10)
	assert.Equal(t, host.ErrNotFound, err)
	assert.Equal(t, []uint64{10}, listener.removed)
}

func TestRemoveHostStatusErrors(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code codes.Code
	}{
		{host.ErrNotFound, codes.NotFound},
		{fmt.Errorf("%w: %w", resource.ErrRemovalVetoed, errors.New("host is in use")), codes.FailedPrecondition},
		{errors.New("connection reset by peer"), codes.Internal},
		{errors.Wrap(sql.ErrConnDone, "error deleting host"), codes.Internal},
	} {
		testutil.AssertStatusErrorWithCode(t, toRemoveHostStatusError(tc.err), tc.code)
	}
}

type testEnv struct {
	ctx        context.Context
	client     AdminClient
	data       ocfs2_data.Provider
	dispatcher *agent_memory.Dispatcher
	bus        resource.EventBus
}

func setup(t *testing.T, overrides *testOverrides) (env testEnv, cleanup func()) {
	conn, serv, err := testutil.NewServer()
	require.NoError(t, err)

	env.ctx = context.Background()
	env.client = NewAdminClient(conn)
	env.data = ocfs2_data.NewTestDataProvider()
	env.dispatcher = agent_memory.NewDispatcher()
	env.bus = resource.NewEventBus()

	s := NewAdminServer(
		env.data,
		manager.NewManager(env.data, env.dispatcher),
		env.bus,
		withManualTestOverrides(overrides),
	)
	serv.RegisterService(func(server *grpc.Server) {
		RegisterAdminServer(server, s)
	})

	cleanup, err = serv.Serve()
	require.NoError(t, err)
	return env, cleanup
}

func (e *testEnv) putCluster(t *testing.T, id uint64, name *string) {
	require.NoError(t, e.data.PutCluster(e.ctx, &cluster.Record{
		Id:           id,
		Name:         name,
		PodId:        1,
		DataCenterId: 1,
	}))
}

func (e *testEnv) putHost(t *testing.T, id, clusterId uint64) {
	require.NoError(t, e.data.PutHost(e.ctx, &host.Record{
		Id:               id,
		Name:             fmt.Sprintf("hv%d", id),
		Type:             host.TypeRouting,
		Status:           host.StatusUp,
		PrivateIpAddress: fmt.Sprintf("10.0.%d.%d", clusterId, id),
		ClusterId:        clusterId,
		PodId:            1,
		DataCenterId:     1,
	}))
}

func (e *testEnv) putPool(t *testing.T, id uint64, poolType pool.Type, clusterId uint64) {
	require.NoError(t, e.data.PutStoragePool(e.ctx, &pool.Record{
		Id:           id,
		Name:         fmt.Sprintf("pool%d", id),
		Type:         poolType,
		ClusterId:    clusterId,
		PodId:        1,
		DataCenterId: 1,
	}))
}

type vetoListener struct {
	veto    bool
	removed []uint64
}

func (l *vetoListener) Name() string {
	return "veto"
}

func (l *vetoListener) ProcessDiscoverEventBefore(context.Context, *resource.DiscoverRequest) error {
	return nil
}

func (l *vetoListener) ProcessDiscoverEventAfter(context.Context, []*resource.DiscoveredResource) error {
	return nil
}

func (l *vetoListener) ProcessDeleteHostEventBefore(_ context.Context, record *host.Record) error {
	if l.veto {
		return fmt.Errorf("host %d is in use", record.Id)
	}
	return nil
}

func (l *vetoListener) ProcessDeleteHostEventAfter(_ context.Context, record *host.Record) error {
	l.removed = append(l.removed, record.Id)
	return nil
}

func (l *vetoListener) ProcessCancelMaintenanceEventBefore(context.Context, uint64) error {
	return nil
}

func (l *vetoListener) ProcessCancelMaintenanceEventAfter(context.Context, uint64) error {
	return nil
}

func (l *vetoListener) ProcessPrepareMaintenanceEventBefore(context.Context, uint64) error {
	return nil
}

func (l *vetoListener) ProcessPrepareMaintenanceEventAfter(context.Context, uint64) error {
	return nil
}
