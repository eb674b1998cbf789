package admin

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	ocfs2_data "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/manager"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/resource"
	"github.com/ovmcloud/ocfs2-manager/pkg/rate"
)

type server struct {
	log     *logrus.Entry
	data    ocfs2_data.Provider
	manager manager.Manager
	bus     resource.EventBus
	limiter rate.Limiter
}

func NewAdminServer(data ocfs2_data.Provider, manager manager.Manager, bus resource.EventBus, configProvider ConfigProvider) AdminServer {
	conf := configProvider()

	limiter := rate.Unlimited
	if limit := conf.prepareRateLimit.Get(context.Background()); limit > 0 {
		limiter = rate.NewKeyedLimiter(xrate.Limit(limit), 0)
	}

	return &server{
		log:     logrus.StandardLogger().WithField("type", "admin/server"),
		data:    data,
		manager: manager,
		bus:     bus,
		limiter: limiter,
	}
}

func (s *server) PrepareCluster(ctx context.Context, req *wrapperspb.UInt64Value) (*structpb.Struct, error) {
	clusterId := req.GetValue()

	log := s.log.WithFields(logrus.Fields{
		"method":  "PrepareCluster",
		"cluster": clusterId,
	})

	if clusterId == 0 {
		return nil, status.Error(codes.InvalidArgument, "cluster id is required")
	}

	if err := s.checkRateLimit(clusterId); err != nil {
		return nil, err
	}

	verdict, err := s.manager.PrepareNodesForCluster(ctx, clusterId)
	if err != nil {
		log.WithError(err).Warn("failure preparing cluster nodes")
		return nil, toStatusError(err)
	}

	log.WithField("verdict", verdict.String()).Info("prepared cluster nodes")

	return s.toVerdictProto(log, verdict)
}

func (s *server) PreparePool(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	log := s.log.WithField("method", "PreparePool")

	poolId, hostIds, err := parsePreparePoolRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	log = log.WithField("pool", poolId)

	poolRecord, err := s.data.GetStoragePool(ctx, poolId)
	if err != nil {
		if err != pool.ErrNotFound {
			log.WithError(err).Warn("failure getting storage pool")
		}
		return nil, toStatusError(err)
	}
	log = log.WithField("cluster", poolRecord.ClusterId)

	hosts := make([]*host.Record, 0, len(hostIds))
	for _, hostId := range hostIds {
		record, err := s.data.GetHost(ctx, hostId)
		if err != nil {
			if err != host.ErrNotFound {
				log.WithError(err).Warn("failure getting host")
			}
			return nil, toStatusError(errors.Wrapf(err, "host %d", hostId))
		}
		hosts = append(hosts, record)
	}

	if err := s.checkRateLimit(poolRecord.ClusterId); err != nil {
		return nil, err
	}

	verdict, err := s.manager.PrepareNodesForPool(ctx, hosts, poolRecord)
	if err != nil {
		log.WithError(err).Warn("failure preparing pool nodes")
		return nil, toStatusError(err)
	}

	log.WithField("verdict", verdict.String()).Info("prepared pool nodes")

	return s.toVerdictProto(log, verdict)
}

func (s *server) RemoveHost(ctx context.Context, req *wrapperspb.UInt64Value) (*emptypb.Empty, error) {
	hostId := req.GetValue()

	log := s.log.WithFields(logrus.Fields{
		"method": "RemoveHost",
		"host":   hostId,
	})

	if hostId == 0 {
		return nil, status.Error(codes.InvalidArgument, "host id is required")
	}

	_, err := resource.RemoveHost(ctx, s.data, s.bus, hostId)
	if err != nil {
		if !errors.Is(err, host.ErrNotFound) {
			log.WithError(err).Warn("failure removing host")
		}
		return nil, toRemoveHostStatusError(err)
	}

	return &emptypb.Empty{}, nil
}

func (s *server) checkRateLimit(clusterId uint64) error {
	allowed, err := s.limiter.Allow(fmt.Sprintf("cluster/%d", clusterId))
	if err != nil {
		s.log.WithError(err).Warn("failure checking rate limit")
		return status.Error(codes.Internal, "")
	}
	if !allowed {
		return status.Errorf(codes.ResourceExhausted, "too many preparations for cluster %d", clusterId)
	}
	return nil
}

func (s *server) toVerdictProto(log *logrus.Entry, verdict *manager.Verdict) (*structpb.Struct, error) {
	resp, err := VerdictToProto(verdict)
	if err != nil {
		log.WithError(err).Warn("failure converting verdict")
		return nil, status.Error(codes.Internal, "")
	}
	return resp, nil
}

func toRemoveHostStatusError(err error) error {
	switch {
	case errors.Is(err, host.ErrNotFound):
		return status.Error(codes.NotFound, "host not found")
	case errors.Is(err, resource.ErrRemovalVetoed):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, "")
	}
}

func toStatusError(err error) error {
	switch {
	case errors.Is(err, manager.ErrClusterNotFound),
		errors.Is(err, pool.ErrNotFound),
		errors.Is(err, host.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, manager.ErrNotOCFS2Pool):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, manager.ErrEmptyClusterName):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "")
	}
}
