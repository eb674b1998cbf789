package admin

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/manager"
)

const (
	clusterNameField  = "cluster_name"
	successField      = "success"
	failedHostIdField = "failed_host_id"
	detailsField      = "details"
	preparedField     = "prepared"
	skippedField      = "skipped"

	poolIdField  = "pool_id"
	hostIdsField = "host_ids"
)

// VerdictToProto converts a verdict into its wire form
func VerdictToProto(verdict *manager.Verdict) (*structpb.Struct, error) {
	fields := map[string]interface{}{
		clusterNameField: verdict.ClusterName,
		successField:     verdict.Success,
		preparedField:    toListValue(verdict.Prepared),
		skippedField:     toListValue(verdict.Skipped),
	}
	if !verdict.Success {
		fields[failedHostIdField] = verdict.FailedHostId
		fields[detailsField] = verdict.Details
	}
	return structpb.NewStruct(fields)
}

// VerdictFromProto is the inverse of VerdictToProto
func VerdictFromProto(s *structpb.Struct) (*manager.Verdict, error) {
	fields := s.GetFields()

	success, ok := fields[successField].GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return nil, errors.New("verdict is missing success")
	}

	verdict := &manager.Verdict{
		ClusterName: fields[clusterNameField].GetStringValue(),
		Success:     success.BoolValue,
		Details:     fields[detailsField].GetStringValue(),
	}

	var err error
	if v, ok := fields[failedHostIdField]; ok {
		verdict.FailedHostId, err = toId(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid failed host id")
		}
	}

	verdict.Prepared, err = fromListValue(fields[preparedField])
	if err != nil {
		return nil, errors.Wrap(err, "invalid prepared hosts")
	}

	verdict.Skipped, err = fromListValue(fields[skippedField])
	if err != nil {
		return nil, errors.Wrap(err, "invalid skipped hosts")
	}

	return verdict, nil
}

// NewPreparePoolRequest builds the wire form of a pool preparation request
func NewPreparePoolRequest(poolId uint64, hostIds []uint64) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		poolIdField:  poolId,
		hostIdsField: toListValue(hostIds),
	})
}

func parsePreparePoolRequest(s *structpb.Struct) (uint64, []uint64, error) {
	fields := s.GetFields()

	v, ok := fields[poolIdField]
	if !ok {
		return 0, nil, errors.New("pool_id is required")
	}
	poolId, err := toId(v)
	if err != nil {
		return 0, nil, errors.Wrap(err, "invalid pool_id")
	}
	if poolId == 0 {
		return 0, nil, errors.New("pool_id is required")
	}

	hostIds, err := fromListValue(fields[hostIdsField])
	if err != nil {
		return 0, nil, errors.Wrap(err, "invalid host_ids")
	}

	return poolId, hostIds, nil
}

func toListValue(ids []uint64) []interface{} {
	res := make([]interface{}, len(ids))
	for i, id := range ids {
		res[i] = id
	}
	return res
}

func fromListValue(v *structpb.Value) ([]uint64, error) {
	if v == nil {
		return nil, nil
	}

	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, errors.New("not a list")
	}

	var res []uint64
	for _, item := range list.ListValue.GetValues() {
		id, err := toId(item)
		if err != nil {
			return nil, err
		}
		res = append(res, id)
	}
	return res, nil
}

// Ids travel as JSON numbers, so anything beyond 2^53 can't be represented
// exactly.
func toId(v *structpb.Value) (uint64, error) {
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, errors.New("not a number")
	}

	f := n.NumberValue
	if f < 0 || f != math.Trunc(f) || f > 1<<53 {
		return 0, errors.Errorf("%v is not a valid id", f)
	}
	return uint64(f), nil
}
