package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/manager"
)

func TestVerdictProto(t *testing.T) {
	for _, expected := range []*manager.Verdict{
		{
			ClusterName: "cluster1",
			Success:     true,
			Prepared:    []uint64{1, 2, 3},
			Skipped:     []uint64{4},
		},
		{
			ClusterName:  "prod",
			Success:      false,
			FailedHostId: 2,
			Details:      "failure",
			Prepared:     []uint64{1},
		},
		{
			ClusterName: "empty",
			Success:     true,
		},
	} {
		s, err := VerdictToProto(expected)
		require.NoError(t, err)

		actual, err := VerdictFromProto(s)
		require.NoError(t, err)
		assert.Equal(t, expected, actual)
	}

	_, err := VerdictFromProto(&structpb.Struct{})
	assert.Error(t, err)
}

func TestParsePreparePoolRequest(t *testing.T) {
	req, err := NewPreparePoolRequest(7, []uint64{3, 1, 2})
	require.NoError(t, err)

	poolId, hostIds, err := parsePreparePoolRequest(req)
	require.NoError(t, err)
	assert.EqualValues(t, 7, poolId)
	assert.Equal(t, []uint64{3, 1, 2}, hostIds)

	req, err = NewPreparePoolRequest(7, nil)
	require.NoError(t, err)

	_, hostIds, err = parsePreparePoolRequest(req)
	require.NoError(t, err)
	assert.Empty(t, hostIds)
}
