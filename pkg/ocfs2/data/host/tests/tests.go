package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

func RunTests(t *testing.T, s host.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s host.Store){
		testHappyPath,
		testDelete,
		testGetAllByTypeInAllStatus,
		testValidation,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s host.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now().Add(-time.Second)

		record := newRecord(1, "10.0.0.1")
		cloned := record.Clone()

		_, err := s.GetById(ctx, record.Id)
		assert.Equal(t, host.ErrNotFound, err)
		assert.Equal(t, host.ErrNotFound, s.Update(ctx, record))

		require.NoError(t, s.Put(ctx, record))
		assert.Equal(t, host.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.GetById(ctx, record.Id)
		require.NoError(t, err)
		assert.True(t, actual.CreatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual)

		record.Status = host.StatusMaintenance
		record.PrivateIpAddress = "10.0.0.99"
		cloned = record.Clone()
		require.NoError(t, s.Update(ctx, record))

		actual, err = s.GetById(ctx, record.Id)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
	})
}

func testDelete(t *testing.T, s host.Store) {
	t.Run("testDelete", func(t *testing.T) {
		ctx := context.Background()

		assert.Equal(t, host.ErrNotFound, s.Delete(ctx, 1))

		require.NoError(t, s.Put(ctx, newRecord(1, "10.0.0.1")))
		require.NoError(t, s.Delete(ctx, 1))

		_, err := s.GetById(ctx, 1)
		assert.Equal(t, host.ErrNotFound, err)
		assert.Equal(t, host.ErrNotFound, s.Delete(ctx, 1))
	})
}

func testGetAllByTypeInAllStatus(t *testing.T, s host.Store) {
	t.Run("testGetAllByTypeInAllStatus", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAllByTypeInAllStatus(ctx, host.TypeRouting, 10, 2, 1)
		assert.Equal(t, host.ErrNotFound, err)

		down := newRecord(5, "10.0.0.5")
		down.Status = host.StatusDown

		otherCluster := newRecord(6, "10.0.0.6")
		otherCluster.ClusterId = 11

		otherPod := newRecord(7, "10.0.0.7")
		otherPod.PodId = 3

		storage := newRecord(8, "10.0.0.8")
		storage.Type = host.TypeStorage

		for _, record := range []*host.Record{
			newRecord(9, "10.0.0.9"),
			down,
			otherCluster,
			otherPod,
			storage,
			newRecord(2, "10.0.0.2"),
		} {
			require.NoError(t, s.Put(ctx, record))
		}

		actual, err := s.GetAllByTypeInAllStatus(ctx, host.TypeRouting, 10, 2, 1)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assert.EqualValues(t, 2, actual[0].Id)
		assert.EqualValues(t, 5, actual[1].Id)
		assert.Equal(t, host.StatusDown, actual[1].Status)
		assert.EqualValues(t, 9, actual[2].Id)

		actual, err = s.GetAllByTypeInAllStatus(ctx, host.TypeStorage, 10, 2, 1)
		require.NoError(t, err)
		require.Len(t, actual, 1)
		assert.EqualValues(t, 8, actual[0].Id)

		_, err = s.GetAllByTypeInAllStatus(ctx, host.TypeRouting, 10, 2, 2)
		assert.Equal(t, host.ErrNotFound, err)
	})
}

func testValidation(t *testing.T, s host.Store) {
	t.Run("testValidation", func(t *testing.T) {
		ctx := context.Background()

		for _, mutate := range []func(r *host.Record){
			func(r *host.Record) { r.Id = 0 },
			func(r *host.Record) { r.Name = "" },
			func(r *host.Record) { r.Type = host.TypeUnknown },
			func(r *host.Record) { r.Status = host.StatusUnknown },
			func(r *host.Record) { r.PrivateIpAddress = "" },
			func(r *host.Record) { r.PrivateIpAddress = "fe80::1" },
			func(r *host.Record) { r.PrivateIpAddress = "10.0.0" },
			func(r *host.Record) { r.ClusterId = 0 },
			func(r *host.Record) { r.PodId = 0 },
			func(r *host.Record) { r.DataCenterId = 0 },
		} {
			record := newRecord(1, "10.0.0.1")
			mutate(record)
			assert.Error(t, s.Put(ctx, record))
		}
	})
}

func newRecord(id uint64, ip string) *host.Record {
	return &host.Record{
		Id:               id,
		Name:             "hv-" + ip,
		Type:             host.TypeRouting,
		Status:           host.StatusUp,
		PrivateIpAddress: ip,
		ClusterId:        10,
		PodId:            2,
		DataCenterId:     1,
	}
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *host.Record) {
	assert.Equal(t, obj1.Id, obj2.Id)
	assert.Equal(t, obj1.Name, obj2.Name)
	assert.Equal(t, obj1.Type, obj2.Type)
	assert.Equal(t, obj1.Status, obj2.Status)
	assert.Equal(t, obj1.PrivateIpAddress, obj2.PrivateIpAddress)
	assert.Equal(t, obj1.ClusterId, obj2.ClusterId)
	assert.Equal(t, obj1.PodId, obj2.PodId)
	assert.Equal(t, obj1.DataCenterId, obj2.DataCenterId)
}
