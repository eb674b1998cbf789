package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
	"github.com/ovmcloud/ocfs2-manager/pkg/pointer"
)

func RunTests(t *testing.T, s cluster.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s cluster.Store){
		testHappyPath,
		testGetAll,
		testValidation,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s cluster.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now().Add(-time.Second)

		record := &cluster.Record{
			Id:           42,
			PodId:        3,
			DataCenterId: 1,
		}
		cloned := record.Clone()

		_, err := s.GetById(ctx, record.Id)
		assert.Equal(t, cluster.ErrNotFound, err)
		assert.Equal(t, cluster.ErrNotFound, s.Update(ctx, record))

		require.NoError(t, s.Put(ctx, record))
		assert.Equal(t, cluster.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.GetById(ctx, record.Id)
		require.NoError(t, err)
		assert.True(t, actual.CreatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual)
		assert.Equal(t, "cluster42", actual.ClusterName())

		record.Name = pointer.To("ocfs2")
		cloned = record.Clone()
		require.NoError(t, s.Update(ctx, record))

		actual, err = s.GetById(ctx, record.Id)
		require.NoError(t, err)
		assertEquivalentRecords(t, &cloned, actual)
		assert.Equal(t, "ocfs2", actual.ClusterName())
	})
}

func testGetAll(t *testing.T, s cluster.Store) {
	t.Run("testGetAll", func(t *testing.T) {
		ctx := context.Background()

		_, err := s.GetAll(ctx)
		assert.Equal(t, cluster.ErrNotFound, err)

		for _, id := range []uint64{7, 3, 5} {
			require.NoError(t, s.Put(ctx, &cluster.Record{
				Id:           id,
				Name:         pointer.To("pool-cluster"),
				PodId:        1,
				DataCenterId: 1,
			}))
		}

		actual, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, actual, 3)
		assert.EqualValues(t, 3, actual[0].Id)
		assert.EqualValues(t, 5, actual[1].Id)
		assert.EqualValues(t, 7, actual[2].Id)
	})
}

func testValidation(t *testing.T, s cluster.Store) {
	t.Run("testValidation", func(t *testing.T) {
		ctx := context.Background()

		for _, invalid := range []*cluster.Record{
			{PodId: 1, DataCenterId: 1},
			{Id: 1, DataCenterId: 1},
			{Id: 1, PodId: 1},
		} {
			assert.Error(t, s.Put(ctx, invalid))
		}
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *cluster.Record) {
	assert.Equal(t, obj1.Id, obj2.Id)
	assert.EqualValues(t, obj1.Name, obj2.Name)
	assert.Equal(t, obj1.PodId, obj2.PodId)
	assert.Equal(t, obj1.DataCenterId, obj2.DataCenterId)
}
