package tests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
)

func RunTests(t *testing.T, s pool.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s pool.Store){
		testHappyPath,
		testDataCenterScoped,
		testValidation,
	} {
		tf(t, s)
		teardown()
	}
}

func testHappyPath(t *testing.T, s pool.Store) {
	t.Run("testHappyPath", func(t *testing.T) {
		ctx := context.Background()
		start := time.Now().Add(-time.Second)

		record := &pool.Record{
			Id:           4,
			Name:         "shared-ocfs2",
			Type:         pool.TypeOCFS2,
			ClusterId:    10,
			PodId:        2,
			DataCenterId: 1,
		}
		cloned := record.Clone()

		_, err := s.GetById(ctx, record.Id)
		assert.Equal(t, pool.ErrNotFound, err)

		require.NoError(t, s.Put(ctx, record))
		assert.Equal(t, pool.ErrAlreadyExists, s.Put(ctx, record))

		actual, err := s.GetById(ctx, record.Id)
		require.NoError(t, err)
		assert.True(t, actual.CreatedAt.After(start))
		assertEquivalentRecords(t, &cloned, actual)
	})
}

func testDataCenterScoped(t *testing.T, s pool.Store) {
	t.Run("testDataCenterScoped", func(t *testing.T) {
		ctx := context.Background()

		record := &pool.Record{
			Id:           5,
			Name:         "zone-nfs",
			Type:         pool.TypeNetworkFilesystem,
			DataCenterId: 1,
		}
		require.NoError(t, s.Put(ctx, record))

		actual, err := s.GetById(ctx, record.Id)
		require.NoError(t, err)
		assert.EqualValues(t, 0, actual.ClusterId)
		assert.Equal(t, pool.TypeNetworkFilesystem, actual.Type)
	})
}

func testValidation(t *testing.T, s pool.Store) {
	t.Run("testValidation", func(t *testing.T) {
		ctx := context.Background()

		for _, invalid := range []*pool.Record{
			{Name: "p", Type: pool.TypeOCFS2, DataCenterId: 1},
			{Id: 1, Type: pool.TypeOCFS2, DataCenterId: 1},
			{Id: 1, Name: "p", DataCenterId: 1},
			{Id: 1, Name: "p", Type: pool.TypeOCFS2},
		} {
			assert.Error(t, s.Put(ctx, invalid))
		}
	})
}

func assertEquivalentRecords(t *testing.T, obj1, obj2 *pool.Record) {
	assert.Equal(t, obj1.Id, obj2.Id)
	assert.Equal(t, obj1.Name, obj2.Name)
	assert.Equal(t, obj1.Type, obj2.Type)
	assert.Equal(t, obj1.ClusterId, obj2.ClusterId)
	assert.Equal(t, obj1.PodId, obj2.PodId)
	assert.Equal(t, obj1.DataCenterId, obj2.DataCenterId)
}
