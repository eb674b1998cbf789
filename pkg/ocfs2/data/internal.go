package data

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	pg "github.com/ovmcloud/ocfs2-manager/pkg/database/postgres"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"

	cluster_memory_client "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster/memory"
	host_memory_client "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host/memory"
	pool_memory_client "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool/memory"

	cluster_postgres_client "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster/postgres"
	host_postgres_client "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host/postgres"
	pool_postgres_client "github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool/postgres"
)

type DatabaseData interface {
	// Cluster
	// --------------------------------------------------------------------------------
	PutCluster(ctx context.Context, record *cluster.Record) error
	UpdateCluster(ctx context.Context, record *cluster.Record) error
	GetCluster(ctx context.Context, id uint64) (*cluster.Record, error)
	GetAllClusters(ctx context.Context) ([]*cluster.Record, error)

	// Host
	// --------------------------------------------------------------------------------
	PutHost(ctx context.Context, record *host.Record) error
	UpdateHost(ctx context.Context, record *host.Record) error
	GetHost(ctx context.Context, id uint64) (*host.Record, error)
	DeleteHost(ctx context.Context, id uint64) error
	GetAllHostsByTypeInAllStatus(ctx context.Context, t host.Type, clusterId, podId, dataCenterId uint64) ([]*host.Record, error)

	// Storage Pool
	// --------------------------------------------------------------------------------
	PutStoragePool(ctx context.Context, record *pool.Record) error
	GetStoragePool(ctx context.Context, id uint64) (*pool.Record, error)

	// ExecuteInTx executes fn with a single DB transaction that is scoped to the call.
	ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error
}

type DatabaseProvider struct {
	clusters cluster.Store
	hosts    host.Store
	pools    pool.Store

	db *sqlx.DB
}

func NewDatabaseProvider(dbConfig *pg.Config) (DatabaseData, error) {
	db, err := pg.Open(dbConfig)
	if err != nil {
		return nil, err
	}

	return &DatabaseProvider{
		clusters: cluster_postgres_client.New(db),
		hosts:    host_postgres_client.New(db),
		pools:    pool_postgres_client.New(db),

		db: sqlx.NewDb(db, "pgx"),
	}, nil
}

func NewTestDatabaseProvider() DatabaseData {
	return &DatabaseProvider{
		clusters: cluster_memory_client.New(),
		hosts:    host_memory_client.New(),
		pools:    pool_memory_client.New(),
	}
}

func (dp *DatabaseProvider) ExecuteInTx(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context) error) error {
	if dp.db == nil {
		return fn(ctx)
	}

	return pg.ExecuteTxWithinCtx(ctx, dp.db, isolation, fn)
}

// Cluster
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) PutCluster(ctx context.Context, record *cluster.Record) error {
	return dp.clusters.Put(ctx, record)
}
func (dp *DatabaseProvider) UpdateCluster(ctx context.Context, record *cluster.Record) error {
	return dp.clusters.Update(ctx, record)
}
func (dp *DatabaseProvider) GetCluster(ctx context.Context, id uint64) (*cluster.Record, error) {
	return dp.clusters.GetById(ctx, id)
}
func (dp *DatabaseProvider) GetAllClusters(ctx context.Context) ([]*cluster.Record, error) {
	return dp.clusters.GetAll(ctx)
}

// Host
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) PutHost(ctx context.Context, record *host.Record) error {
	return dp.hosts.Put(ctx, record)
}
func (dp *DatabaseProvider) UpdateHost(ctx context.Context, record *host.Record) error {
	return dp.hosts.Update(ctx, record)
}
func (dp *DatabaseProvider) GetHost(ctx context.Context, id uint64) (*host.Record, error) {
	return dp.hosts.GetById(ctx, id)
}
func (dp *DatabaseProvider) DeleteHost(ctx context.Context, id uint64) error {
	return dp.hosts.Delete(ctx, id)
}
func (dp *DatabaseProvider) GetAllHostsByTypeInAllStatus(ctx context.Context, t host.Type, clusterId, podId, dataCenterId uint64) ([]*host.Record, error) {
	return dp.hosts.GetAllByTypeInAllStatus(ctx, t, clusterId, podId, dataCenterId)
}

// Storage Pool
// --------------------------------------------------------------------------------
func (dp *DatabaseProvider) PutStoragePool(ctx context.Context, record *pool.Record) error {
	return dp.pools.Put(ctx, record)
}
func (dp *DatabaseProvider) GetStoragePool(ctx context.Context, id uint64) (*pool.Record, error) {
	return dp.pools.GetById(ctx, id)
}
