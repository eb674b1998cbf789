package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/ovmcloud/ocfs2-manager/pkg/database/postgres"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
)

const (
	tableName = "ocfs2__core_storagepool"
)

type model struct {
	Id int64 `db:"id"`

	Name     string `db:"name"`
	PoolType uint8  `db:"pool_type"`

	ClusterId    sql.NullInt64 `db:"cluster_id"`
	PodId        int64         `db:"pod_id"`
	DataCenterId int64         `db:"data_center_id"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *pool.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Id: int64(obj.Id),

		Name:     obj.Name,
		PoolType: uint8(obj.Type),

		ClusterId: sql.NullInt64{
			Valid: obj.ClusterId != 0,
			Int64: int64(obj.ClusterId),
		},
		PodId:        int64(obj.PodId),
		DataCenterId: int64(obj.DataCenterId),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *pool.Record {
	var clusterId uint64
	if obj.ClusterId.Valid {
		clusterId = uint64(obj.ClusterId.Int64)
	}

	return &pool.Record{
		Id: uint64(obj.Id),

		Name: obj.Name,
		Type: pool.Type(obj.PoolType),

		ClusterId:    clusterId,
		PodId:        uint64(obj.PodId),
		DataCenterId: uint64(obj.DataCenterId),

		CreatedAt: obj.CreatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(id, name, pool_type, cluster_id, pod_id, data_center_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, name, pool_type, cluster_id, pod_id, data_center_id, created_at
		`

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.Id,
			m.Name,
			m.PoolType,
			m.ClusterId,
			m.PodId,
			m.DataCenterId,
			m.CreatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, pool.ErrAlreadyExists)
}

func dbGetById(ctx context.Context, db *sqlx.DB, id uint64) (*model, error) {
	var res model
	query := `SELECT id, name, pool_type, cluster_id, pod_id, data_center_id, created_at FROM ` + tableName + `
		WHERE id = $1
	`

	err := db.GetContext(ctx, &res, query, id)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, pool.ErrNotFound)
	}
	return &res, nil
}
