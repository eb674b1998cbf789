package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/ovmcloud/ocfs2-manager/pkg/database/postgres"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
	"github.com/ovmcloud/ocfs2-manager/pkg/pointer"
)

const (
	tableName = "ocfs2__core_cluster"
)

type model struct {
	Id int64 `db:"id"`

	Name sql.NullString `db:"name"`

	PodId        int64 `db:"pod_id"`
	DataCenterId int64 `db:"data_center_id"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *cluster.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Id: int64(obj.Id),

		Name: sql.NullString{
			Valid:  obj.Name != nil,
			String: *pointer.OrDefault(obj.Name, ""),
		},

		PodId:        int64(obj.PodId),
		DataCenterId: int64(obj.DataCenterId),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *cluster.Record {
	return &cluster.Record{
		Id: uint64(obj.Id),

		Name: pointer.IfValid(obj.Name.Valid, obj.Name.String),

		PodId:        uint64(obj.PodId),
		DataCenterId: uint64(obj.DataCenterId),

		CreatedAt: obj.CreatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(id, name, pod_id, data_center_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, name, pod_id, data_center_id, created_at
		`

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.Id,
			m.Name,
			m.PodId,
			m.DataCenterId,
			m.CreatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, cluster.ErrAlreadyExists)
}

func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET name = $2
			WHERE id = $1
			RETURNING id, name, pod_id, data_center_id, created_at
		`

		return tx.QueryRowxContext(
			ctx,
			query,
			m.Id,
			m.Name,
		).StructScan(m)
	})
	return pgutil.CheckNoRows(err, cluster.ErrNotFound)
}

func dbGetById(ctx context.Context, db *sqlx.DB, id uint64) (*model, error) {
	var res model
	query := `SELECT id, name, pod_id, data_center_id, created_at FROM ` + tableName + `
		WHERE id = $1
	`

	err := db.GetContext(ctx, &res, query, id)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, cluster.ErrNotFound)
	}
	return &res, nil
}

func dbGetAll(ctx context.Context, db *sqlx.DB) ([]*model, error) {
	res := []*model{}

	query := `SELECT id, name, pod_id, data_center_id, created_at FROM ` + tableName + `
		ORDER BY id ASC
	`

	err := db.SelectContext(ctx, &res, query)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, cluster.ErrNotFound)
	} else if len(res) == 0 {
		return nil, cluster.ErrNotFound
	}
	return res, nil
}
