package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	pgutil "github.com/ovmcloud/ocfs2-manager/pkg/database/postgres"
	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

const (
	tableName = "ocfs2__core_host"

	allColumns = `id, name, host_type, status, private_ip_address, cluster_id, pod_id, data_center_id, created_at`
)

type model struct {
	Id int64 `db:"id"`

	Name     string `db:"name"`
	HostType uint8  `db:"host_type"`
	Status   uint8  `db:"status"`

	PrivateIpAddress string `db:"private_ip_address"`

	ClusterId    int64 `db:"cluster_id"`
	PodId        int64 `db:"pod_id"`
	DataCenterId int64 `db:"data_center_id"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *host.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Id: int64(obj.Id),

		Name:     obj.Name,
		HostType: uint8(obj.Type),
		Status:   uint8(obj.Status),

		PrivateIpAddress: obj.PrivateIpAddress,

		ClusterId:    int64(obj.ClusterId),
		PodId:        int64(obj.PodId),
		DataCenterId: int64(obj.DataCenterId),

		CreatedAt: obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *host.Record {
	return &host.Record{
		Id: uint64(obj.Id),

		Name:   obj.Name,
		Type:   host.Type(obj.HostType),
		Status: host.Status(obj.Status),

		PrivateIpAddress: obj.PrivateIpAddress,

		ClusterId:    uint64(obj.ClusterId),
		PodId:        uint64(obj.PodId),
		DataCenterId: uint64(obj.DataCenterId),

		CreatedAt: obj.CreatedAt,
	}
}

func (m *model) dbPut(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `INSERT INTO ` + tableName + `
			(` + allColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING ` + allColumns

		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}

		return tx.QueryRowxContext(
			ctx,
			query,
			m.Id,
			m.Name,
			m.HostType,
			m.Status,
			m.PrivateIpAddress,
			m.ClusterId,
			m.PodId,
			m.DataCenterId,
			m.CreatedAt,
		).StructScan(m)
	})
	return pgutil.CheckUniqueViolation(err, host.ErrAlreadyExists)
}

func (m *model) dbUpdate(ctx context.Context, db *sqlx.DB) error {
	err := pgutil.ExecuteInTx(ctx, db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		query := `UPDATE ` + tableName + `
			SET status = $2, private_ip_address = $3
			WHERE id = $1
			RETURNING ` + allColumns

		return tx.QueryRowxContext(
			ctx,
			query,
			m.Id,
			m.Status,
			m.PrivateIpAddress,
		).StructScan(m)
	})
	return pgutil.CheckNoRows(err, host.ErrNotFound)
}

func dbGetById(ctx context.Context, db *sqlx.DB, id uint64) (*model, error) {
	var res model
	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE id = $1
	`

	err := db.GetContext(ctx, &res, query, id)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, host.ErrNotFound)
	}
	return &res, nil
}

func dbDelete(ctx context.Context, db *sqlx.DB, id uint64) error {
	query := `DELETE FROM ` + tableName + `
		WHERE id = $1
	`

	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	} else if affected == 0 {
		return host.ErrNotFound
	}
	return nil
}

func dbGetAllByTypeInAllStatus(ctx context.Context, db *sqlx.DB, t host.Type, clusterId, podId, dataCenterId uint64) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + ` FROM ` + tableName + `
		WHERE host_type = $1 AND cluster_id = $2 AND pod_id = $3 AND data_center_id = $4
		ORDER BY id ASC
	`

	err := db.SelectContext(ctx, &res, query, uint8(t), clusterId, podId, dataCenterId)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, host.ErrNotFound)
	} else if len(res) == 0 {
		return nil, host.ErrNotFound
	}
	return res, nil
}
