package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed host.Store
func New(db *sql.DB) host.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements host.Store.Put
func (s *store) Put(ctx context.Context, record *host.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	if err := obj.dbPut(ctx, s.db); err != nil {
		return err
	}

	fromModel(obj).CopyTo(record)
	return nil
}

// Update implements host.Store.Update
func (s *store) Update(ctx context.Context, record *host.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	if err := obj.dbUpdate(ctx, s.db); err != nil {
		return err
	}

	fromModel(obj).CopyTo(record)
	return nil
}

// GetById implements host.Store.GetById
func (s *store) GetById(ctx context.Context, id uint64) (*host.Record, error) {
	model, err := dbGetById(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}

// Delete implements host.Store.Delete
func (s *store) Delete(ctx context.Context, id uint64) error {
	return dbDelete(ctx, s.db, id)
}

// GetAllByTypeInAllStatus implements host.Store.GetAllByTypeInAllStatus
func (s *store) GetAllByTypeInAllStatus(ctx context.Context, t host.Type, clusterId, podId, dataCenterId uint64) ([]*host.Record, error) {
	models, err := dbGetAllByTypeInAllStatus(ctx, s.db, t, clusterId, podId, dataCenterId)
	if err != nil {
		return nil, err
	}

	res := make([]*host.Record, 0, len(models))
	for _, model := range models {
		res = append(res, fromModel(model))
	}
	return res, nil
}
