package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed cluster.Store
func New(db *sql.DB) cluster.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements cluster.Store.Put
func (s *store) Put(ctx context.Context, record *cluster.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbPut(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// Update implements cluster.Store.Update
func (s *store) Update(ctx context.Context, record *cluster.Record) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbUpdate(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// GetById implements cluster.Store.GetById
func (s *store) GetById(ctx context.Context, id uint64) (*cluster.Record, error) {
	model, err := dbGetById(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	return fromModel(model), nil
}

// GetAll implements cluster.Store.GetAll
func (s *store) GetAll(ctx context.Context) ([]*cluster.Record, error) {
	models, err := dbGetAll(ctx, s.db)
	if err != nil {
		return nil, err
	}

	res := make([]*cluster.Record, 0, len(models))
	for _, model := range models {
		res = append(res, fromModel(model))
	}
	return res, nil
}
