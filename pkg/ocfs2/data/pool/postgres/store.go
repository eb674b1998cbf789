package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed pool.Store
func New(db *sql.DB) pool.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Put implements pool.Store.Put
func (s *store) Put(ctx context.Context, record *pool.Record) error {
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

// GetById implements pool.Store.GetById
func (s *store) GetById(ctx context.Context, id uint64) (*pool.Record, error) {
	model, err := dbGetById(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return fromModel(model), nil
}
