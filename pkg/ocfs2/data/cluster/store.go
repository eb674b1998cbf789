package cluster

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("cluster record not found")
	ErrAlreadyExists = errors.New("cluster record already exists")
)

type Store interface {
	// Put creates a cluster record
	//
	// Returns ErrAlreadyExists if a record already exists.
	Put(ctx context.Context, record *Record) error

	// Update updates the mutable fields of a cluster record. Currently, that's
	// only the name.
	//
	// Returns ErrNotFound if no record exists.
	Update(ctx context.Context, record *Record) error

	// GetById finds the cluster record for a given id
	//
	// Returns ErrNotFound if no record is found.
	GetById(ctx context.Context, id uint64) (*Record, error)

	// GetAll returns every cluster record, ordered by id
	//
	// Returns ErrNotFound if no records exist.
	GetAll(ctx context.Context) ([]*Record, error)
}
