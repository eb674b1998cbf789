package pool

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("storage pool record not found")
	ErrAlreadyExists = errors.New("storage pool record already exists")
)

type Store interface {
	// Put creates a storage pool record
	//
	// Returns ErrAlreadyExists if a record already exists.
	Put(ctx context.Context, record *Record) error

	// GetById finds the storage pool record for a given id
	//
	// Returns ErrNotFound if no record is found.
	GetById(ctx context.Context, id uint64) (*Record, error)
}
