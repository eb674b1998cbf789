package host

import (
	"context"

	"github.com/pkg/errors"
)

var (
	ErrNotFound      = errors.New("host record not found")
	ErrAlreadyExists = errors.New("host record already exists")
)

type Store interface {
	// Put creates a host record
	//
	// Returns ErrAlreadyExists if a record already exists.
	Put(ctx context.Context, record *Record) error

	// Update updates the status and address of a host record
	//
	// Returns ErrNotFound if no record exists.
	Update(ctx context.Context, record *Record) error

	// GetById finds the host record for a given id
	//
	// Returns ErrNotFound if no record is found.
	GetById(ctx context.Context, id uint64) (*Record, error)

	// Delete removes the host record for a given id
	//
	// Returns ErrNotFound if no record is found.
	Delete(ctx context.Context, id uint64) error

	// GetAllByTypeInAllStatus gets all hosts of a type within the scope of a
	// cluster, pod and data center, regardless of their status. Records are
	// ordered by id.
	//
	// Returns ErrNotFound if no records are found.
	GetAllByTypeInAllStatus(ctx context.Context, t Type, clusterId, podId, dataCenterId uint64) ([]*Record, error)
}
