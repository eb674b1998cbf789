package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/pool"
)

type store struct {
	mu      sync.Mutex
	records map[uint64]*pool.Record
}

// New returns a new in memory pool.Store
func New() pool.Store {
	return &store{
		records: make(map[uint64]*pool.Record),
	}
}

// Put implements pool.Store.Put
func (s *store) Put(_ context.Context, data *pool.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[data.Id]; ok {
		return pool.ErrAlreadyExists
	}

	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.records[data.Id] = &cloned
	return nil
}

// GetById implements pool.Store.GetById
func (s *store) GetById(_ context.Context, id uint64) (*pool.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[id]
	if !ok {
		return nil, pool.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[uint64]*pool.Record)
}
