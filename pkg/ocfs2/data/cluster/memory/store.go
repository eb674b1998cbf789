package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/cluster"
	"github.com/ovmcloud/ocfs2-manager/pkg/pointer"
)

type store struct {
	mu      sync.Mutex
	records []*cluster.Record
}

// New returns a new in memory cluster.Store
func New() cluster.Store {
	return &store{}
}

// Put implements cluster.Store.Put
func (s *store) Put(_ context.Context, data *cluster.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findById(data.Id); item != nil {
		return cluster.ErrAlreadyExists
	}

	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// Update implements cluster.Store.Update
func (s *store) Update(_ context.Context, data *cluster.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findById(data.Id)
	if item == nil {
		return cluster.ErrNotFound
	}

	item.Name = pointer.Copy(data.Name)
	item.CopyTo(data)

	return nil
}

// GetById implements cluster.Store.GetById
func (s *store) GetById(_ context.Context, id uint64) (*cluster.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findById(id)
	if item == nil {
		return nil, cluster.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// GetAll implements cluster.Store.GetAll
func (s *store) GetAll(_ context.Context) ([]*cluster.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return nil, cluster.ErrNotFound
	}

	res := cloneSlice(s.records)
	sort.Slice(res, func(i, j int) bool {
		return res[i].Id < res[j].Id
	})
	return res, nil
}

func (s *store) findById(id uint64) *cluster.Record {
	for _, item := range s.records {
		if item.Id == id {
			return item
		}
	}
	return nil
}

func (s *store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

func cloneSlice(items []*cluster.Record) []*cluster.Record {
	res := make([]*cluster.Record, 0, len(items))
	for _, item := range items {
		cloned := item.Clone()
		res = append(res, &cloned)
	}
	return res
}
