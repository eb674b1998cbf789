package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ovmcloud/ocfs2-manager/pkg/ocfs2/data/host"
)

type store struct {
	mu      sync.Mutex
	records []*host.Record
}

// New returns a new in memory host.Store
func New() host.Store {
	return &store{}
}

// Put implements host.Store.Put
func (s *store) Put(_ context.Context, data *host.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.findById(data.Id); item != nil {
		return host.ErrAlreadyExists
	}

	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	cloned := data.Clone()
	s.records = append(s.records, &cloned)

	return nil
}

// Update implements host.Store.Update
func (s *store) Update(_ context.Context, data *host.Record) error {
	if err := data.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findById(data.Id)
	if item == nil {
		return host.ErrNotFound
	}

	item.Status = data.Status
	item.PrivateIpAddress = data.PrivateIpAddress

	item.CopyTo(data)

	return nil
}

// GetById implements host.Store.GetById
func (s *store) GetById(_ context.Context, id uint64) (*host.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findById(id)
	if item == nil {
		return nil, host.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

// Delete implements host.Store.Delete
func (s *store) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, item := range s.records {
		if item.Id == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}

	return host.ErrNotFound
}

// GetAllByTypeInAllStatus implements host.Store.GetAllByTypeInAllStatus
func (s *store) GetAllByTypeInAllStatus(_ context.Context, t host.Type, clusterId, podId, dataCenterId uint64) ([]*host.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*host.Record
	for _, item := range s.records {
		if item.Type != t {
			continue
		}

		if item.ClusterId != clusterId || item.PodId != podId || item.DataCenterId != dataCenterId {
			continue
		}

		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, host.ErrNotFound
	}

	res := cloneSlice(items)
	sort.Slice(res, func(i, j int) bool {
		return res[i].Id < res[j].Id
	})
	return res, nil
}

func (s *store) findById(id uint64) *host.Record {
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

func cloneSlice(items []*host.Record) []*host.Record {
	res := make([]*host.Record, 0, len(items))
	for _, item := range items {
		cloned := item.Clone()
		res = append(res, &cloned)
	}
	return res
}
