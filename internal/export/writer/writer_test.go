package writer

import (
	"context"

	"github.com/hoteldex/hotel-admin/internal/model"
)

// sliceSource serves pre-built batches, optionally failing after a given
// number of them.
type sliceSource struct {
	batches  []*model.Batch
	failAt   int
	failWith error
	served   int
}

func (s *sliceSource) Next(ctx context.Context) (*model.Batch, error) {
	if s.failWith != nil && s.served == s.failAt {
		return nil, s.failWith
	}
	if s.served >= len(s.batches) {
		return nil, nil
	}
	b := s.batches[s.served]
	s.served++
	return b, nil
}

func hotelRow(id int64, source, name, rating string) model.Row {
	return model.Row{
		ID: id,
		Cells: []string{
			"1", source, name, "DE", "Berlin",
			"resort", rating, "2026-01-01T00:00:00Z",
			"Main St 1; Side St 2", "reception@example.com",
		},
		Doc: map[string]any{
			"id":     id,
			"source": source,
			"name":   name,
		},
		Details: [][]string{{"1", "Main St 1", "52.5", "13.4"}},
	}
}
