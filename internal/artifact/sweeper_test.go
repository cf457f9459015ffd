package artifact

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoteldex/hotel-admin/internal/model"
)

// sweepJobStore stubs just what the sweeper touches.
type sweepJobStore struct {
	expired []*model.ExportJob
	cleared []string
}

func (s *sweepJobStore) Insert(ctx context.Context, job *model.ExportJob) error { return nil }
func (s *sweepJobStore) Get(ctx context.Context, id string) (*model.ExportJob, error) {
	return nil, nil
}
func (s *sweepJobStore) GetOwned(ctx context.Context, id string, userID int64) (*model.ExportJob, error) {
	return nil, nil
}
func (s *sweepJobStore) ListOwned(ctx context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error) {
	return nil, nil
}
func (s *sweepJobStore) MarkProcessing(ctx context.Context, id string, totalRecords int64, startedAt time.Time) error {
	return nil
}
func (s *sweepJobStore) UpdateProgress(ctx context.Context, id string, processedRecords int64, progress int) error {
	return nil
}
func (s *sweepJobStore) MarkCompleted(ctx context.Context, id, filePath string, fileSize int64, completedAt, expiresAt time.Time) error {
	return nil
}
func (s *sweepJobStore) MarkFailed(ctx context.Context, id, errorMessage string, completedAt time.Time) error {
	return nil
}
func (s *sweepJobStore) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]*model.ExportJob, error) {
	return s.expired, nil
}
func (s *sweepJobStore) ClearArtifact(ctx context.Context, id string) error {
	s.cleared = append(s.cleared, id)
	return nil
}

func TestSweepRemovesExpiredArtifacts(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	for _, id := range []string{"old-1", "old-2"} {
		f, err := store.Allocate(id, model.FormatCSV)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	jobs := &sweepJobStore{expired: []*model.ExportJob{
		{ID: "old-1", Format: model.FormatCSV},
		{ID: "old-2", Format: model.FormatCSV},
	}}

	var swept int
	s := NewSweeper(store, jobs, "@hourly", func(n int) { swept = n })

	deleted, err := s.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.Equal(t, 2, swept)
	assert.Equal(t, []string{"old-1", "old-2"}, jobs.cleared)

	for _, id := range []string{"old-1", "old-2"} {
		_, err := os.Stat(store.Path(id, model.FormatCSV))
		assert.True(t, os.IsNotExist(err))
	}
}

func TestSweepNothingExpired(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	called := false
	s := NewSweeper(store, &sweepJobStore{}, "@hourly", func(int) { called = true })

	deleted, err := s.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.False(t, called)
}

func TestSweeperRejectsBadSchedule(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	s := NewSweeper(store, &sweepJobStore{}, "not a schedule", nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestSweeperEmptyScheduleDisabled(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	s := NewSweeper(store, &sweepJobStore{}, "", nil)
	assert.NoError(t, s.Start(context.Background()))
}
