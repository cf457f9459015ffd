package cache

import (
	"context"
	"time"

	"github.com/hoteldex/hotel-admin/internal/model"
)

// Cache carries the export task queue and a fast status mirror for
// polling. Postgres remains the source of truth for job state; the
// mirror only spares it the poll traffic.
type Cache interface {
	PushExportTask(ctx context.Context, task model.ExportTask) error
	// PopExportTask blocks up to timeout; it returns nil when the queue
	// stayed empty.
	PopExportTask(ctx context.Context, timeout time.Duration) (*model.ExportTask, error)

	// SetJobStatus mirrors the job's owner and status word; GetJobStatus
	// returns nil on a miss.
	SetJobStatus(ctx context.Context, jobID string, state model.JobState) error
	GetJobStatus(ctx context.Context, jobID string) (*model.JobState, error)

	Close() error
}
