package store

import (
	"context"
	"time"

	"github.com/hoteldex/hotel-admin/internal/model"
)

type Store interface {
	Job() JobStore
	Catalog() CatalogStore
	Source() SourceStore

	// ------------ Database Management ------------ //
	Open() error
	Close() error
}

// JobStore persists export job records and their status transitions.
// Implementations must refuse transitions the state machine does not
// allow and must never decrease progress counters.
type JobStore interface {
	Insert(ctx context.Context, job *model.ExportJob) error
	Get(ctx context.Context, id string) (*model.ExportJob, error)
	// GetOwned resolves a job only when it belongs to userID; a foreign
	// job is indistinguishable from an unknown one.
	GetOwned(ctx context.Context, id string, userID int64) (*model.ExportJob, error)
	ListOwned(ctx context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error)

	MarkProcessing(ctx context.Context, id string, totalRecords int64, startedAt time.Time) error
	UpdateProgress(ctx context.Context, id string, processedRecords int64, progress int) error
	MarkCompleted(ctx context.Context, id, filePath string, fileSize int64, completedAt, expiresAt time.Time) error
	MarkFailed(ctx context.Context, id, errorMessage string, completedAt time.Time) error

	ListExpired(ctx context.Context, asOf time.Time, limit int) ([]*model.ExportJob, error)
	// ClearArtifact drops the file reference of a swept job while keeping
	// the record for audit.
	ClearArtifact(ctx context.Context, id string) error
}

// ScopedQuery is an executable, count-estimable query over one export
// kind. Where always narrows by the caller's allowed-source set; it is
// built by BuildQuery, never by hand.
type ScopedQuery struct {
	Kind  model.Kind
	Where string
	Args  []any
}

// BatchIterator is a finite, single-pass sequence of row batches. Next
// returns nil once the sequence is exhausted; any error is terminal for
// the whole export. Re-iterating requires a new Stream call, which
// re-executes the query against current data.
type BatchIterator interface {
	Next(ctx context.Context) (*model.Batch, error)
	Close()
}

// CatalogStore scopes and executes queries against the hotel catalog.
type CatalogStore interface {
	// BuildQuery translates a filter spec plus the caller's
	// allowed-source set into a scoped query. The allowed-source
	// narrowing is applied even when the filter names no sources.
	BuildQuery(kind model.Kind, filter model.FilterSpec, allowedSources []string) (*ScopedQuery, error)
	// EstimateCount runs a cheap aggregate count with no row
	// materialization. It feeds the sync/async decision and the job's
	// total-record-count; streaming remains the source of truth.
	EstimateCount(ctx context.Context, q *ScopedQuery) (int64, error)
	Stream(ctx context.Context, q *ScopedQuery, batchSize int) (BatchIterator, error)
}

// SourceStore reads data-source grants and disablement markers.
type SourceStore interface {
	All(ctx context.Context) ([]string, error)
	Disabled(ctx context.Context) ([]string, error)
	Granted(ctx context.Context, userID int64) ([]string, error)
}
