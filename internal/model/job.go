package model

import (
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// CanTransitionTo enforces the job state machine:
// pending -> processing -> {completed | failed}. Terminal states never
// transition again.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobPending:
		return next == JobProcessing || next == JobFailed
	case JobProcessing:
		return next == JobCompleted || next == JobFailed
	default:
		return false
	}
}

// JobState is the cache-mirrored slice of a job: the owner and the
// status word. Carrying the owner lets the poll path answer without a
// database round trip while still refusing foreign callers.
type JobState struct {
	UserID int64     `json:"user_id"`
	Status JobStatus `json:"status"`
}

// ExportJob is the persisted record of one asynchronous export. Exactly
// one of FilePath/ErrorMessage is set once the job is terminal. Progress
// and ProcessedRecords never decrease.
type ExportJob struct {
	ID       string          `db:"id"`
	UserID   int64           `db:"user_id"`
	Kind     Kind            `db:"kind"`
	Format   Format          `db:"format"`
	Criteria json.RawMessage `db:"criteria"`

	Status           JobStatus `db:"status"`
	Progress         int       `db:"progress"`
	ProcessedRecords int64     `db:"processed_records"`
	TotalRecords     int64     `db:"total_records"`

	FilePath     *string `db:"file_path"`
	FileSize     *int64  `db:"file_size"`
	ErrorMessage *string `db:"error_message"`

	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	ExpiresAt   *time.Time `db:"expires_at"`
}

// Expired reports whether the job's artifact is past retention at now.
func (j *ExportJob) Expired(now time.Time) bool {
	return j.ExpiresAt != nil && now.After(*j.ExpiresAt)
}

// FileName is the download name of the artifact.
func (j *ExportJob) FileName() string {
	return j.ID + "." + j.Format.Extension()
}
