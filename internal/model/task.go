package model

import "encoding/json"

// ExportTask is the queued unit of work handed to a background worker.
// It must be JSON-serializable: the redis queue carries it between the
// submitting request and the worker that executes it.
type ExportTask struct {
	JobID    string          `json:"job_id"`
	UserID   int64           `json:"user_id"`
	Role     string          `json:"role"`
	Kind     Kind            `json:"kind"`
	Format   Format          `json:"format"`
	Criteria json.RawMessage `json:"criteria"`
}
