package export

import (
	"context"

	"github.com/hoteldex/hotel-admin/internal/model"
)

// BillingLedger records successful exports against the requester's
// allowance. Implementations live upstream; a failed or rejected export
// must never reach the ledger.
type BillingLedger interface {
	ChargeExport(ctx context.Context, userID int64, kind model.Kind, records int64) error
}

// AuditEvent is one export lifecycle entry.
type AuditEvent struct {
	JobID   string
	UserID  int64
	Kind    model.Kind
	Format  model.Format
	Mode    string
	Outcome string
	Detail  string
}

// AuditSink receives export lifecycle events. Sinks must not block the
// export path; delivery is best effort.
type AuditSink interface {
	RecordExport(ctx context.Context, event AuditEvent)
}

// Execution modes and outcomes stamped into audit events and metrics.
const (
	ModeSync  = "sync"
	ModeAsync = "async"

	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
)
