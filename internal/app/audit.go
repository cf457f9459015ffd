package app

import (
	"context"
	"log/slog"

	"github.com/hoteldex/hotel-admin/internal/export"
)

// logAudit writes export lifecycle events to the structured log. The
// central audit pipeline tails the log stream; no direct delivery here.
type logAudit struct {
	log *slog.Logger
}

func newLogAudit() *logAudit {
	return &logAudit{log: slog.Default().With("component", "export.audit")}
}

func (a *logAudit) RecordExport(ctx context.Context, event export.AuditEvent) {
	a.log.InfoContext(ctx, "hotel_admin.export.audit",
		"job_id", event.JobID,
		"user_id", event.UserID,
		"kind", event.Kind,
		"format", event.Format,
		"mode", event.Mode,
		"outcome", event.Outcome,
		"detail", event.Detail,
	)
}
