package app

import (
	"context"
	"log/slog"

	"github.com/hoteldex/hotel-admin/internal/export"
	"github.com/hoteldex/hotel-admin/internal/model"
)

// logLedger emits billable export events to the structured log. The
// real ledger is an upstream service consuming these events; this
// backend only decides what is billable (completed exports, nothing
// else).
type logLedger struct {
	log *slog.Logger
}

func newLogLedger() *logLedger {
	return &logLedger{log: slog.Default().With("component", "export.billing")}
}

var _ export.BillingLedger = (*logLedger)(nil)

func (l *logLedger) ChargeExport(ctx context.Context, userID int64, kind model.Kind, records int64) error {
	l.log.InfoContext(ctx, "hotel_admin.export.charged",
		"user_id", userID,
		"kind", kind,
		"records", records,
	)
	return nil
}
