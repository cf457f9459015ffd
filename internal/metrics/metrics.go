package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors of the export engine.
type Metrics struct {
	ExportsStarted  *prometheus.CounterVec
	ExportsFinished *prometheus.CounterVec
	RowsStreamed    prometheus.Counter
	ActiveJobs      prometheus.Gauge
	SweptArtifacts  prometheus.Counter
}

// New registers the collectors on the default registry. Call once at
// startup.
func New() *Metrics {
	return &Metrics{
		ExportsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotel_admin_exports_started_total",
				Help: "Exports accepted for execution",
			},
			[]string{"kind", "format", "mode"},
		),
		ExportsFinished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hotel_admin_exports_finished_total",
				Help: "Exports finished, by outcome",
			},
			[]string{"kind", "format", "mode", "outcome"},
		),
		RowsStreamed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hotel_admin_export_rows_streamed_total",
				Help: "Catalog rows streamed into export artifacts",
			},
		),
		ActiveJobs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "hotel_admin_export_active_jobs",
				Help: "Export jobs currently processing",
			},
		),
		SweptArtifacts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "hotel_admin_export_swept_artifacts_total",
				Help: "Expired artifacts removed by the sweeper",
			},
		),
	}
}
