package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// Metrics provides observability for the registration workflow.
type Metrics struct {
	RegistrationsCreated prometheus.Counter
	ValidationFailures   *prometheus.CounterVec
	DuplicateConflicts   prometheus.Counter
	StorageFailures      *prometheus.CounterVec
	RegisterDuration     prometheus.Histogram
	ExportDuration       prometheus.Histogram
	ExportRows           prometheus.Gauge
}

// New registers the registration metrics with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RegistrationsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "teamreg_registrations_created_total",
			Help: "Total number of team registrations committed",
		}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teamreg_validation_failures_total",
			Help: "Validation errors by field (empty field for general errors)",
		}, []string{"field"}),
		DuplicateConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "teamreg_duplicate_email_conflicts_total",
			Help: "Commits rejected by the email unique constraint",
		}),
		StorageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "teamreg_storage_failures_total",
			Help: "Store operations that failed unexpectedly",
		}, []string{"operation"}),
		RegisterDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "teamreg_register_duration_seconds",
			Help:    "Duration of validate-and-commit",
			Buckets: durationBuckets,
		}),
		ExportDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "teamreg_export_duration_seconds",
			Help:    "Duration of CSV export",
			Buckets: durationBuckets,
		}),
		ExportRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "teamreg_export_rows",
			Help: "Rows in the most recent CSV export",
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.RegistrationsCreated.Inc()
}

func (m *Metrics) IncrementValidationFailure(field string) {
	m.ValidationFailures.WithLabelValues(field).Inc()
}

func (m *Metrics) IncrementDuplicate() {
	m.DuplicateConflicts.Inc()
}

func (m *Metrics) IncrementStorageFailure(operation string) {
	m.StorageFailures.WithLabelValues(operation).Inc()
}

// ObserveRegister records a Register call. Call with time.Now() at the start.
func (m *Metrics) ObserveRegister(start time.Time) {
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

// ObserveExport records an export and its size.
func (m *Metrics) ObserveExport(start time.Time, rows int) {
	m.ExportDuration.Observe(time.Since(start).Seconds())
	m.ExportRows.Set(float64(rows))
}
