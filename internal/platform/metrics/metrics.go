package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the passport core. Counters track the
// permission-gated mutations; histograms cover the two critical paths.
type Metrics struct {
	DraftWrites      prometheus.Counter
	RejectedWrites   prometheus.Counter
	ResolverDenials  prometheus.Counter
	GrantsIssued     prometheus.Counter
	GrantsSubmitted  prometheus.Counter
	VersionsCreated  prometheus.Counter
	PublishConflicts prometheus.Counter

	WriteDuration   prometheus.Histogram
	PublishDuration prometheus.Histogram
}

// New creates a Metrics instance with all passport core metrics registered.
func New() *Metrics {
	return &Metrics{
		DraftWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traceport_draft_writes_total",
			Help: "Total number of applied draft field writes",
		}),
		RejectedWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traceport_rejected_writes_total",
			Help: "Total number of out-of-scope field writes dropped",
		}),
		ResolverDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traceport_resolver_denials_total",
			Help: "Total number of capability resolutions ending in denial",
		}),
		GrantsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traceport_grants_issued_total",
			Help: "Total number of contributor grants issued",
		}),
		GrantsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traceport_grants_submitted_total",
			Help: "Total number of contributor grants submitted",
		}),
		VersionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traceport_versions_created_total",
			Help: "Total number of published passport versions",
		}),
		PublishConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "traceport_publish_conflicts_total",
			Help: "Total number of publishes lost to a version race",
		}),
		WriteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "traceport_draft_write_duration_seconds",
			Help:    "Duration of ApplyFieldWrites operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		PublishDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "traceport_publish_duration_seconds",
			Help:    "Duration of publish transactions",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveWrite records the duration of an ApplyFieldWrites call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveWrite(start time.Time) {
	m.WriteDuration.Observe(time.Since(start).Seconds())
}

// ObservePublish records the duration of a publish.
func (m *Metrics) ObservePublish(start time.Time) {
	m.PublishDuration.Observe(time.Since(start).Seconds())
}
