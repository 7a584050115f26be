package reaction

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricTogglesTotal    = "reaction_toggles_total"
	MetricToggleConflicts = "reaction_toggle_conflicts_total"
	MetricBulkBatchSize   = "reaction_bulk_batch_size"
)

// Metrics contains Prometheus metrics for reaction operations.
// All operations are thread-safe.
type Metrics struct {
	togglesTotal    *prometheus.CounterVec
	toggleConflicts prometheus.Counter
	bulkBatchSize   prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		togglesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricTogglesTotal,
				Help: "Total number of reaction toggles by type and resulting state",
			},
			[]string{"type", "action"},
		),
		toggleConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricToggleConflicts,
				Help: "Total number of toggle insert races resolved by retry",
			},
		),
		bulkBatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricBulkBatchSize,
				Help:    "Number of content ids per bulk totals query",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 200},
			},
		),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.togglesTotal,
		m.toggleConflicts,
		m.bulkBatchSize,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordToggle increments the toggle counter for a type/action pair.
func (m *Metrics) RecordToggle(t Type, active bool) {
	action := "off"
	if active {
		action = "on"
	}
	m.togglesTotal.WithLabelValues(string(t), action).Inc()
}

// RecordConflict increments the insert-race counter.
func (m *Metrics) RecordConflict() {
	m.toggleConflicts.Inc()
}

// RecordBulkBatch observes a bulk query batch size.
func (m *Metrics) RecordBulkBatch(size int) {
	m.bulkBatchSize.Observe(float64(size))
}
