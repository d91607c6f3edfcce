package reports

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for report aggregation.
type Metrics struct {
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

// NewMetrics registers the report collectors. Collectors already registered
// on reg are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tierline_report_build_duration_seconds",
			Help:    "Duration of report aggregation including ledger fetches.",
			Buckets: prometheus.DefBuckets,
		}, []string{"report"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tierline_report_rows_total",
			Help: "Rows produced by report aggregation.",
		}, []string{"report"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tierline_report_skipped_members_total",
			Help: "Members skipped because their records could not be loaded.",
		}, []string{"report"}),
	}
	var err error
	if m.duration, err = registerHistogram(reg, m.duration); err != nil {
		return nil, err
	}
	if m.rows, err = registerCounter(reg, m.rows); err != nil {
		return nil, err
	}
	if m.skipped, err = registerCounter(reg, m.skipped); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(kind Kind, d time.Duration, rows, skipped int) {
	if m == nil {
		return
	}
	label := string(kind)
	m.duration.WithLabelValues(label).Observe(d.Seconds())
	m.rows.WithLabelValues(label).Add(float64(rows))
	if skipped > 0 {
		m.skipped.WithLabelValues(label).Add(float64(skipped))
	}
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func registerHistogram(reg prometheus.Registerer, h *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := reg.Register(h); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return h, nil
}

// SkippedCollector exposes the skipped-member counter.
func (m *Metrics) SkippedCollector() prometheus.Collector {
	return m.skipped
}
