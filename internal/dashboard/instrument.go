package dashboard

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for aggregation cycles.
type Metrics struct {
	sourceFailures *prometheus.CounterVec
	cycles         *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	liveViews      prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the dashboard collectors. A nil registerer uses the default one.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func (m *Metrics) sourceFailed(source string) {
	if m == nil {
		return
	}
	m.sourceFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) cycleDone(role Role, mode Mode, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	m.cycles.WithLabelValues(string(role), mode.String(), outcome).Inc()
	m.duration.WithLabelValues(string(role)).Observe(elapsed.Seconds())
}

func (m *Metrics) viewsChanged(delta float64) {
	if m == nil {
		return
	}
	m.liveViews.Add(delta)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_dashboard_source_failures_total",
		Help: "Collaborator calls that failed and were replaced by their default.",
	}, []string{"source"})
	cycles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_dashboard_cycles_total",
		Help: "Aggregation cycles partitioned by role, mode and outcome.",
	}, []string{"role", "mode", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_dashboard_cycle_duration_seconds",
		Help:    "Duration in seconds of aggregation cycles.",
		Buckets: prometheus.DefBuckets,
	}, []string{"role"})
	views := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "console_dashboard_live_views",
		Help: "Dashboard views currently refreshing in the background.",
	})
	registerer.MustRegister(failures, cycles, duration, views)
	return &Metrics{sourceFailures: failures, cycles: cycles, duration: duration, liveViews: views}
}
