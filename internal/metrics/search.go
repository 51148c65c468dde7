package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TrevorS/geoap"
)

// Recorder exports preference search progress as Prometheus metrics.
// It implements geoap.SearchObserver.
type Recorder struct {
	registry *prometheus.Registry

	probesTotal    *prometheus.CounterVec
	oracleDuration prometheus.Histogram
	preference     prometheus.Gauge
	quantile       prometheus.Gauge
	clusters       prometheus.Gauge
	budget         prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry. Every metric carries
// a constant dataset label.
func NewRecorder(dataset string) *Recorder {
	labels := prometheus.Labels{"dataset": dataset}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "geoap",
				Name:        "search_probes_total",
				Help:        "Total number of clustering probes",
				ConstLabels: labels,
			},
			[]string{"phase", "result"}, // result: clusters, empty, degenerate
		),
		oracleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace:   "geoap",
				Name:        "oracle_duration_seconds",
				Help:        "Duration of one clustering run in seconds",
				Buckets:     []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
				ConstLabels: labels,
			},
		),
		preference: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "geoap",
			Name:        "search_next_preference",
			Help:        "Preference proposed for the next probe",
			ConstLabels: labels,
		}),
		quantile: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "geoap",
			Name:        "search_quantile",
			Help:        "Current similarity quantile level",
			ConstLabels: labels,
		}),
		clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "geoap",
			Name:        "search_last_clusters",
			Help:        "Cluster count reported by the latest probe",
			ConstLabels: labels,
		}),
		budget: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "geoap",
			Name:        "search_retry_budget_remaining",
			Help:        "Retry budget left",
			ConstLabels: labels,
		}),
	}
	r.registry.MustRegister(r.probesTotal, r.oracleDuration, r.preference, r.quantile, r.clusters, r.budget)
	return r
}

// ObserveAttempt records one probe.
func (r *Recorder) ObserveAttempt(a geoap.Attempt) {
	result := "clusters"
	switch {
	case a.Degenerate:
		result = "degenerate"
	case a.Clusters == 0:
		result = "empty"
	}
	r.probesTotal.WithLabelValues(string(a.Phase), result).Inc()
	r.oracleDuration.Observe(a.Duration.Seconds())
	r.preference.Set(a.Next)
	r.quantile.Set(a.Quantile)
	r.clusters.Set(float64(a.Clusters))
	r.budget.Set(float64(a.Budget))
}

// WriteTextfile writes all metrics to path in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
