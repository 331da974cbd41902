package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// consolidation pipeline.
type Metrics struct {
	RecordsLoaded       prometheus.Counter
	RecordsConsolidated prometheus.Counter
	DuplicatesDropped   prometheus.Counter
	Anomalies           *prometheus.CounterVec // label: kind
	Runs                *prometheus.CounterVec // label: outcome={succeeded,failed}
	PipelineRunning     prometheus.Gauge

	// Per-era processing metrics.
	EraRecords      prometheus.Histogram
	EraLoadDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emergencias_etl",
			Name:      "records_loaded_total",
			Help:      "Total raw rows parsed into canonical records.",
		}),
		RecordsConsolidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emergencias_etl",
			Name:      "records_consolidated_total",
			Help:      "Total records retained in the final table.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "emergencias_etl",
			Name:      "duplicates_dropped_total",
			Help:      "Total exact-duplicate records removed.",
		}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emergencias_etl",
			Name:      "anomalies_total",
			Help:      "Anomaly report entries by kind.",
		}, []string{"kind"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emergencias_etl",
			Name:      "runs_total",
			Help:      "Consolidation runs by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "emergencias_etl",
			Name:      "pipeline_running",
			Help:      "1 while a consolidation run is active, 0 otherwise.",
		}),
		EraRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "emergencias_etl",
			Name:      "era_records",
			Help:      "Number of rows per era extract.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000},
		}),
		EraLoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "emergencias_etl",
			Name:      "era_load_duration_seconds",
			Help:      "Duration of one era's load+resolve pass.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	prometheus.MustRegister(
		m.RecordsLoaded,
		m.RecordsConsolidated,
		m.DuplicatesDropped,
		m.Anomalies,
		m.Runs,
		m.PipelineRunning,
		m.EraRecords,
		m.EraLoadDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsLoaded:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: "emergencias_etl", Name: "records_loaded_total"}),
		RecordsConsolidated: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "emergencias_etl", Name: "records_consolidated_total"}),
		DuplicatesDropped:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "emergencias_etl", Name: "duplicates_dropped_total"}),
		Anomalies:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "emergencias_etl", Name: "anomalies_total"}, []string{"kind"}),
		Runs:                prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "emergencias_etl", Name: "runs_total"}, []string{"outcome"}),
		PipelineRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "emergencias_etl", Name: "pipeline_running"}),
		EraRecords:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "emergencias_etl", Name: "era_records"}),
		EraLoadDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "emergencias_etl", Name: "era_load_duration_seconds"}),
	}
}
