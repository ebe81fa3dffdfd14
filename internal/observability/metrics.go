package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// modeling pipeline.
type Metrics struct {
	OccurrencesFetched prometheus.Counter
	OccurrencesKept    prometheus.Counter     // after bounding-box/month subset
	LayersLoaded       *prometheus.CounterVec // label: variable
	CellsMasked        prometheus.Counter

	BackgroundRequested prometheus.Counter
	BackgroundKept      prometheus.Counter
	SamplesDropped      *prometheus.CounterVec // label: reason={collision,nodata,duplicate,excluded}

	ModelRuns      prometheus.Counter
	RunAUC         *prometheus.GaugeVec // label: run
	CellsProjected prometheus.Counter

	StageDuration   *prometheus.HistogramVec // label: stage
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.OccurrencesFetched,
		m.OccurrencesKept,
		m.LayersLoaded,
		m.CellsMasked,
		m.BackgroundRequested,
		m.BackgroundKept,
		m.SamplesDropped,
		m.ModelRuns,
		m.RunAUC,
		m.CellsProjected,
		m.StageDuration,
		m.PipelineRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		OccurrencesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "occurrences_fetched_total",
			Help:      "Occurrence records returned by the remote service.",
		}),
		OccurrencesKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "occurrences_kept_total",
			Help:      "Occurrence records surviving the spatial and temporal subset.",
		}),
		LayersLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "layers_loaded_total",
			Help:      "Raster layers loaded from the catalog by variable.",
		}, []string{"variable"}),
		CellsMasked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "cells_masked_total",
			Help:      "Cells forced to no-data by cross-variable masking.",
		}),
		BackgroundRequested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "background_requested_total",
			Help:      "Background points requested from the sampler.",
		}),
		BackgroundKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "background_kept_total",
			Help:      "Background points surviving deduplication and masking.",
		}),
		SamplesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "samples_dropped_total",
			Help:      "Sample rows dropped during table assembly by reason.",
		}, []string{"reason"}),
		ModelRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "model_runs_total",
			Help:      "Completed model evaluation runs.",
		}),
		RunAUC: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "sdm",
			Name:      "run_auc",
			Help:      "ROC AUC of the latest fit by evaluation run.",
		}, []string{"run"}),
		CellsProjected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sdm",
			Name:      "cells_projected_total",
			Help:      "Grid cells assigned a projected probability.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdm",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sdm",
			Name:      "pipeline_running",
			Help:      "1 while the run is active, 0 once finished.",
		}),
	}
}
