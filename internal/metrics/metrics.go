package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "swing_signals"

// Recorder collects per-run pipeline metrics on a private registry so that
// they can be dumped to a node_exporter textfile after each run.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastSuccess   prometheus.Gauge
	signals       *prometheus.GaugeVec
	symbols       *prometheus.GaugeVec
	sourceSkipped *prometheus.CounterVec
	fetchFailures *prometheus.CounterVec
	combinedRows  prometheus.Gauge
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of one pipeline run",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		lastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		signals: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "signals",
				Help:      "Signals generated in the last run",
			},
			[]string{"strategy"},
		),
		symbols: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "symbols",
				Help:      "Watchlist symbols in the last run by price data state",
			},
			[]string{"state"},
		),
		sourceSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_skipped_total",
				Help:      "Watchlist sources skipped because the screener was unavailable",
			},
			[]string{"strategy"},
		),
		fetchFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_failures_total",
				Help:      "Per-symbol price download failures",
			},
			[]string{"source"},
		),
		combinedRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "combined_rows",
			Help:      "Rows in the combined signal table after the last run",
		}),
	}
}

func (r *Recorder) RecordRun(ok bool, d time.Duration, at time.Time) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	r.runsTotal.WithLabelValues(outcome).Inc()
	r.runDuration.Observe(d.Seconds())
	if ok {
		r.lastSuccess.Set(float64(at.Unix()))
	}
}

func (r *Recorder) RecordSignals(strategy string, n int) {
	r.signals.WithLabelValues(strategy).Set(float64(n))
}

func (r *Recorder) RecordSymbols(withData, missing int) {
	r.symbols.WithLabelValues("with_data").Set(float64(withData))
	r.symbols.WithLabelValues("missing").Set(float64(missing))
}

func (r *Recorder) RecordSourceSkipped(strategy string) {
	r.sourceSkipped.WithLabelValues(strategy).Inc()
}

func (r *Recorder) RecordFetchFailure(source string) {
	r.fetchFailures.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordCombinedRows(n int) {
	r.combinedRows.Set(float64(n))
}

// WriteTextfile dumps every metric in the Prometheus text format. The file
// is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
