package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the compositor metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	reg *prometheus.Registry

	// PeriodsProcessed counts sessions (or fund tickers) a compositor finished
	PeriodsProcessed *prometheus.CounterVec

	// RowsWritten counts rows committed per derived table
	RowsWritten *prometheus.CounterVec

	// DataGaps counts entities skipped for missing observations or undefined ratios
	DataGaps *prometheus.CounterVec

	RunDuration *prometheus.HistogramVec

	// Checkpoint is the resume point per table as a unix timestamp
	Checkpoint *prometheus.GaugeVec

	// InputCoverage is the last gate's coverage ratio per input
	InputCoverage *prometheus.GaugeVec
}

// New creates a registry with process and Go collectors attached
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		PeriodsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ashare_compositor_periods_total",
				Help: "Periods processed by each compositor",
			},
			[]string{"compositor"},
		),

		RowsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ashare_compositor_rows_written_total",
				Help: "Rows written to each derived table",
			},
			[]string{"compositor", "table"},
		),

		DataGaps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ashare_compositor_data_gaps_total",
				Help: "Entities skipped because of a vendor data gap",
			},
			[]string{"compositor"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ashare_compositor_run_duration_seconds",
				Help:    "Duration of a compositor run in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"compositor", "result"},
		),

		Checkpoint: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ashare_checkpoint_timestamp_seconds",
				Help: "Latest date present in each derived table",
			},
			[]string{"table"},
		),

		InputCoverage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ashare_input_coverage_ratio",
				Help: "Share of trading stocks with each raw input on the gated session",
			},
			[]string{"input"},
		),
	}

	r.reg.MustRegister(
		r.PeriodsProcessed,
		r.RowsWritten,
		r.DataGaps,
		r.RunDuration,
		r.Checkpoint,
		r.InputCoverage,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// PeriodDone records one committed period
func (r *Registry) PeriodDone(compositor, table string, rows int) {
	if r == nil {
		return
	}
	r.PeriodsProcessed.WithLabelValues(compositor).Inc()
	if rows > 0 {
		r.RowsWritten.WithLabelValues(compositor, table).Add(float64(rows))
	}
}

// DataGap records one skipped entity
func (r *Registry) DataGap(compositor string) {
	if r == nil {
		return
	}
	r.DataGaps.WithLabelValues(compositor).Inc()
}

// RunFinished records a run's duration and outcome
func (r *Registry) RunFinished(compositor string, started time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.RunDuration.WithLabelValues(compositor, result).Observe(time.Since(started).Seconds())
}

// SetCheckpoint publishes a table's resume point
func (r *Registry) SetCheckpoint(table string, at time.Time) {
	if r == nil {
		return
	}
	r.Checkpoint.WithLabelValues(table).Set(float64(at.Unix()))
}

// SetCoverage publishes one input's coverage ratio
func (r *Registry) SetCoverage(input string, ratio float64) {
	if r == nil {
		return
	}
	r.InputCoverage.WithLabelValues(input).Set(ratio)
}
