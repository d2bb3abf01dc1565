package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes extraction run counters. A nil registerer yields working
// but unregistered collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	records     *prometheus.GaugeVec
	windows     *prometheus.CounterVec
	pageErrors  prometheus.Counter
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salarios",
			Name:      "pipeline_runs_total",
			Help:      "Extraction runs by outcome.",
		}, []string{"status"}),
		records: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "salarios",
			Name:      "pipeline_records",
			Help:      "Record counts of the last completed run.",
		}, []string{"kind"}),
		windows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salarios",
			Name:      "decoder_windows_total",
			Help:      "Decoded cell windows by outcome.",
		}, []string{"outcome"}),
		pageErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "salarios",
			Name:      "extractor_page_errors_total",
			Help:      "Pages whose content could not be read.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salarios",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of extraction runs.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "salarios",
			Name:      "pipeline_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
}

func (m *Metrics) observeRun(report *RunReport, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(report.Duration.Seconds())
	if err != nil {
		m.runs.WithLabelValues("failure").Inc()
		return
	}
	m.runs.WithLabelValues("success").Inc()
	m.records.WithLabelValues("found").Set(float64(report.Found))
	m.records.WithLabelValues("retained").Set(float64(report.Retained))
	m.records.WithLabelValues("dropped").Set(float64(report.Dropped))
	m.lastSuccess.Set(float64(time.Now().Unix()))
}

func (m *Metrics) observeDecode(accepted, rejected, pageErrors int) {
	if m == nil {
		return
	}
	m.windows.WithLabelValues("accepted").Add(float64(accepted))
	m.windows.WithLabelValues("rejected").Add(float64(rejected))
	m.pageErrors.Add(float64(pageErrors))
}
