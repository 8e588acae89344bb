// Package metrics provides Prometheus-based metrics collection for a recon run.
// Each run owns a private registry; the collected values can be written in the
// Prometheus text exposition format for a node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace for all recon metrics
	namespace = "recon"

	// Subsystems
	subsystemScan  = "scan"
	subsystemProbe = "probe"
)

// Probe kinds and outcomes used as label values.
const (
	KindWeb    = "web"
	KindBanner = "banner"

	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
)

// Recorder holds all Prometheus collectors for one run. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	scanDuration       prometheus.Gauge
	engineErrors       prometheus.Counter
	servicesDiscovered prometheus.Gauge
	probesTotal        *prometheus.CounterVec
	probeDuration      *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRecorder creates a recorder with all collectors registered on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.scanDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of the scan engine invocation",
		},
	)

	r.engineErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "engine_errors_total",
			Help:      "Scan engine invocations that exited with an error",
		},
	)

	r.servicesDiscovered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "services_discovered",
			Help:      "Open services parsed from the structured report",
		},
	)

	r.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Follow-up probes by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	r.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of follow-up probes in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"kind"},
	)

	r.registry.MustRegister(
		r.scanDuration,
		r.engineErrors,
		r.servicesDiscovered,
		r.probesTotal,
		r.probeDuration,
	)

	return r
}

// ObserveScan records how long the engine ran and whether it failed.
func (r *Recorder) ObserveScan(d time.Duration, err error) {
	if r == nil {
		return
	}
	r.scanDuration.Set(d.Seconds())
	if err != nil {
		r.engineErrors.Inc()
	}
}

// SetServices records the size of the parsed inventory.
func (r *Recorder) SetServices(n int) {
	if r == nil {
		return
	}
	r.servicesDiscovered.Set(float64(n))
}

// ObserveProbe records one probe of the given kind and outcome.
func (r *Recorder) ObserveProbe(kind, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.probesTotal.WithLabelValues(kind, outcome).Inc()
	r.probeDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// GetRegistry returns the underlying registry.
func (r *Recorder) GetRegistry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
