// Package metrics holds the Prometheus instrumentation of the screener.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch results recorded by ObserveFetch.
const (
	FetchOK    = "ok"
	FetchError = "error"
)

// Metrics holds all Prometheus metrics for the screener. Each instance owns a
// private registry.
type Metrics struct {
	Registry *prometheus.Registry

	DetectionsTotal    *prometheus.CounterVec // labels: outcome
	PatternMatches     *prometheus.CounterVec // labels: pattern
	DroppedElements    prometheus.Counter
	SourceFetchTotal   *prometheus.CounterVec // labels: source, result
	SourceFetchDur     *prometheus.HistogramVec
	DetectionDur       prometheus.Histogram
	CircuitBreakerState *prometheus.GaugeVec // labels: source
}

// New creates and registers the screener metrics.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		DetectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_detections_total",
			Help: "Detections run, by outcome",
		}, []string{"outcome"}),
		PatternMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_pattern_matches_total",
			Help: "Pattern matches reported, by pattern",
		}, []string{"pattern"}),
		DroppedElements: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "screener_dropped_elements_total",
			Help: "Raw price elements discarded during normalization",
		}),
		SourceFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screener_source_fetch_total",
			Help: "Price source attempts, by source and result",
		}, []string{"source", "result"}),
		SourceFetchDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screener_source_fetch_duration_seconds",
			Help:    "Price source attempt latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		DetectionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "screener_detection_duration_seconds",
			Help:    "Normalization plus rule evaluation latency",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "screener_circuit_breaker_state",
			Help: "Source circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"source"}),
	}

	m.Registry.MustRegister(
		m.DetectionsTotal,
		m.PatternMatches,
		m.DroppedElements,
		m.SourceFetchTotal,
		m.SourceFetchDur,
		m.DetectionDur,
		m.CircuitBreakerState,
	)

	return m
}

// ObserveDetection records one detection.
func (m *Metrics) ObserveDetection(outcome string, patterns []string, dropped int, elapsed time.Duration) {
	m.DetectionsTotal.WithLabelValues(outcome).Inc()
	for _, p := range patterns {
		m.PatternMatches.WithLabelValues(p).Inc()
	}
	if dropped > 0 {
		m.DroppedElements.Add(float64(dropped))
	}
	m.DetectionDur.Observe(elapsed.Seconds())
}

// ObserveFetch records one source attempt.
func (m *Metrics) ObserveFetch(source string, elapsed time.Duration, err error) {
	result := FetchOK
	if err != nil {
		result = FetchError
	}
	m.SourceFetchTotal.WithLabelValues(source, result).Inc()
	m.SourceFetchDur.WithLabelValues(source).Observe(elapsed.Seconds())
}

// SetBreakerState records a circuit breaker transition.
func (m *Metrics) SetBreakerState(source, state string) {
	var v float64
	switch state {
	case "OPEN":
		v = 1
	case "HALF_OPEN":
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(source).Set(v)
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
