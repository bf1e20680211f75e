package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// API
	AnalysisRequestsTotal *prometheus.CounterVec

	// Pipeline
	StageDuration     *prometheus.HistogramVec
	RecordsProcessed  prometheus.Counter
	AnomaliesDetected *prometheus.CounterVec

	// Delegation
	ExternalCallsTotal     *prometheus.CounterVec
	DelegationResultsTotal *prometheus.CounterVec
}

// NewCollector registers all metrics on reg under namespace
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		AnalysisRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analysis_requests_total",
				Help:      "Total number of analysis requests by outcome",
			},
			[]string{"outcome"}, // "ok", "invalid", "parse_error", "internal_error"
		),

		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 120},
			},
			[]string{"stage"},
		),

		RecordsProcessed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_processed_total",
				Help:      "Total number of sensor records cleaned",
			},
		),

		AnomaliesDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "anomalies_detected_total",
				Help:      "Total number of anomalies detected by severity",
			},
			[]string{"severity"},
		),

		ExternalCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_calls_total",
				Help:      "Calls to the external analysis service by request variant and result",
			},
			[]string{"variant", "result"},
		),

		DelegationResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delegation_results_total",
				Help:      "Final delegation outcomes by result source and terminal state",
			},
			[]string{"source", "state"},
		),
	}
}

// Timer provides timing functionality for operations
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewStageTimer starts timing a pipeline stage
func (c *Collector) NewStageTimer(stage string) *Timer {
	t := &Timer{start: time.Now()}
	if c != nil {
		t.observer = c.StageDuration.WithLabelValues(stage)
	}
	return t
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

// RecordAnalysisRequest increments the request counter for an outcome
func (c *Collector) RecordAnalysisRequest(outcome string) {
	if c == nil {
		return
	}
	c.AnalysisRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordRecords adds to the cleaned record counter
func (c *Collector) RecordRecords(n int) {
	if c == nil {
		return
	}
	c.RecordsProcessed.Add(float64(n))
}

// RecordAnomalies adds detected anomaly counts
func (c *Collector) RecordAnomalies(high, medium int) {
	if c == nil {
		return
	}
	c.AnomaliesDetected.WithLabelValues("high").Add(float64(high))
	c.AnomaliesDetected.WithLabelValues("medium").Add(float64(medium))
}

// RecordExternalCall counts one outbound call to the analysis service
func (c *Collector) RecordExternalCall(variant, result string) {
	if c == nil {
		return
	}
	c.ExternalCallsTotal.WithLabelValues(variant, result).Inc()
}

// RecordDelegation counts a final delegation outcome
func (c *Collector) RecordDelegation(source, state string) {
	if c == nil {
		return
	}
	c.DelegationResultsTotal.WithLabelValues(source, state).Inc()
}
