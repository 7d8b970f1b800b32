// Package metrics provides Prometheus instrumentation for dispatch batches and LLM calls.
//
// A nil *Metrics is valid and records nothing, so callers can pass it through
// without checks.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for dispatched tasks.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeCanceled = "canceled"
)

// Metrics holds the collectors registered by New.
type Metrics struct {
	// DispatchTasks counts finished dispatch tasks by mode and outcome.
	DispatchTasks *prometheus.CounterVec

	// DispatchDuration tracks wall time of whole dispatch batches.
	DispatchDuration *prometheus.HistogramVec

	// LLMRequests counts provider calls by provider and HTTP status ("error" for transport failures).
	LLMRequests *prometheus.CounterVec

	// LLMDuration tracks provider call latency including the full streamed body.
	LLMDuration *prometheus.HistogramVec

	// StreamSkippedLines counts stream lines that carried a data: prefix but no parseable record.
	StreamSkippedLines *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "galaxy_dispatch_tasks_total",
				Help: "Total number of dispatched tasks by outcome.",
			},
			[]string{"mode", "outcome"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "galaxy_dispatch_duration_seconds",
				Help:    "Wall time of dispatch batches in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"mode"},
		),
		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "galaxy_llm_requests_total",
				Help: "Total number of LLM provider requests by status.",
			},
			[]string{"provider", "status"},
		),
		LLMDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "galaxy_llm_request_duration_seconds",
				Help:    "LLM provider request latency in seconds, including streamed bodies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),
		StreamSkippedLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "galaxy_llm_stream_skipped_lines_total",
				Help: "Streamed data lines that could not be parsed and were skipped.",
			},
			[]string{"provider"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.DispatchTasks,
			m.DispatchDuration,
			m.LLMRequests,
			m.LLMDuration,
			m.StreamSkippedLines,
		)
	}
	return m
}

// ObserveTask records one finished task.
func (m *Metrics) ObserveTask(mode, outcome string) {
	if m == nil {
		return
	}
	m.DispatchTasks.WithLabelValues(mode, outcome).Inc()
}

// ObserveDispatch records the duration of one batch.
func (m *Metrics) ObserveDispatch(mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveLLM records one provider call. status is the HTTP status code, or 0 when
// the request never produced a response.
func (m *Metrics) ObserveLLM(provider string, status int, d time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status != 0 {
		label = strconv.Itoa(status)
	}
	m.LLMRequests.WithLabelValues(provider, label).Inc()
	m.LLMDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveSkippedLines adds n skipped stream lines for provider.
func (m *Metrics) ObserveSkippedLines(provider string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.StreamSkippedLines.WithLabelValues(provider).Add(float64(n))
}
