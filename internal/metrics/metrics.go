package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	WAIncomingMessages *prometheus.CounterVec
	WAOutgoingMessages *prometheus.CounterVec
	DispatchOutcomes   *prometheus.CounterVec
	DispatchDuration   *prometheus.HistogramVec
	FlowTransitions    *prometheus.CounterVec
	DuplicateMessages  prometheus.Counter
	Errors             *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			WAIncomingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wa_incoming_messages_total",
				Help:      "Total incoming WhatsApp messages processed.",
			}, []string{"kind"}),
			WAOutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "wa_outgoing_messages_total",
				Help:      "Total outgoing WhatsApp messages sent.",
			}, []string{"type"}),
			DispatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_outcomes_total",
				Help:      "Dispatch results grouped by route and outcome.",
			}, []string{"route", "outcome"}),
			DispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Latency distribution for message dispatch.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			FlowTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flow_transitions_total",
				Help:      "State machine transitions grouped by flow and state.",
			}, []string{"flow", "state"}),
			DuplicateMessages: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_messages_total",
				Help:      "Messages skipped because they were already processed.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.WAIncomingMessages,
			metricsInstance.WAOutgoingMessages,
			metricsInstance.DispatchOutcomes,
			metricsInstance.DispatchDuration,
			metricsInstance.FlowTransitions,
			metricsInstance.DuplicateMessages,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
