// Package metrics exposes the gateway's Prometheus collectors, following
// the corpus's promauto registration convention.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReplyOrphanTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_reply_orphan_total",
		Help: "Replies received with no matching pending request",
	})

	ReplyLateCompletionTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_reply_late_completion_total",
		Help: "Replies received after their slot had already timed out or been cancelled",
	})

	ReplyLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_reply_latency_seconds",
		Help:    "Time between publishing a request and observing its reply",
		Buckets: prometheus.DefBuckets,
	})

	UpstreamTimeoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_upstream_timeout_total",
		Help: "Requests that exceeded the bridge await deadline",
	})

	BrokerUnavailableTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_broker_unavailable_total",
		Help: "Requests rejected because the publish circuit breaker was open or publishing failed",
	})

	RequestLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "End-to-end bridged request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"routing_key"})

	AuthFailureTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_auth_failure_total",
		Help: "Requests rejected by the authorization filter",
	})

	// CircuitBreakerState is registered for scraping, but nothing in the
	// gateway sets it, so it always reads 0.
	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_circuit_breaker_state",
		Help: "Publish circuit breaker state: 0=closed, 1=half-open, 2=open",
	})

	PendingSlots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_pending_slots",
		Help: "Number of in-flight correlation registry slots",
	})
)

// ListenerSink adapts the package-level collectors to listener.Metrics.
type ListenerSink struct{}

func (ListenerSink) IncOrphanReply()                { ReplyOrphanTotal.Inc() }
func (ListenerSink) IncLateCompletion()             { ReplyLateCompletionTotal.Inc() }
func (ListenerSink) ObserveReplyLatency(seconds float64) { ReplyLatencySeconds.Observe(seconds) }

// BridgeSink adapts the package-level collectors to httpapi.Metrics.
type BridgeSink struct{}

func (BridgeSink) IncUpstreamTimeout()   { UpstreamTimeoutTotal.Inc() }
func (BridgeSink) IncBrokerUnavailable() { BrokerUnavailableTotal.Inc() }

// ObserveRequestLatency records every observation under the single
// routing_key label value "all"; latency is not split by routing key.
func (BridgeSink) ObserveRequestLatency(seconds float64) {
	RequestLatencySeconds.WithLabelValues("all").Observe(seconds)
}
