package listener

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/relaygate/gateway/contracts"
	"github.com/relaygate/gateway/registry"
)

// Consumer is the subset of internal/rabbitmq.Consumer the listener needs.
type Consumer interface {
	Subscribe(ctx context.Context, queue string, handler func(ctx context.Context, delivery amqp.Delivery) error) error
}

// Metrics receives counts of reply outcomes the listener observes.
type Metrics interface {
	IncOrphanReply()
	IncLateCompletion()
	ObserveReplyLatency(seconds float64)
}

// noopMetrics discards everything; used when no Metrics is configured.
type noopMetrics struct{}

func (noopMetrics) IncOrphanReply()             {}
func (noopMetrics) IncLateCompletion()          {}
func (noopMetrics) ObserveReplyLatency(float64) {}

// Listener drains the gateway reply queue and completes correlation slots.
type Listener struct {
	consumer Consumer
	registry *registry.Registry
	queue    string
	logger   *slog.Logger
	metrics  Metrics
}

// Option configures a Listener.
type Option func(*Listener)

// WithLogger sets the structured logger used for malformed and orphan replies.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) { l.logger = logger }
}

// WithMetrics attaches a Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(l *Listener) { l.metrics = m }
}

// New constructs a Listener that will consume from queue.
func New(consumer Consumer, reg *registry.Registry, queue string, options ...Option) *Listener {
	l := &Listener{
		consumer: consumer,
		registry: reg,
		queue:    queue,
		logger:   slog.Default(),
		metrics:  noopMetrics{},
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Start subscribes to the reply queue. It returns once the subscription is
// established (or has failed to establish); deliveries are then handled in
// the background until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	return l.consumer.Subscribe(ctx, l.queue, l.handleDelivery)
}

// handleDelivery implements the four-step reply algorithm. It always
// returns nil so the underlying consumer acknowledges unconditionally.
func (l *Listener) handleDelivery(ctx context.Context, delivery amqp.Delivery) error {
	id := delivery.CorrelationId
	if id == "" {
		if v, ok := delivery.Headers["correlationId"]; ok {
			if s, ok := v.(string); ok {
				id = s
			}
		}
	}
	if id == "" {
		l.logger.Error("reply delivery missing correlation id")
		return nil
	}

	var envelope contracts.ResponseEnvelope
	if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
		l.logger.Error("malformed reply envelope", "correlationId", id, "error", err)
		return nil
	}
	envelope.CorrelationID = id

	result, latency := l.registry.Complete(id, envelope)
	switch result {
	case registry.Orphan:
		l.logger.Warn("orphan reply, no pending slot", "correlationId", id)
		l.metrics.IncOrphanReply()
	case registry.LateCompletion:
		l.logger.Debug("late reply dropped, slot already terminated", "correlationId", id)
		l.metrics.IncLateCompletion()
	case registry.Delivered:
		l.metrics.ObserveReplyLatency(latency.Seconds())
	}

	return nil
}
