package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/relaygate/gateway/auth"
	"github.com/relaygate/gateway/contracts"
	"github.com/relaygate/gateway/httpresp"
	"github.com/relaygate/gateway/internal/reliability"
	"github.com/relaygate/gateway/middleware"
	"github.com/relaygate/gateway/registry"
)

// Publisher is the subset of internal/rabbitmq.Publisher the bridge needs.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error
}

// Metrics receives the bridge's per-request outcomes.
type Metrics interface {
	IncUpstreamTimeout()
	IncBrokerUnavailable()
	ObserveRequestLatency(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) IncUpstreamTimeout()         {}
func (noopMetrics) IncBrokerUnavailable()       {}
func (noopMetrics) ObserveRequestLatency(float64) {}

// Bridge is the HTTP<->Broker Bridge: it encodes each inbound request,
// publishes it to the services exchange with the resolved routing key, and
// awaits the single correlated reply.
type Bridge struct {
	publisher      Publisher
	registry       *registry.Registry
	breaker        *reliability.CircuitBreaker
	retryPolicy    reliability.RetryPolicy
	exchange       string
	replyQueue     string
	defaultTimeout time.Duration
	maxBodyBytes   int64
	logger         *slog.Logger
	metrics        Metrics
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout overrides the default per-request await deadline.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.defaultTimeout = d }
}

// WithMaxBodyBytes overrides the default buffered request body limit.
func WithMaxBodyBytes(n int64) Option {
	return func(b *Bridge) { b.maxBodyBytes = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithMetrics attaches a Metrics sink.
func WithMetrics(m Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithCircuitBreaker overrides the default publish circuit breaker.
func WithCircuitBreaker(cb *reliability.CircuitBreaker) Option {
	return func(b *Bridge) { b.breaker = cb }
}

// WithRetryPolicy overrides the default publish retry policy.
func WithRetryPolicy(p reliability.RetryPolicy) Option {
	return func(b *Bridge) { b.retryPolicy = p }
}

// NewBridge builds a Bridge that publishes onto exchange and expects
// replies to be addressed to replyQueue.
func NewBridge(publisher Publisher, reg *registry.Registry, exchange, replyQueue string, options ...Option) *Bridge {
	b := &Bridge{
		publisher:      publisher,
		registry:       reg,
		breaker:        reliability.NewCircuitBreaker(reliability.WithName("bridge-publish")),
		retryPolicy:    reliability.NewExponentialBackoff(50*time.Millisecond, time.Second, 2, 3),
		exchange:       exchange,
		replyQueue:     replyQueue,
		defaultTimeout: 30 * time.Second,
		maxBodyBytes:   10 << 20,
		logger:         slog.Default(),
		metrics:        noopMetrics{},
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Handle returns an http.HandlerFunc that bridges requests to routingKey.
// Route-specific handlers are thin closures over this one method.
func (b *Bridge) Handle(routingKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.serve(w, r, routingKey)
	}
}

func (b *Bridge) serve(w http.ResponseWriter, r *http.Request, routingKey string) {
	ctx := r.Context()
	start := time.Now()
	defer func() { b.metrics.ObserveRequestLatency(time.Since(start).Seconds()) }()

	body, err := readBoundedBody(r.Body, b.maxBodyBytes)
	if err != nil {
		httpresp.WriteError(w, http.StatusRequestEntityTooLarge, "request body exceeds configured maximum")
		return
	}

	envelope := b.buildRequestEnvelope(r, body)

	correlationID, ok := middleware.CorrelationIDFromContext(ctx)
	if !ok {
		correlationID = envelope.Path // unreachable in practice: CorrelationID filter always runs first
	}

	if b.breaker.GetState() == reliability.StateOpen {
		b.metrics.IncBrokerUnavailable()
		httpresp.WriteError(w, http.StatusServiceUnavailable, "broker unavailable")
		return
	}

	deadline := time.Now().Add(b.timeoutFor(r))
	slot, err := b.registry.Register(correlationID, deadline, correlationID)
	if err != nil {
		b.logger.Error("duplicate correlation id", "correlationId", correlationID, "error", err)
		httpresp.WriteError(w, http.StatusInternalServerError, "internal correlation error")
		return
	}

	if err := b.publish(ctx, routingKey, correlationID, envelope); err != nil {
		b.registry.CancelPending(correlationID)
		b.metrics.IncBrokerUnavailable()
		b.logger.Error("publish failed", "correlationId", correlationID, "routingKey", routingKey, "error", err)
		httpresp.WriteError(w, http.StatusServiceUnavailable, "broker unavailable")
		return
	}

	reply, outcome := b.registry.Await(ctx, slot)
	switch outcome {
	case registry.Replied:
		b.writeUpstreamResponse(w, reply)
	case registry.TimedOut:
		b.metrics.IncUpstreamTimeout()
		httpresp.WriteError(w, http.StatusGatewayTimeout, "upstream timeout")
	case registry.Cancelled:
		// client disconnected; nothing more can be written.
	}
}

func (b *Bridge) timeoutFor(r *http.Request) time.Duration {
	return b.defaultTimeout
}

func (b *Bridge) buildRequestEnvelope(r *http.Request, body []byte) contracts.RequestEnvelope {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ", ")
	}

	query := make(map[string]string, len(r.URL.Query()))
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}

	envelope := contracts.RequestEnvelope{
		Path:        r.URL.Path,
		Method:      r.Method,
		Headers:     headers,
		QueryParams: query,
		Body:        string(body),
	}
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		envelope.Principal = principal
	}
	return envelope
}

func (b *Bridge) publish(ctx context.Context, routingKey, correlationID string, envelope contracts.RequestEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		ReplyTo:       b.replyQueue,
		Body:          payload,
		Timestamp:     time.Now(),
	}

	attempt := 0
	for {
		err := b.breaker.Execute(ctx, func() error {
			return b.publisher.Publish(ctx, b.exchange, routingKey, msg)
		})
		if err == nil {
			return nil
		}

		retry, delay := b.retryPolicy.ShouldRetry(attempt, err)
		if !retry {
			return err
		}
		attempt++

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// writeUpstreamResponse implements step 6 of the bridge algorithm: copy the
// status and non-hop-by-hop headers through, default the content type, and
// wrap the body in an ApiResponse.
func (b *Bridge) writeUpstreamResponse(w http.ResponseWriter, reply contracts.ResponseEnvelope) {
	status := reply.StatusCode
	if status < 100 || status > 599 {
		status = http.StatusBadGateway
	}

	for name, value := range reply.Headers {
		if contracts.IsHopByHop(name) {
			continue
		}
		w.Header().Set(name, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}

	var envelope contracts.ApiResponse
	if status >= 200 && status < 300 {
		var data interface{} = reply.Body
		var parsed interface{}
		if json.Unmarshal([]byte(reply.Body), &parsed) == nil {
			data = parsed
		}
		envelope = contracts.NewSuccessResponse(status, http.StatusText(status), data)
	} else {
		envelope = contracts.NewErrorResponse(status, http.StatusText(status), reply.Body)
	}

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

func readBoundedBody(r io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(r, limit+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, &GatewayError{Kind: BadRequest, Detail: "request body exceeds maximum size"}
	}
	return body, nil
}
