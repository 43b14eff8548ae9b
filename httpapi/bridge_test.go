package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/gateway/contracts"
	"github.com/relaygate/gateway/middleware"
	"github.com/relaygate/gateway/registry"
)

// fakePublisher records published messages and lets the test complete the
// registry slot, standing in for a live RabbitMQ round trip.
type fakePublisher struct {
	reg      *registry.Registry
	fail     bool
	replyFn  func(correlationID string)
	messages []amqp.Publishing
}

func (f *fakePublisher) Publish(ctx context.Context, exchange, routingKey string, msg amqp.Publishing) error {
	if f.fail {
		return assertErr
	}
	f.messages = append(f.messages, msg)
	if f.replyFn != nil {
		f.replyFn(msg.CorrelationId)
	}
	return nil
}

var assertErr = &GatewayError{Kind: BrokerUnavailable, Detail: "simulated broker failure"}

func withCorrelationID(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithCorrelationID(req.Context(), "C1"))
}

func TestBridgeHappyPath(t *testing.T) {
	reg := registry.New()
	defer reg.Close()

	pub := &fakePublisher{reg: reg}
	pub.replyFn = func(correlationID string) {
		go reg.Complete(correlationID, contracts.ResponseEnvelope{
			CorrelationID: correlationID,
			StatusCode:    200,
			Headers:       map[string]string{"Content-Type": "application/json"},
			Body:          `{"id":42,"name":"kimchi"}`,
		})
	}

	bridge := NewBridge(pub, reg, "services.exchange", "gateway.reply", WithTimeout(time.Second))

	req := withCorrelationID(httptest.NewRequest(http.MethodGet, "/api/recipes/42", nil))
	rec := httptest.NewRecorder()
	bridge.Handle("recipe.request")(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body contracts.ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 200, body.Status)
	assert.Nil(t, body.Error)
	require.NotNil(t, body.Data)

	require.Len(t, pub.messages, 1)
	assert.Equal(t, "C1", pub.messages[0].CorrelationId)
	assert.Equal(t, "gateway.reply", pub.messages[0].ReplyTo)
}

func TestBridgeTimeout(t *testing.T) {
	reg := registry.New()
	defer reg.Close()

	pub := &fakePublisher{}
	bridge := NewBridge(pub, reg, "services.exchange", "gateway.reply", WithTimeout(20*time.Millisecond))

	req := withCorrelationID(httptest.NewRequest(http.MethodGet, "/api/recipes/42", nil))
	rec := httptest.NewRecorder()
	bridge.Handle("recipe.request")(rec, req)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)

	var body contracts.ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "ERR_504", body.Error.Code)
	assert.Equal(t, 0, reg.Count())
}

func TestBridgeOversizeBodyRejected(t *testing.T) {
	reg := registry.New()
	defer reg.Close()

	pub := &fakePublisher{}
	bridge := NewBridge(pub, reg, "services.exchange", "gateway.reply", WithMaxBodyBytes(10))

	oversized := bytes.Repeat([]byte("a"), 1024)
	req := withCorrelationID(httptest.NewRequest(http.MethodPost, "/api/recipes", bytes.NewReader(oversized)))
	rec := httptest.NewRecorder()
	bridge.Handle("recipe.request")(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, pub.messages)
}

func TestBridgeBrokerUnavailableDoesNotLeaveSlot(t *testing.T) {
	reg := registry.New()
	defer reg.Close()

	pub := &fakePublisher{fail: true}
	bridge := NewBridge(pub, reg, "services.exchange", "gateway.reply", WithTimeout(time.Second))

	req := withCorrelationID(httptest.NewRequest(http.MethodGet, "/api/recipes/42", nil))
	rec := httptest.NewRecorder()
	bridge.Handle("recipe.request")(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, reg.Count())
}

func TestBridgeNonJSONBodyEmbeddedAsString(t *testing.T) {
	reg := registry.New()
	defer reg.Close()

	pub := &fakePublisher{}
	pub.replyFn = func(correlationID string) {
		go reg.Complete(correlationID, contracts.ResponseEnvelope{
			CorrelationID: correlationID,
			StatusCode:    200,
			Body:          "plain text reply",
		})
	}
	bridge := NewBridge(pub, reg, "services.exchange", "gateway.reply", WithTimeout(time.Second))

	req := withCorrelationID(httptest.NewRequest(http.MethodGet, "/api/auth/health", nil))
	rec := httptest.NewRecorder()
	bridge.Handle("auth.request")(rec, req)

	var body contracts.ApiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "plain text reply", body.Data)
}
