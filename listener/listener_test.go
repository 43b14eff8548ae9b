package listener

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaygate/gateway/registry"
)

type fakeConsumer struct {
	handler func(ctx context.Context, delivery amqp.Delivery) error
}

func (f *fakeConsumer) Subscribe(ctx context.Context, queue string, handler func(ctx context.Context, delivery amqp.Delivery) error) error {
	f.handler = handler
	return nil
}

type fakeMetrics struct {
	orphans int
	late    int
}

func (f *fakeMetrics) IncOrphanReply()           { f.orphans++ }
func (f *fakeMetrics) IncLateCompletion()        { f.late++ }
func (f *fakeMetrics) ObserveReplyLatency(float64) {}

func TestListenerHandleDelivery(t *testing.T) {
	t.Run("completes a registered slot", func(t *testing.T) {
		reg := registry.New()
		defer reg.Close()
		consumer := &fakeConsumer{}
		l := New(consumer, reg, "gateway.reply")
		require.NoError(t, l.Start(context.Background()))

		slot, err := reg.Register("c1", time.Now().Add(time.Second), "")
		require.NoError(t, err)

		body, _ := json.Marshal(map[string]interface{}{
			"statusCode": 200,
			"body":       `{"ok":true}`,
		})
		err = consumer.handler(context.Background(), amqp.Delivery{CorrelationId: "c1", Body: body})
		require.NoError(t, err)

		env, outcome := reg.Await(context.Background(), slot)
		assert.Equal(t, registry.Replied, outcome)
		assert.Equal(t, 200, env.StatusCode)
	})

	t.Run("orphan reply is acknowledged and counted", func(t *testing.T) {
		reg := registry.New()
		defer reg.Close()
		consumer := &fakeConsumer{}
		metrics := &fakeMetrics{}
		l := New(consumer, reg, "gateway.reply", WithMetrics(metrics))
		require.NoError(t, l.Start(context.Background()))

		body, _ := json.Marshal(map[string]interface{}{"statusCode": 200})
		err := consumer.handler(context.Background(), amqp.Delivery{CorrelationId: "nosuch", Body: body})
		require.NoError(t, err)
		assert.Equal(t, 1, metrics.orphans)
	})

	t.Run("malformed body is dropped without completing anything", func(t *testing.T) {
		reg := registry.New()
		defer reg.Close()
		consumer := &fakeConsumer{}
		l := New(consumer, reg, "gateway.reply")
		require.NoError(t, l.Start(context.Background()))

		slot, err := reg.Register("c1", time.Now().Add(20*time.Millisecond), "")
		require.NoError(t, err)

		err = consumer.handler(context.Background(), amqp.Delivery{CorrelationId: "c1", Body: []byte("not json")})
		require.NoError(t, err)

		_, outcome := reg.Await(context.Background(), slot)
		assert.Equal(t, registry.TimedOut, outcome)
	})

	t.Run("correlation id falls back to header", func(t *testing.T) {
		reg := registry.New()
		defer reg.Close()
		consumer := &fakeConsumer{}
		l := New(consumer, reg, "gateway.reply")
		require.NoError(t, l.Start(context.Background()))

		slot, err := reg.Register("c1", time.Now().Add(time.Second), "")
		require.NoError(t, err)

		body, _ := json.Marshal(map[string]interface{}{"statusCode": 200})
		err = consumer.handler(context.Background(), amqp.Delivery{
			Headers: amqp.Table{"correlationId": "c1"},
			Body:    body,
		})
		require.NoError(t, err)

		env, outcome := reg.Await(context.Background(), slot)
		assert.Equal(t, registry.Replied, outcome)
		assert.Equal(t, 200, env.StatusCode)
	})
}
