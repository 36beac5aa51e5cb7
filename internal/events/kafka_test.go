package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestKafkaPublisherFlushesOnShutdown(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, 8, nil)

	// queue before the loop starts so the flush path is exercised
	p.Publish(context.Background(), New(TypeOrderCreated, "order-1", OrderPayload{OrderID: "order-1", Status: "pending", TotalAmount: 4000}))
	p.Publish(context.Background(), New(TypeOrderCompleted, "order-1", OrderPayload{OrderID: "order-1", Status: "completed"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Start(ctx)
	p.WaitClosed()

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.True(t, w.closed)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))

	var env Envelope
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &env))
	assert.Equal(t, TypeOrderCreated, env.EventType)
	assert.Equal(t, envelopeVersion, env.EventVersion)
	assert.Equal(t, "order-1", env.CorrelationID)

	var payload OrderPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.EqualValues(t, 4000, payload.TotalAmount)
}

func TestKafkaPublisherDropsWhenFull(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaPublisher(w, 1, nil)

	p.Publish(context.Background(), New(TypeStockUpdate, "p1", nil))
	p.Publish(context.Background(), New(TypeStockUpdate, "p1", nil))

	assert.Len(t, p.inbox, 1)
}

type countingSink struct{ n int }

func (c *countingSink) Publish(context.Context, Event) { c.n++ }

func TestBusFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	bus := NewBus(a, nil, b)

	bus.Publish(context.Background(), New(TypeOrderUpdated, "o", nil))

	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)

	var nilBus *Bus
	nilBus.Publish(context.Background(), New(TypeOrderUpdated, "o", nil))
	Discard.Publish(context.Background(), New(TypeOrderUpdated, "o", nil))
}
