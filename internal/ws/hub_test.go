package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"go-marketplace-pos/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	msgs    [][]byte
	closed  bool
	failing bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestHubBroadcastsAndDropsBrokenClients(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	good := &fakeConn{}
	bad := &fakeConn{failing: true}
	hub.Register <- good
	hub.Register <- bad

	hub.Publish(ctx, events.New(events.TypeStockUpdate, "p1", events.StockPayload{Action: "reserve", Quantity: 2}))

	require.Eventually(t, func() bool { return good.received() == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	good.mu.Lock()
	var evt map[string]any
	require.NoError(t, json.Unmarshal(good.msgs[0], &evt))
	good.mu.Unlock()
	assert.Equal(t, events.TypeStockUpdate, evt["type"])

	cancel()
	<-done
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
}

func TestPublishOnNilHubIsNoop(t *testing.T) {
	var hub *Hub
	hub.Publish(context.Background(), events.New(events.TypeOrderCreated, "o", nil))
}

func TestJoinAndLeaveReturnAfterHubStops(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	early := &fakeConn{}
	require.True(t, hub.Join(early))
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	late := &fakeConn{}
	returned := make(chan bool, 1)
	go func() {
		ok := hub.Join(late)
		hub.Leave(late)
		hub.Leave(early)
		returned <- ok
	}()
	select {
	case ok := <-returned:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("join or leave blocked on a stopped hub")
	}
	assert.True(t, late.closed)
	assert.True(t, early.closed)
}
