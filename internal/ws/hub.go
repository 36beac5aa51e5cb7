package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/pkg/logger"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Hub struct {
	clients    map[Conn]bool
	Register   chan Conn
	Unregister chan Conn
	Broadcast  chan []byte
	log        *logger.Logger
	mutex      sync.Mutex
	done       chan struct{}
	stopOnce   sync.Once
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[Conn]bool),
		Register:   make(chan Conn),
		Unregister: make(chan Conn),
		Broadcast:  make(chan []byte, 64),
		log:        log,
		done:       make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.stopOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for conn := range h.clients {
				_ = conn.Close()
				delete(h.clients, conn)
			}
			h.mutex.Unlock()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mutex.Unlock()
			h.log.Info(h.log.WithField(ctx, "clients", n), "ws client connected")

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				_ = conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					_ = conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Join hands conn to the running hub. It reports false, closing conn, once the hub has stopped.
func (h *Hub) Join(conn Conn) bool {
	select {
	case h.Register <- conn:
		return true
	case <-h.done:
		_ = conn.Close()
		return false
	}
}

// Leave drops conn. After the hub has stopped every client is already closed.
func (h *Hub) Leave(conn Conn) {
	select {
	case h.Unregister <- conn:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Publish pushes evt to connected dashboards. A full queue drops the message.
func (h *Hub) Publish(ctx context.Context, evt events.Event) {
	if h == nil {
		return
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.Error(ctx, "marshal ws event", err)
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		h.log.Warn(h.log.WithField(ctx, "event_type", evt.Type), "ws broadcast queue full, dropping event")
	}
}
