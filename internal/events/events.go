package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	TypeStockUpdate      = "stock_update"
	TypeOrderCreated     = "order.created"
	TypeOrderUpdated     = "order.updated"
	TypePaymentInitiated = "payment.initiated"
	TypeOrderCompleted   = "order.completed"
	TypeOrderFailed      = "order.failed"
	TypeCommissionPaid   = "commission.paid"
	TypeUserStatus       = "user_status_update"
)

// Event is one domain notification. Key groups related events (usually the order id).
type Event struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"type"`
	Key        string    `json:"key,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"data,omitempty"`
}

func New(eventType, key string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// Publisher must not block the caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

type discard struct{}

func (discard) Publish(context.Context, Event) {}

// Discard drops every event.
var Discard Publisher = discard{}

// Bus fans an event out to every sink.
type Bus struct {
	sinks []Publisher
}

func NewBus(sinks ...Publisher) *Bus {
	b := &Bus{}
	for _, s := range sinks {
		if s != nil {
			b.sinks = append(b.sinks, s)
		}
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, evt Event) {
	if b == nil {
		return
	}
	for _, s := range b.sinks {
		s.Publish(ctx, evt)
	}
}

type StockPayload struct {
	Action    string `json:"action"`
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Quantity  int    `json:"quantity"`
	OrderID   string `json:"order_id,omitempty"`
	Stock     *int   `json:"stock,omitempty"`
}

type OrderPayload struct {
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	SaleType         string `json:"sale_type,omitempty"`
	TotalAmount      int64  `json:"total_amount"`
	PaymentMethod    string `json:"payment_method,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
	SellerID         string `json:"seller_id,omitempty"`
}
