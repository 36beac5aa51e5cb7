package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Inventory records reservation lifecycle outcomes.
type Inventory struct {
	operations *prometheus.CounterVec
}

// NewInventory registers the inventory counters on reg. A nil registerer yields a no-op recorder.
func NewInventory(reg prometheus.Registerer) *Inventory {
	if reg == nil {
		return &Inventory{}
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_operations_total",
		Help: "Inventory reserve/deduct/release operations by outcome.",
	}, []string{"operation", "outcome"})
	reg.MustRegister(ops)
	return &Inventory{operations: ops}
}

func (m *Inventory) Observe(operation, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalize(operation), normalize(outcome)).Inc()
}

// Payments records initiation and webhook outcomes per provider.
type Payments struct {
	initiations *prometheus.CounterVec
	webhooks    *prometheus.CounterVec
}

func NewPayments(reg prometheus.Registerer) *Payments {
	if reg == nil {
		return &Payments{}
	}
	initiations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_initiations_total",
		Help: "Payment initiations by method and outcome.",
	}, []string{"method", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhooks_total",
		Help: "Payment webhook events by event type and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(initiations, webhooks)
	return &Payments{initiations: initiations, webhooks: webhooks}
}

func (m *Payments) ObserveInitiation(method, outcome string) {
	if m == nil || m.initiations == nil {
		return
	}
	m.initiations.WithLabelValues(normalize(method), normalize(outcome)).Inc()
}

func (m *Payments) ObserveWebhook(event, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalize(event), normalize(outcome)).Inc()
}

func normalize(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
