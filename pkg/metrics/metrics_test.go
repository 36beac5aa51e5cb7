package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInventoryCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInventory(reg)

	m.Observe("reserve", "ok")
	m.Observe("reserve", "ok")
	m.Observe("reserve", "insufficient")
	m.Observe("", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("reserve", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("reserve", "insufficient")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("unknown", "unknown")))
}

func TestPaymentCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPayments(reg)

	m.ObserveInitiation("mpesa", "ok")
	m.ObserveWebhook("charge.success", "processed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.initiations.WithLabelValues("mpesa", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("charge.success", "processed")))
}

func TestNilRecordersAreSafe(t *testing.T) {
	var inv *Inventory
	inv.Observe("reserve", "ok")
	NewInventory(nil).Observe("reserve", "ok")

	var pay *Payments
	pay.ObserveInitiation("card", "ok")
	NewPayments(nil).ObserveWebhook("charge.failed", "processed")
}
