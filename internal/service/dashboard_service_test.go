package service

import (
	"context"
	"testing"

	"go-marketplace-pos/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardStats(t *testing.T) {
	s := newTestStack(t)
	svc := NewDashboardService(s.movements)
	a := s.seedProduct(t, "Candle", 1000, 20)
	b := s.seedProduct(t, "Vase", 2000, 3)
	s.seedOrder(t, model.OrderCompleted, "", line(a, 2))
	s.seedOrder(t, model.OrderPending, "", line(b, 1))
	require.NoError(t, s.inventorySvc.Reserve(context.Background(), a.ID, 4, model.Variant{}, nil))

	stats, err := svc.GetDashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalProducts)
	assert.Equal(t, int64(1), stats.LowStockCount)
	assert.Equal(t, int64(20*1000+3*2000), stats.TotalValuation)
	assert.Equal(t, int64(4), stats.ReservedUnits)
	assert.Equal(t, int64(1), stats.CompletedOrders)
	assert.Equal(t, int64(2000), stats.Revenue)
}
