package repository

import (
	"context"
	"testing"
	"time"

	"go-marketplace-pos/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createOrder(t *testing.T, repo OrderRepository, o *model.Order) *model.Order {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), o))
	return o
}

func TestOrderCreateItemsAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepo(db)
	ctx := context.Background()
	p := seedProduct(t, db, "Tee", 1000)

	order := createOrder(t, repo, &model.Order{
		CustomerName: "Jane",
		SaleType:     model.SaleOnline,
		TotalAmount:  2000,
		Status:       model.OrderPending,
	})
	require.NoError(t, repo.CreateItems(ctx, []model.OrderItem{
		{OrderID: order.ID, ProductID: p.ID, ProductName: p.Name, Quantity: 2, UnitPrice: 1000},
	}))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, 2, found.Items[0].Quantity)

	require.NoError(t, repo.Delete(ctx, order.ID))
	_, err = repo.FindByID(ctx, order.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var itemCount int64
	require.NoError(t, db.Model(&model.OrderItem{}).Count(&itemCount).Error)
	assert.Zero(t, itemCount)
}

func TestTransitionStatusOnlyFromAllowedStates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepo(db)
	ctx := context.Background()

	order := createOrder(t, repo, &model.Order{SaleType: model.SaleOnline, TotalAmount: 10, Status: model.OrderProcessing, PaymentReference: "ref-1"})

	from := []model.OrderStatus{model.OrderPending, model.OrderProcessing}
	ok, err := repo.TransitionStatus(ctx, order.ID, from, map[string]interface{}{"status": model.OrderCompleted})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionStatus(ctx, order.ID, from, map[string]interface{}{"status": model.OrderCompleted})
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByReference(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, found.Status)
}

func TestCommissionQueriesScopeToCompletedPOSSales(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepo(db)
	ctx := context.Background()
	seller := uuid.New()
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	mk := func(status model.OrderStatus, saleType model.SaleType, total, commission int64, at time.Time) {
		o := &model.Order{SellerID: &seller, SaleType: saleType, Status: status, TotalAmount: total, CommissionAmount: commission}
		o.CreatedAt = at
		createOrder(t, repo, o)
	}
	mk(model.OrderCompleted, model.SalePOS, 1000, 50, base)
	mk(model.OrderCompleted, model.SalePOS, 2000, 100, base.Add(time.Hour))
	mk(model.OrderPending, model.SalePOS, 5000, 250, base.Add(2*time.Hour))
	mk(model.OrderCompleted, model.SaleOnline, 7000, 0, base.Add(3*time.Hour))

	totals, err := repo.SumCommission(ctx, seller, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, totals.Orders)
	assert.EqualValues(t, 3000, totals.Sales)
	assert.EqualValues(t, 150, totals.Commission)

	since := base
	totals, err = repo.SumCommission(ctx, seller, &since)
	require.NoError(t, err)
	assert.EqualValues(t, 1, totals.Orders)
	assert.EqualValues(t, 100, totals.Commission)

	latest, err := repo.LatestCommissionAt(ctx, seller, nil)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Equal(base.Add(time.Hour)))

	none, err := repo.LatestCommissionAt(ctx, uuid.New(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}
