package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveDeductRelease(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	p := s.seedProduct(t, "Mug", 500, 10)
	orderID := uuid.New()

	require.NoError(t, s.inventorySvc.Reserve(ctx, p.ID, 4, model.Variant{}, &orderID))
	rec := s.record(t, p.ID, model.Variant{})
	assert.Equal(t, 10, rec.Stock)
	assert.Equal(t, 4, rec.Reserved)
	assert.Equal(t, 6, rec.Available())

	require.NoError(t, s.inventorySvc.Deduct(ctx, p.ID, 3, model.Variant{}, &orderID))
	rec = s.record(t, p.ID, model.Variant{})
	assert.Equal(t, 7, rec.Stock)
	assert.Equal(t, 1, rec.Reserved)

	require.NoError(t, s.inventorySvc.Release(ctx, p.ID, 1, model.Variant{}, &orderID))
	rec = s.record(t, p.ID, model.Variant{})
	assert.Equal(t, 7, rec.Stock)
	assert.Equal(t, 0, rec.Reserved)

	moves, err := s.movements.FindAll(ctx, repository.MovementFilter{OrderID: &orderID})
	require.NoError(t, err)
	assert.Len(t, moves, 3)
	assert.Equal(t, 3, s.events.count(events.TypeStockUpdate))
}

func TestReserveInsufficientStock(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Mug", 500, 2)

	err := s.inventorySvc.Reserve(context.Background(), p.ID, 3, model.Variant{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, apperr.CodeStateConflict, apperr.CodeOf(err))

	rec := s.record(t, p.ID, model.Variant{})
	assert.Equal(t, 0, rec.Reserved)
}

func TestReserveMissingScopeIsInsufficient(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Tee", 1500, 5)

	err := s.inventorySvc.Reserve(context.Background(), p.ID, 1, model.NewVariant("XL", ""), nil)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
}

func TestReserveUsesSizeColorScope(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	p := s.seedProduct(t, "Tee", 1500, 0)
	red := model.NewVariant("M", "red")
	s.seedVariant(t, p.ID, red, 2, 0)
	s.seedVariant(t, p.ID, model.NewVariant("M", ""), 5, 0)

	require.NoError(t, s.inventorySvc.Reserve(ctx, p.ID, 2, red, nil))
	assert.Equal(t, 2, s.record(t, p.ID, red).Reserved)
	assert.Equal(t, 0, s.record(t, p.ID, model.NewVariant("M", "")).Reserved)
}

func TestReleaseFloorsAtZero(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Mug", 500, 0)
	v := model.NewVariant("S", "")
	s.seedVariant(t, p.ID, v, 5, 1)

	require.NoError(t, s.inventorySvc.Release(context.Background(), p.ID, 4, v, nil))
	rec := s.record(t, p.ID, v)
	assert.Equal(t, 0, rec.Reserved)
	assert.Equal(t, 5, rec.Stock)
}

func TestDeductNeverGoesNegative(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Mug", 500, 1)

	err := s.inventorySvc.Deduct(context.Background(), p.ID, 2, model.Variant{}, nil)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 1, s.record(t, p.ID, model.Variant{}).Stock)
}

func TestReserveItemsRollsBackEarlierLines(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	a := s.seedProduct(t, "Alpha", 100, 5)
	b := s.seedProduct(t, "Beta", 100, 1)
	c := s.seedProduct(t, "Gamma", 100, 5)

	err := s.inventorySvc.ReserveItems(ctx, uuid.New(), []model.OrderItem{line(a, 2), line(b, 3), line(c, 1)})
	require.Error(t, err)
	assert.Equal(t, "Insufficient stock for Beta", apperr.As(err).Message())
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	assert.Equal(t, 0, s.record(t, a.ID, model.Variant{}).Reserved)
	assert.Equal(t, 0, s.record(t, b.ID, model.Variant{}).Reserved)
	assert.Equal(t, 0, s.record(t, c.ID, model.Variant{}).Reserved)
}

func TestConcurrentReserveNeverOversells(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Scarce", 100, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.inventorySvc.Reserve(context.Background(), p.ID, 1, model.Variant{}, nil); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	rec := s.record(t, p.ID, model.Variant{})
	assert.LessOrEqual(t, successes, 5)
	assert.Equal(t, successes, rec.Reserved)
	assert.LessOrEqual(t, rec.Reserved, rec.Stock)
}

func TestUpdateStock(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	p := s.seedProduct(t, "Tee", 1500, 0)
	actor := Actor{ID: uuid.New(), Email: "admin@example.com", Role: model.RoleAdmin}

	t.Run("creates missing scope", func(t *testing.T) {
		res, err := s.inventorySvc.UpdateStock(ctx, &UpdateStockRequest{ProductID: p.ID, Size: "L", Stock: 8}, actor)
		require.NoError(t, err)
		assert.Equal(t, 8, res.Stock)
		assert.Equal(t, model.ScopeSize, res.Scope)
	})

	t.Run("sets absolute stock", func(t *testing.T) {
		res, err := s.inventorySvc.UpdateStock(ctx, &UpdateStockRequest{ProductID: p.ID, Size: "L", Stock: 3, Note: "recount"}, actor)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Stock)

		moves, err := s.movements.FindAll(ctx, repository.MovementFilter{ProductID: &p.ID})
		require.NoError(t, err)
		require.Len(t, moves, 2)
	})

	t.Run("refuses stock below reserved", func(t *testing.T) {
		require.NoError(t, s.inventorySvc.Reserve(ctx, p.ID, 2, model.NewVariant("L", ""), nil))
		_, err := s.inventorySvc.UpdateStock(ctx, &UpdateStockRequest{ProductID: p.ID, Size: "L", Stock: 1}, actor)
		assert.Equal(t, apperr.CodeStateConflict, apperr.CodeOf(err))
	})

	t.Run("color requires size", func(t *testing.T) {
		_, err := s.inventorySvc.UpdateStock(ctx, &UpdateStockRequest{ProductID: p.ID, Color: "red", Stock: 1}, actor)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := s.inventorySvc.UpdateStock(ctx, &UpdateStockRequest{ProductID: uuid.New(), Stock: 1}, actor)
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})
}

func TestProductSizesAndColors(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()
	p := s.seedProduct(t, "Tee", 1500, 0)
	s.seedVariant(t, p.ID, model.NewVariant("S", ""), 4, 1)
	s.seedVariant(t, p.ID, model.NewVariant("S", "blue"), 2, 0)

	sizes, err := s.inventorySvc.ProductSizes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, sizes, 1)
	assert.Equal(t, SizeStock{Size: "S", Stock: 4, Reserved: 1, Available: 3}, sizes[0])

	colors, err := s.inventorySvc.ProductColorStocks(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, colors, 1)
	assert.Equal(t, "blue", colors[0].Color)

	_, err = s.inventorySvc.ProductSizes(ctx, uuid.New())
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}
