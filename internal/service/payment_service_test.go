package service

import (
	"context"
	"errors"
	"testing"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/payment"
	"go-marketplace-pos/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymentService(s *testStack, mpesa, card payment.Provider) PaymentService {
	providers := map[model.PaymentMethod]payment.Provider{}
	if mpesa != nil {
		providers[model.PayMpesa] = mpesa
	}
	if card != nil {
		providers[model.PayCard] = card
	}
	return NewPaymentService(s.orders, s.inventorySvc, providers, s.events, nil, nil)
}

func TestInitiateRequiresPhoneForMpesa(t *testing.T) {
	s := newTestStack(t)
	a := s.seedProduct(t, "Candle", 1000, 10)
	b := s.seedProduct(t, "Vase", 2000, 10)
	o := s.seedOrder(t, model.OrderPending, "", line(a, 2), line(b, 1))
	require.Equal(t, int64(4000), o.TotalAmount)
	provider := &stubProvider{}

	_, err := newPaymentService(s, provider, nil).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: o.ID, Amount: 4000, Method: model.PayMpesa,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Equal(t, "Phone number required for M-Pesa payment", apperr.As(err).Message())
	assert.Zero(t, provider.calls)
}

func TestInitiateRequiresEmailForCard(t *testing.T) {
	s := newTestStack(t)
	_, err := newPaymentService(s, nil, &stubProvider{}).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: uuid.New(), Amount: 100, Method: model.PayCard,
	})
	assert.Equal(t, "Email required for card payment", apperr.As(err).Message())
}

func TestInitiateRejectsSettledOrder(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Candle", 1000, 10)
	o := s.seedOrder(t, model.OrderCompleted, "", line(p, 1))

	_, err := newPaymentService(s, &stubProvider{}, nil).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: o.ID, Amount: 1000, Method: model.PayMpesa, Phone: "0712345678",
	})
	require.Error(t, err)
	assert.Equal(t, "Order is not pending payment", apperr.As(err).Message())
	assert.True(t, errors.Is(err, ErrOrderNotPending))
}

func TestInitiateUnknownOrder(t *testing.T) {
	s := newTestStack(t)
	_, err := newPaymentService(s, &stubProvider{}, nil).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: uuid.New(), Amount: 1000, Method: model.PayMpesa, Phone: "0712345678",
	})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestInitiateRejectsAmountMismatch(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Candle", 1000, 10)
	o := s.seedOrder(t, model.OrderPending, "", line(p, 1))

	_, err := newPaymentService(s, &stubProvider{}, nil).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: o.ID, Amount: 999, Method: model.PayMpesa, Phone: "0712345678",
	})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestInitiateReservesAndMovesToProcessing(t *testing.T) {
	s := newTestStack(t)
	a := s.seedProduct(t, "Candle", 1000, 10)
	b := s.seedProduct(t, "Vase", 2000, 10)
	o := s.seedOrder(t, model.OrderPending, "", line(a, 2), line(b, 1))
	provider := &stubProvider{ref: "ws_CO_123"}

	res, err := newPaymentService(s, provider, nil).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: o.ID, Amount: 4000, Method: model.PayMpesa, Phone: "0712345678",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ws_CO_123", res.Reference)
	assert.Equal(t, 1, provider.calls)

	stored := s.order(t, o.ID)
	assert.Equal(t, model.OrderProcessing, stored.Status)
	assert.Equal(t, "ws_CO_123", stored.PaymentReference)
	assert.Equal(t, model.PayMpesa, stored.PaymentMethod)
	assert.Equal(t, 2, s.record(t, a.ID, model.Variant{}).Reserved)
	assert.Equal(t, 1, s.record(t, b.ID, model.Variant{}).Reserved)
	assert.Equal(t, 1, s.events.count(events.TypePaymentInitiated))
}

func TestInitiateInsufficientStockLeavesNothingReserved(t *testing.T) {
	s := newTestStack(t)
	a := s.seedProduct(t, "Candle", 1000, 10)
	b := s.seedProduct(t, "Vase", 2000, 0)
	o := s.seedOrder(t, model.OrderPending, "", line(a, 2), line(b, 1))
	provider := &stubProvider{}

	_, err := newPaymentService(s, provider, nil).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: o.ID, Amount: 4000, Method: model.PayMpesa, Phone: "254712345678",
	})
	require.Error(t, err)
	assert.Contains(t, apperr.As(err).Message(), "Insufficient stock")
	assert.Zero(t, provider.calls)

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		rec := s.record(t, id, model.Variant{})
		assert.Zero(t, rec.Reserved)
		assert.LessOrEqual(t, rec.Reserved, rec.Stock)
	}
	assert.Equal(t, model.OrderPending, s.order(t, o.ID).Status)
}

func TestInitiateProviderFailureReleases(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Candle", 1000, 10)
	o := s.seedOrder(t, model.OrderPending, "", line(p, 3))

	_, err := newPaymentService(s, nil, &stubProvider{err: payment.ErrRejected}).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: o.ID, Amount: 3000, Method: model.PayCard, Email: "jane@example.com",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeDependency, apperr.CodeOf(err))
	assert.Zero(t, s.record(t, p.ID, model.Variant{}).Reserved)
	assert.Equal(t, model.OrderPending, s.order(t, o.ID).Status)
}

func TestInitiateUnconfiguredProvider(t *testing.T) {
	s := newTestStack(t)
	p := s.seedProduct(t, "Candle", 1000, 10)
	o := s.seedOrder(t, model.OrderPending, "", line(p, 1))

	_, err := newPaymentService(s, &stubProvider{}, nil).Initiate(context.Background(), &InitiatePaymentRequest{
		OrderID: o.ID, Amount: 1000, Method: model.PayCard, Email: "jane@example.com",
	})
	assert.Equal(t, apperr.CodeDependency, apperr.CodeOf(err))
	assert.True(t, errors.Is(err, payment.ErrNotConfigured))
	assert.Zero(t, s.record(t, p.ID, model.Variant{}).Reserved)
}
