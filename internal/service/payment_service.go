package service

import (
	"context"
	"errors"
	"strings"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/payment"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/logger"
	"go-marketplace-pos/pkg/metrics"
	"go-marketplace-pos/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrOrderNotPending = errors.New("order is not pending payment")

type PaymentService interface {
	Initiate(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResult, error)
}

type InitiatePaymentRequest struct {
	OrderID uuid.UUID           `json:"order_id" validate:"uuid_required"`
	Amount  int64               `json:"amount" validate:"gt=0"`
	Method  model.PaymentMethod `json:"method" validate:"required,oneof=mpesa card"`
	Phone   string              `json:"phone"`
	Email   string              `json:"email" validate:"omitempty,email"`
}

type InitiatePaymentResult struct {
	Success          bool   `json:"success"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	Message          string `json:"message,omitempty"`
}

type paymentService struct {
	orderRepo repository.OrderRepository
	inventory InventoryService
	providers map[model.PaymentMethod]payment.Provider
	events    events.Publisher
	metrics   *metrics.Payments
	log       *logger.Logger
}

func NewPaymentService(
	orderRepo repository.OrderRepository,
	inventory InventoryService,
	providers map[model.PaymentMethod]payment.Provider,
	publisher events.Publisher,
	m *metrics.Payments,
	log *logger.Logger,
) PaymentService {
	if publisher == nil {
		publisher = events.Discard
	}
	if log == nil {
		log = logger.Nop()
	}
	return &paymentService{
		orderRepo: orderRepo,
		inventory: inventory,
		providers: providers,
		events:    publisher,
		metrics:   m,
		log:       log,
	}
}

// Initiate reserves stock for every line, then asks the provider to charge.
// Any failure after reservation releases what was reserved and leaves the order pending.
func (s *paymentService) Initiate(ctx context.Context, req *InitiatePaymentRequest) (*InitiatePaymentResult, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.TrimSpace(req.Email)

	// method-specific contact first, so a missing phone is reported even for unknown orders
	switch req.Method {
	case model.PayMpesa:
		if req.Phone == "" {
			return nil, s.reject(req.Method, apperr.New(apperr.CodeValidation, "Phone number required for M-Pesa payment"))
		}
		if !validator.IsMSISDN(req.Phone) {
			return nil, s.reject(req.Method, apperr.New(apperr.CodeValidation, "Invalid phone number for M-Pesa payment"))
		}
	case model.PayCard:
		if req.Email == "" {
			return nil, s.reject(req.Method, apperr.New(apperr.CodeValidation, "Email required for card payment"))
		}
	}
	if err := validator.Validate(req); err != nil {
		return nil, s.reject(req.Method, err)
	}

	ctx = s.log.WithOrderID(ctx, req.OrderID.String())
	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.reject(req.Method, apperr.Wrap(apperr.CodeNotFound, ErrOrderNotFound, "Order not found"))
	}
	if err != nil {
		return nil, s.reject(req.Method, apperr.Wrap(apperr.CodeInternal, err, "load order"))
	}
	if order.Status != model.OrderPending {
		return nil, s.reject(req.Method, apperr.Wrap(apperr.CodeStateConflict, ErrOrderNotPending, "Order is not pending payment"))
	}
	if req.Amount != order.TotalAmount {
		return nil, s.reject(req.Method, apperr.New(apperr.CodeValidation, "Amount does not match order total").
			WithDetails(map[string]any{"expected": order.TotalAmount, "received": req.Amount}))
	}

	provider, ok := s.providers[req.Method]
	if !ok || provider == nil {
		return nil, s.reject(req.Method, apperr.Wrap(apperr.CodeDependency, payment.ErrNotConfigured, "Payment method unavailable"))
	}

	if err := s.inventory.ReserveItems(ctx, order.ID, order.Items); err != nil {
		s.metrics.ObserveInitiation(string(req.Method), "insufficient_stock")
		return nil, err
	}

	res, err := provider.Initiate(ctx, payment.Request{
		OrderID:     order.ID,
		Amount:      order.TotalAmount,
		Phone:       req.Phone,
		Email:       req.Email,
		Description: "Order " + order.ID.String()[:8],
	})
	if err != nil {
		s.log.Error(ctx, "payment provider call failed", err)
		s.rollback(ctx, order)
		return nil, s.reject(req.Method, apperr.Wrap(apperr.CodeDependency, err, "Payment initiation failed"))
	}

	ok, err = s.orderRepo.TransitionStatus(ctx, order.ID, []model.OrderStatus{model.OrderPending}, map[string]interface{}{
		"status":            model.OrderProcessing,
		"payment_reference": res.Reference,
		"payment_method":    req.Method,
	})
	if err != nil || !ok {
		s.rollback(ctx, order)
		if err != nil {
			return nil, s.reject(req.Method, apperr.Wrap(apperr.CodeInternal, err, "update order"))
		}
		// a concurrent initiation won the race
		return nil, s.reject(req.Method, apperr.Wrap(apperr.CodeStateConflict, ErrOrderNotPending, "Order is not pending payment"))
	}

	order.Status = model.OrderProcessing
	order.PaymentReference = res.Reference
	order.PaymentMethod = req.Method
	s.events.Publish(ctx, events.New(events.TypePaymentInitiated, order.ID.String(), orderPayload(order)))
	s.metrics.ObserveInitiation(string(req.Method), "ok")
	s.log.Info(s.log.WithFields(ctx, map[string]any{"method": req.Method, "reference": res.Reference}), "payment initiated")

	return &InitiatePaymentResult{
		Success:          true,
		Reference:        res.Reference,
		AuthorizationURL: res.AuthorizationURL,
		Message:          res.Message,
	}, nil
}

func (s *paymentService) rollback(ctx context.Context, order *model.Order) {
	if err := s.inventory.ReleaseItems(ctx, order.ID, order.Items); err != nil {
		s.log.Error(ctx, "release after failed initiation", err)
	}
}

func (s *paymentService) reject(method model.PaymentMethod, err error) error {
	s.metrics.ObserveInitiation(string(method), strings.ToLower(string(apperr.CodeOf(err))))
	return err
}
