package service

import (
	"context"
	"errors"
	"time"

	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrReferenceMismatch = errors.New("payment reference does not match order")

// Reconciler finalizes an order from a provider confirmation.
type Reconciler interface {
	// Reconcile completes a processing order, which already holds its reservations.
	// It reports true only for the call that moved the order to completed.
	Reconcile(ctx context.Context, reference string, orderID uuid.UUID) (bool, error)
}

type reconciliationService struct {
	orderRepo repository.OrderRepository
	now       func() time.Time
}

func NewReconciliationService(orderRepo repository.OrderRepository) Reconciler {
	return &reconciliationService{orderRepo: orderRepo, now: time.Now}
}

func (s *reconciliationService) Reconcile(ctx context.Context, reference string, orderID uuid.UUID) (bool, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperr.Wrap(apperr.CodeNotFound, ErrOrderNotFound, "Order not found")
	}
	if err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, err, "load order")
	}
	if order.PaymentReference != "" && reference != "" && order.PaymentReference != reference {
		return false, apperr.Wrap(apperr.CodeStateConflict, ErrReferenceMismatch, "Payment reference mismatch")
	}

	fields := map[string]interface{}{
		"status":        model.OrderCompleted,
		"reconciled_at": s.now(),
	}
	if order.PaymentReference == "" && reference != "" {
		fields["payment_reference"] = reference
	}
	ok, err := s.orderRepo.TransitionStatus(ctx, order.ID, []model.OrderStatus{model.OrderProcessing}, fields)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, err, "complete order")
	}
	if ok {
		return true, nil
	}

	// lost the race or already final; re-read to tell which
	current, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeInternal, err, "reload order")
	}
	if current.Status == model.OrderCompleted {
		return false, nil
	}
	return false, apperr.Newf(apperr.CodeStateConflict, "Order is %s and cannot be completed", current.Status)
}
