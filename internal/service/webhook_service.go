package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go-marketplace-pos/internal/events"
	"go-marketplace-pos/internal/model"
	"go-marketplace-pos/internal/repository"
	"go-marketplace-pos/pkg/apperr"
	"go-marketplace-pos/pkg/logger"
	"go-marketplace-pos/pkg/metrics"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EventChargeSuccess = "charge.success"
	EventChargeFailed  = "charge.failed"
)

// IdempotencyStore remembers processed deliveries. *redis.Client satisfies it.
type IdempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type SignatureVerifier interface {
	SigningEnabled() bool
	VerifySignature(body []byte, signature string) bool
}

type WebhookService interface {
	HandlePaystack(ctx context.Context, body []byte, signature string) (*WebhookResult, error)
	HandleMpesaCallback(ctx context.Context, body []byte) (*WebhookResult, error)
}

type WebhookResult struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Event     string `json:"event,omitempty"`
}

type PaystackWebhook struct {
	Event string `json:"event"`
	Data  struct {
		Reference string           `json:"reference"`
		Status    string           `json:"status"`
		Amount    int64            `json:"amount"`
		Metadata  PaystackMetadata `json:"metadata"`
	} `json:"data"`
}

// PaystackMetadata tolerates the empty-string metadata Paystack sends when none was set.
type PaystackMetadata struct {
	OrderID string `json:"order_id"`
}

func (m *PaystackMetadata) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var raw struct {
		OrderID json.RawMessage `json:"order_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var s string
	if err := json.Unmarshal(raw.OrderID, &s); err == nil {
		m.OrderID = strings.TrimSpace(s)
	}
	return nil
}

type MpesaCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type webhookService struct {
	orderRepo   repository.OrderRepository
	reconciler  Reconciler
	inventory   InventoryService
	verifier    SignatureVerifier
	idempotency IdempotencyStore
	ttl         time.Duration
	events      events.Publisher
	metrics     *metrics.Payments
	log         *logger.Logger
}

func NewWebhookService(
	orderRepo repository.OrderRepository,
	reconciler Reconciler,
	inventory InventoryService,
	verifier SignatureVerifier,
	idempotency IdempotencyStore,
	ttl time.Duration,
	publisher events.Publisher,
	m *metrics.Payments,
	log *logger.Logger,
) WebhookService {
	if publisher == nil {
		publisher = events.Discard
	}
	if log == nil {
		log = logger.Nop()
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &webhookService{
		orderRepo:   orderRepo,
		reconciler:  reconciler,
		inventory:   inventory,
		verifier:    verifier,
		idempotency: idempotency,
		ttl:         ttl,
		events:      publisher,
		metrics:     m,
		log:         log,
	}
}

func (s *webhookService) HandlePaystack(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if s.verifier != nil && s.verifier.SigningEnabled() && !s.verifier.VerifySignature(body, signature) {
		s.metrics.ObserveWebhook("paystack", "bad_signature")
		return nil, apperr.New(apperr.CodeUnauthorized, "Invalid webhook signature")
	}

	var evt PaystackWebhook
	if err := json.Unmarshal(body, &evt); err != nil {
		s.metrics.ObserveWebhook("paystack", "malformed")
		return nil, apperr.Wrap(apperr.CodeValidation, err, "Invalid webhook payload")
	}

	switch evt.Event {
	case EventChargeSuccess, EventChargeFailed:
	default:
		s.metrics.ObserveWebhook(evt.Event, "ignored")
		return &WebhookResult{Received: true, Event: evt.Event}, nil
	}

	if evt.Data.Metadata.OrderID == "" {
		s.metrics.ObserveWebhook(evt.Event, "missing_order")
		return nil, apperr.New(apperr.CodeValidation, "Missing order_id in metadata")
	}
	orderID, err := uuid.Parse(evt.Data.Metadata.OrderID)
	if err != nil {
		s.metrics.ObserveWebhook(evt.Event, "missing_order")
		return nil, apperr.New(apperr.CodeValidation, "Invalid order_id in metadata")
	}

	return s.dispatch(ctx, "paystack", evt.Event, evt.Data.Reference, orderID)
}

// HandleMpesaCallback maps an STK result onto the charge events. ResultCode 0 is success.
func (s *webhookService) HandleMpesaCallback(ctx context.Context, body []byte) (*WebhookResult, error) {
	var cb MpesaCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		s.metrics.ObserveWebhook("mpesa", "malformed")
		return nil, apperr.Wrap(apperr.CodeValidation, err, "Invalid callback payload")
	}
	stk := cb.Body.StkCallback
	if stk.CheckoutRequestID == "" {
		s.metrics.ObserveWebhook("mpesa", "malformed")
		return nil, apperr.New(apperr.CodeValidation, "Missing CheckoutRequestID")
	}

	order, err := s.orderRepo.FindByReference(ctx, stk.CheckoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.metrics.ObserveWebhook("mpesa", "unknown_reference")
		return nil, apperr.Wrap(apperr.CodeNotFound, ErrOrderNotFound, "Order not found for reference")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, err, "load order")
	}

	event := EventChargeSuccess
	if stk.ResultCode != 0 {
		event = EventChargeFailed
	}
	ctx = s.log.WithField(ctx, "result_desc", stk.ResultDesc)
	return s.dispatch(ctx, "mpesa", event, stk.CheckoutRequestID, order.ID)
}

func (s *webhookService) dispatch(ctx context.Context, provider, event, reference string, orderID uuid.UUID) (*WebhookResult, error) {
	ctx = s.log.WithFields(s.log.WithOrderID(ctx, orderID.String()), map[string]any{
		"provider":  provider,
		"event":     event,
		"reference": reference,
	})

	key, fresh, err := s.claim(ctx, provider, event, reference, orderID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		s.metrics.ObserveWebhook(event, "duplicate")
		s.log.Info(ctx, "duplicate webhook delivery acknowledged")
		return &WebhookResult{Received: true, Duplicate: true, Event: event}, nil
	}

	if event == EventChargeSuccess {
		err = s.complete(ctx, reference, orderID)
	} else {
		err = s.fail(ctx, orderID)
	}
	if err != nil {
		// let the provider retry
		s.unclaim(ctx, key)
		s.metrics.ObserveWebhook(event, "error")
		return nil, err
	}
	s.metrics.ObserveWebhook(event, "processed")
	return &WebhookResult{Received: true, Event: event}, nil
}

func (s *webhookService) complete(ctx context.Context, reference string, orderID uuid.UUID) error {
	if err := s.holdPending(ctx, reference, orderID); err != nil {
		return err
	}

	fresh, err := s.reconciler.Reconcile(ctx, reference, orderID)
	if err != nil {
		s.log.Error(ctx, "reconciliation failed", err)
		return apperr.Wrap(apperr.CodeInternal, err, "Reconciliation failed")
	}
	if !fresh {
		s.log.Info(ctx, "order already finalized, skipping deduction")
		return nil
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "load order")
	}
	// the order is completed now; deduct failures are logged, not retried
	if err := s.inventory.DeductItems(ctx, order.ID, order.Items); err != nil {
		s.log.Error(ctx, "inventory deduction after payment failed", err)
	}
	s.events.Publish(ctx, events.New(events.TypeOrderCompleted, order.ID.String(), orderPayload(order)))
	s.log.Info(ctx, "order completed from payment confirmation")
	return nil
}

// holdPending gives a still-pending order the reservation that payment initiation would have made,
// moving it to processing, so completion deducts only units this order holds.
// An order that cannot be stocked is left pending and the delivery is refused for retry.
func (s *webhookService) holdPending(ctx context.Context, reference string, orderID uuid.UUID) error {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "load order")
	}
	if order.Status != model.OrderPending {
		return nil
	}
	if order.PaymentReference != "" && reference != "" && order.PaymentReference != reference {
		return nil
	}

	if err := s.inventory.ReserveItems(ctx, order.ID, order.Items); err != nil {
		s.log.Error(ctx, "paid order could not be stocked", err)
		return apperr.Wrap(apperr.CodeInternal, err, "Paid order cannot be stocked")
	}
	fields := map[string]interface{}{"status": model.OrderProcessing}
	if order.PaymentReference == "" && reference != "" {
		fields["payment_reference"] = reference
	}
	ok, err := s.orderRepo.TransitionStatus(ctx, order.ID, []model.OrderStatus{model.OrderPending}, fields)
	if err == nil && ok {
		return nil
	}
	// someone else moved the order; their state owns the stock
	if relErr := s.inventory.ReleaseItems(ctx, order.ID, order.Items); relErr != nil {
		s.log.Error(ctx, "release of webhook hold failed", relErr)
	}
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "hold pending order")
	}
	return nil
}

func (s *webhookService) fail(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.CodeNotFound, ErrOrderNotFound, "Order not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "load order")
	}
	if order.Status != model.OrderPending && order.Status != model.OrderProcessing {
		s.log.Info(s.log.WithField(ctx, "status", order.Status), "failure event for settled order ignored")
		return nil
	}

	ok, err := s.orderRepo.TransitionStatus(ctx, order.ID, []model.OrderStatus{order.Status}, map[string]interface{}{
		"status": model.OrderFailed,
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, err, "mark order failed")
	}
	if !ok {
		return nil
	}
	if order.Status == model.OrderProcessing {
		if err := s.inventory.ReleaseItems(ctx, order.ID, order.Items); err != nil {
			s.log.Error(ctx, "release after failed payment", err)
		}
	}
	order.Status = model.OrderFailed
	s.events.Publish(ctx, events.New(events.TypeOrderFailed, order.ID.String(), orderPayload(order)))
	return nil
}

// claim records the delivery. Without a store, or when the store is down, every delivery is
// processed; the status transitions keep replays from deducting twice.
func (s *webhookService) claim(ctx context.Context, provider, event, reference string, orderID uuid.UUID) (string, bool, error) {
	if s.idempotency == nil {
		return "", true, nil
	}
	id := reference
	if id == "" {
		id = orderID.String()
	}
	key := s.idempotency.IdempotencyKey(provider, event+":"+id)
	fresh, err := s.idempotency.SetNX(ctx, key, time.Now().Unix(), s.ttl)
	if err != nil {
		s.log.Warn(s.log.WithField(ctx, "error", err.Error()), "idempotency store unavailable, processing anyway")
		return "", true, nil
	}
	return key, fresh, nil
}

func (s *webhookService) unclaim(ctx context.Context, key string) {
	if s.idempotency == nil || key == "" {
		return
	}
	if err := s.idempotency.Del(ctx, key); err != nil {
		s.log.Error(ctx, "release idempotency key", err)
	}
}
