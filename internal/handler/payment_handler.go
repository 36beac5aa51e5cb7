package handler

import (
	"go-marketplace-pos/internal/service"

	"github.com/gofiber/fiber/v2"
)

const paystackSignatureHeader = "x-paystack-signature"

type PaymentHandler struct {
	payments service.PaymentService
	webhooks service.WebhookService
}

func NewPaymentHandler(payments service.PaymentService, webhooks service.WebhookService) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhooks: webhooks}
}

// InitiatePayment reserves stock and starts an M-Pesa or card charge
// POST /api/payments/initiate
func (h *PaymentHandler) InitiatePayment(c *fiber.Ctx) error {
	var req service.InitiatePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	result, err := h.payments.Initiate(c.UserContext(), &req)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// PaystackWebhook receives Paystack charge events. The raw body is passed through for signature checks.
// POST /api/payments/paystack
func (h *PaymentHandler) PaystackWebhook(c *fiber.Ctx) error {
	result, err := h.webhooks.HandlePaystack(c.UserContext(), c.Body(), c.Get(paystackSignatureHeader))
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// MpesaCallback receives the STK push result from Daraja
// POST /api/payments/mpesa/callback
func (h *PaymentHandler) MpesaCallback(c *fiber.Ctx) error {
	if _, err := h.webhooks.HandleMpesaCallback(c.UserContext(), c.Body()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ResultCode": 0, "ResultDesc": "Accepted"})
}
