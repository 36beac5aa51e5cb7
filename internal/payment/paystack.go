package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go-marketplace-pos/pkg/config"

	"github.com/gofiber/fiber/v2"
)

// PaystackClient initializes card transactions and verifies webhook signatures.
type PaystackClient struct {
	cfg config.PaystackConfig
	now func() time.Time
}

func NewPaystackClient(cfg config.PaystackConfig) *PaystackClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "KES"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &PaystackClient{cfg: cfg, now: time.Now}
}

type paystackInitRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency,omitempty"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initiate creates a transaction and returns the hosted checkout URL.
// Paystack amounts are in the subunit, so whole units are multiplied by 100.
func (c *PaystackClient) Initiate(ctx context.Context, req Request) (*Result, error) {
	if c.cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body := paystackInitRequest{
		Email:       req.Email,
		Amount:      req.Amount * 100,
		Currency:    c.cfg.Currency,
		Reference:   c.reference(req),
		CallbackURL: c.cfg.CallbackURL,
		Metadata:    map[string]string{"order_id": req.OrderID.String()},
	}

	var out paystackInitResponse
	code, _, errs := fiber.Post(c.cfg.BaseURL+"/transaction/initialize").
		Timeout(c.cfg.Timeout).
		Set(fiber.HeaderAuthorization, "Bearer "+c.cfg.SecretKey).
		JSON(body).
		Struct(&out)
	if len(errs) > 0 {
		return nil, fmt.Errorf("paystack initialize: %w", errs[0])
	}
	if code != fiber.StatusOK || !out.Status || out.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: paystack status %d: %s", ErrRejected, code, out.Message)
	}

	ref := out.Data.Reference
	if ref == "" {
		ref = body.Reference
	}
	return &Result{Reference: ref, AuthorizationURL: out.Data.AuthorizationURL, Message: out.Message}, nil
}

func (c *PaystackClient) reference(req Request) string {
	return fmt.Sprintf("ORD_%s_%d", strings.ReplaceAll(req.OrderID.String(), "-", "")[:12], c.now().UnixMilli())
}

// SigningEnabled reports whether webhook signatures can be checked.
func (c *PaystackClient) SigningEnabled() bool {
	return c.cfg.SecretKey != ""
}

// VerifySignature checks the x-paystack-signature header: hex HMAC-SHA512 of the raw body.
func (c *PaystackClient) VerifySignature(body []byte, signature string) bool {
	if c.cfg.SecretKey == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(c.cfg.SecretKey))
	mac.Write(body)
	expected := mac.Sum(nil)
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// Sign is the inverse of VerifySignature.
func (c *PaystackClient) Sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(c.cfg.SecretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
