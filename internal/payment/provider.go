package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotConfigured = errors.New("payment provider is not configured")
	ErrRejected      = errors.New("payment provider rejected the request")
)

// Request is a provider-agnostic charge request. Amount is in whole currency units.
type Request struct {
	OrderID     uuid.UUID
	Amount      int64
	Phone       string
	Email       string
	Description string
}

type Result struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	Message          string `json:"message,omitempty"`
}

type Provider interface {
	Initiate(ctx context.Context, req Request) (*Result, error)
}
