// Package payment talks to the external payment processor.  Amounts are
// integer minor units of a single currency.
package payment

import (
	"context"
	"errors"
)

// Intent statuses the reservation flow cares about.
const (
	StatusSucceeded       = "succeeded"
	StatusRequiresPayment = "requires_payment_method"
	StatusCanceled        = "canceled"
)

// ErrDisabled is returned by every call when no processor is configured.
var ErrDisabled = errors.New("payment processor not configured")

// Intent is a processor-side payment awaiting or holding funds.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
}

// Refund is a processor-side refund of an intent.
type Refund struct {
	ID          string
	AmountCents int64
	Status      string
}

// IntentRequest describes a payment to open.  IdempotencyKey makes
// retried creations return the same intent.
type IntentRequest struct {
	AmountCents    int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundRequest describes a refund of an intent.
type RefundRequest struct {
	PaymentRef     string
	AmountCents    int64
	IdempotencyKey string
	Metadata       map[string]string
}

// Processor is the external payment service.
type Processor interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
}
