package payment

import (
	"context"
	"errors"

	"guardians-shop/internal/domain"
)

var (
	// ErrInvalidPaymentID is returned for identifiers the provider can never resolve.
	ErrInvalidPaymentID = errors.New("invalid payment id")
	// ErrGatewayUnavailable wraps transport and provider failures worth retrying.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// PaymentGateway fetches the authoritative state of a payment.
type PaymentGateway interface {
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
}
