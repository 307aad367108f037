package port

import (
	"context"

	"github.com/rl1809/checkout/internal/core/domain"
)

type PaymentProvider interface {
	// CreatePayment registers a payment with the provider and returns its links
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error)
}
