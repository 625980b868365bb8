package payment

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	mppayment "github.com/mercadopago/sdk-go/pkg/payment"

	"guardians-shop/internal/domain"
)

type paymentGetter interface {
	Get(ctx context.Context, id int) (*mppayment.Response, error)
}

type mercadoPagoGateway struct {
	client paymentGetter
}

func NewMercadoPagoGateway(accessToken string) (PaymentGateway, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}
	return &mercadoPagoGateway{client: mppayment.NewClient(cfg)}, nil
}

func (g *mercadoPagoGateway) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	id, err := strconv.Atoi(strings.TrimSpace(paymentID))
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentID, paymentID)
	}

	resp, err := g.client.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: get payment %d: %v", ErrGatewayUnavailable, id, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response for payment %d", ErrGatewayUnavailable, id)
	}

	return &domain.Payment{
		ID:                strconv.Itoa(resp.ID),
		Status:            mapStatus(resp.Status),
		StatusDetail:      resp.StatusDetail,
		ExternalReference: resp.ExternalReference,
		Metadata:          domain.Metadata(resp.Metadata),
	}, nil
}

// mapStatus folds provider statuses into the three the order tracks.
// in_process, authorized, in_mediation, refunded and charged_back all map to
// pending, which writes nothing.
func mapStatus(s string) domain.PaymentStatus {
	switch s {
	case "approved":
		return domain.PaymentApproved
	case "rejected", "cancelled":
		return domain.PaymentRejected
	default:
		return domain.PaymentPending
	}
}
