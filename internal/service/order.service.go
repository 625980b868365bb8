package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"guardians-shop/internal/domain"
	"guardians-shop/internal/infrastructure/payment"
	"guardians-shop/internal/infrastructure/rcon"
	"guardians-shop/internal/metrics"
	"guardians-shop/internal/repo"
)

// Metadata keys attached to the payment preference.
const (
	MetaPlayer  = "player_username"
	MetaProduct = "product_sku"
	MetaUser    = "user_id"
)

var (
	ErrInvalidRequest = errors.New("invalid order request")
	ErrUnknownProduct = errors.New("unknown product")
)

// Notification is the pointer a provider webhook carries. Nothing else in
// the request is trusted.
type Notification struct {
	Topic     string
	PaymentID string
}

type Result string

const (
	ResultIgnored   Result = "ignored"
	ResultMalformed Result = "malformed"
	ResultPending   Result = "pending"
	ResultRejected  Result = "rejected"
	ResultApproved  Result = "approved"
	ResultDuplicate Result = "duplicate"
	ResultFailed    Result = "failed"
)

type PendingOrderRequest struct {
	UserRef    string
	ProductSKU string
	Player     string
}

type OrderService interface {
	// HandleNotification verifies a payment with the gateway and moves its
	// order to approved. It never delivers. A non-nil error means the
	// provider should retry.
	HandleNotification(ctx context.Context, n Notification) (Result, error)
	CreatePendingOrder(ctx context.Context, req PendingOrderRequest) (*domain.Order, error)
	GetOrderByPayment(ctx context.Context, paymentID string) (*domain.Order, error)
}

type Config struct {
	GatewayTimeout time.Duration
}

type orderService struct {
	orders   repo.OrderRepo
	products repo.ProductRepo
	gateway  payment.PaymentGateway
	cfg      Config
	log      *slog.Logger
	metrics  *metrics.FulfillmentMetrics
}

func NewOrderService(
	orders repo.OrderRepo,
	products repo.ProductRepo,
	gateway payment.PaymentGateway,
	cfg Config,
	log *slog.Logger,
	m *metrics.FulfillmentMetrics,
) OrderService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &orderService{
		orders:   orders,
		products: products,
		gateway:  gateway,
		cfg:      cfg,
		log:      log,
		metrics:  m,
	}
}

func (s *orderService) HandleNotification(ctx context.Context, n Notification) (Result, error) {
	res, err := s.handle(ctx, n)
	if err != nil {
		res = ResultFailed
	}
	s.metrics.RecordWebhook(string(res))
	return res, err
}

func (s *orderService) handle(ctx context.Context, n Notification) (Result, error) {
	log := s.log.With(slog.String("topic", n.Topic), slog.String("payment_id", n.PaymentID))

	if !strings.EqualFold(strings.TrimSpace(n.Topic), "payment") {
		log.Debug("ignoring notification topic")
		return ResultIgnored, nil
	}
	if n.PaymentID == "" {
		log.Warn("payment notification without id")
		return ResultMalformed, nil
	}

	gctx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	p, err := s.gateway.GetPayment(gctx, n.PaymentID)
	cancel()
	if errors.Is(err, payment.ErrInvalidPaymentID) {
		log.Warn("discarding notification with invalid payment id", slog.Any("error", err))
		return ResultMalformed, nil
	}
	if err != nil {
		log.Error("failed to fetch payment", slog.Any("error", err))
		return ResultFailed, fmt.Errorf("fetch payment %s: %w", n.PaymentID, err)
	}

	log = log.With(slog.String("status", string(p.Status)))

	switch p.Status {
	case domain.PaymentApproved:
	case domain.PaymentRejected:
		return s.recordRejected(ctx, log, n.PaymentID, p)
	default:
		log.Info("payment not settled yet", slog.String("status_detail", p.StatusDetail))
		return ResultPending, nil
	}

	draft, reason, err := s.buildDraft(ctx, p.Metadata)
	if err != nil {
		log.Error("catalog lookup failed", slog.Any("error", err))
		return ResultFailed, err
	}
	if reason != "" {
		log.Error("discarding approved payment with unusable metadata", slog.String("reason", reason))
		return ResultMalformed, nil
	}

	order, changed, err := s.orders.CreateOrUpdateApproved(ctx, n.PaymentID, p.ExternalReference, draft)
	if err != nil {
		log.Error("failed to store approved order", slog.Any("error", err))
		return ResultFailed, fmt.Errorf("approve order for payment %s: %w", n.PaymentID, err)
	}
	if !changed {
		log.Info("duplicate approval absorbed", slog.String("order_id", order.ID.String()))
		return ResultDuplicate, nil
	}

	log.Info("order approved",
		slog.String("order_id", order.ID.String()),
		slog.String("sku", order.ProductSKU),
	)
	return ResultApproved, nil
}

func (s *orderService) recordRejected(ctx context.Context, log *slog.Logger, paymentID string, p *domain.Payment) (Result, error) {
	draft, reason, err := s.buildDraft(ctx, p.Metadata)
	if err != nil {
		return ResultFailed, err
	}
	if reason != "" {
		// Nothing to deliver either way, so an unusable rejected payment is only logged.
		log.Info("rejected payment not recorded", slog.String("reason", reason))
		return ResultRejected, nil
	}
	order, changed, err := s.orders.RecordRejected(ctx, paymentID, p.ExternalReference, draft)
	if err != nil {
		return ResultFailed, fmt.Errorf("reject order for payment %s: %w", paymentID, err)
	}
	log.Info("payment rejected", slog.String("order_id", order.ID.String()), slog.Bool("changed", changed))
	return ResultRejected, nil
}

// buildDraft resolves the purchase snapshot. A non-empty reason means the
// metadata can never produce a delivery; err means the catalog failed.
func (s *orderService) buildDraft(ctx context.Context, meta domain.Metadata) (domain.OrderDraft, string, error) {
	player := meta.String(MetaPlayer)
	sku := meta.String(MetaProduct)
	user := meta.String(MetaUser)

	var missing []string
	for _, kv := range [][2]string{{MetaPlayer, player}, {MetaProduct, sku}, {MetaUser, user}} {
		if kv[1] == "" {
			missing = append(missing, kv[0])
		}
	}
	if len(missing) > 0 {
		return domain.OrderDraft{}, "missing metadata: " + strings.Join(missing, ", "), nil
	}

	if rcon.SanitizePlayer(player) == "" {
		return domain.OrderDraft{}, "player name has no allowed characters", nil
	}

	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		return domain.OrderDraft{}, "", fmt.Errorf("find product %s: %w", sku, err)
	}
	if product == nil {
		return domain.OrderDraft{}, "unknown sku " + sku, nil
	}

	return domain.OrderDraft{
		UserRef:     user,
		ProductSKU:  product.SKU,
		ProductName: product.Name,
		Price:       product.Price,
		RconCommand: rcon.ResolveCommand(product.RconCommand, player),
	}, "", nil
}

func (s *orderService) CreatePendingOrder(ctx context.Context, req PendingOrderRequest) (*domain.Order, error) {
	draft, reason, err := s.buildDraft(ctx, domain.Metadata{
		MetaPlayer:  req.Player,
		MetaProduct: req.ProductSKU,
		MetaUser:    req.UserRef,
	})
	if err != nil {
		return nil, err
	}
	if reason != "" {
		if strings.HasPrefix(reason, "unknown sku") {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, req.ProductSKU)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
	}

	order := domain.NewOrder(draft, "", time.Now().UTC())
	if err := s.orders.CreatePending(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info("pending order created",
		slog.String("order_id", order.ID.String()),
		slog.String("sku", order.ProductSKU),
	)
	return order, nil
}

func (s *orderService) GetOrderByPayment(ctx context.Context, paymentID string) (*domain.Order, error) {
	order, err := s.orders.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}
