package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"guardians-shop/internal/domain"
	"guardians-shop/internal/infrastructure/rcon"
	"guardians-shop/internal/metrics"
	"guardians-shop/internal/repo"
)

type DeliveryConfig struct {
	Interval   time.Duration
	BatchSize  int
	ClaimLease time.Duration
	// AlertAfter is the attempt count from which a failed delivery is
	// reported for manual review. Zero disables the alert.
	AlertAfter int
}

// TickReport summarizes one delivery pass.
type TickReport struct {
	Skipped   bool
	Claimed   int
	Delivered int
	Failed    int
	Released  int
}

type DeliveryWorker struct {
	orders  repo.OrderRepo
	dialer  rcon.Dialer
	cfg     DeliveryConfig
	log     *slog.Logger
	metrics *metrics.FulfillmentMetrics

	running atomic.Bool
}

func NewDeliveryWorker(
	orders repo.OrderRepo,
	dialer rcon.Dialer,
	cfg DeliveryConfig,
	log *slog.Logger,
	m *metrics.FulfillmentMetrics,
) *DeliveryWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	return &DeliveryWorker{
		orders:  orders,
		dialer:  dialer,
		cfg:     cfg,
		log:     log.With(slog.String("component", "delivery_worker")),
		metrics: m,
	}
}

// Run ticks until ctx is cancelled. A tick in progress finishes its current
// command before Run returns.
func (w *DeliveryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("delivery worker started",
		slog.Duration("interval", w.cfg.Interval),
		slog.Int("batch_size", w.cfg.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("delivery worker stopped")
			return
		case <-ticker.C:
			if _, err := w.Tick(ctx); err != nil {
				w.log.Error("delivery tick failed", slog.Any("error", err))
			}
		}
	}
}

// Tick claims one batch and delivers it over a single RCON session. It
// returns immediately with Skipped set while another tick is running.
func (w *DeliveryWorker) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	if !w.running.CompareAndSwap(false, true) {
		w.log.Warn("previous delivery tick still running, skipping")
		report.Skipped = true
		return report, nil
	}
	defer w.running.Store(false)

	start := time.Now()
	orders, err := w.orders.ClaimDeliverable(ctx, w.cfg.BatchSize, w.cfg.ClaimLease)
	if err != nil {
		return report, fmt.Errorf("claim deliverable orders: %w", err)
	}
	report.Claimed = len(orders)
	defer func() { w.metrics.ObserveTick(report.Claimed, time.Since(start)) }()

	if len(orders) == 0 {
		return report, nil
	}

	opened := false
	err = rcon.WithSession(ctx, w.dialer, func(s rcon.Session) error {
		opened = true
		return w.deliverBatch(ctx, s, orders, &report)
	})

	switch {
	case err == nil:
	case !opened:
		w.metrics.RecordConnectFailure()
		w.release(ctx, orders, &report)
		w.log.Error("rcon unavailable, batch left for next tick",
			slog.Int("orders", len(orders)),
			slog.Any("error", err),
		)
		return report, fmt.Errorf("open rcon session: %w", err)
	case errors.Is(err, rcon.ErrConnectionLost), errors.Is(err, context.Canceled):
		return report, err
	default:
		// Every order already has its outcome; only the close failed.
		w.log.Warn("rcon session did not close cleanly", slog.Any("error", err))
	}

	w.log.Info("delivery tick finished",
		slog.Int("claimed", report.Claimed),
		slog.Int("delivered", report.Delivered),
		slog.Int("failed", report.Failed),
		slog.Int("released", report.Released),
		slog.Duration("took", time.Since(start)),
	)
	return report, nil
}

func (w *DeliveryWorker) deliverBatch(ctx context.Context, s rcon.Session, orders []domain.Order, report *TickReport) error {
	for i := range orders {
		if err := ctx.Err(); err != nil {
			w.release(ctx, orders[i:], report)
			return err
		}

		o := orders[i]
		resp, err := s.Send(ctx, o.RconCommand)

		outcome := domain.DeliveryOutcome{Status: domain.DeliveryDelivered, Response: resp}
		if err != nil {
			outcome = domain.DeliveryOutcome{Status: domain.DeliveryFailed, Error: err.Error()}
		}
		// The command is already on the wire, so the outcome is stored even
		// when shutdown has begun.
		w.record(context.WithoutCancel(ctx), o, outcome, report)

		if errors.Is(err, rcon.ErrConnectionLost) {
			w.release(ctx, orders[i+1:], report)
			return err
		}
	}
	return nil
}

func (w *DeliveryWorker) record(ctx context.Context, o domain.Order, outcome domain.DeliveryOutcome, report *TickReport) {
	log := w.log.With(
		slog.String("order_id", o.ID.String()),
		slog.String("payment_id", o.PaymentID),
		slog.String("sku", o.ProductSKU),
	)

	err := w.orders.RecordDeliveryOutcome(ctx, o.ID, outcome)
	switch {
	case errors.Is(err, domain.ErrAlreadyDelivered):
		log.Warn("order was delivered by another run, outcome dropped", slog.String("outcome", string(outcome.Status)))
		return
	case err != nil:
		// The claim lease expires and the order is attempted again.
		log.Error("failed to record delivery outcome",
			slog.String("outcome", string(outcome.Status)),
			slog.Any("error", err),
		)
		return
	}

	w.metrics.RecordDelivery(string(outcome.Status))
	if outcome.Status == domain.DeliveryDelivered {
		report.Delivered++
		log.Info("order delivered", slog.String("response", outcome.Response))
		return
	}
	report.Failed++

	attempts := o.DeliveryAttempts + 1
	log = log.With(slog.Int("attempts", attempts), slog.String("error", outcome.Error))
	if w.cfg.AlertAfter > 0 && attempts >= w.cfg.AlertAfter {
		log.Error("delivery keeps failing, needs operator review", slog.Bool("alert", true))
		return
	}
	log.Warn("delivery failed, will retry")
}

func (w *DeliveryWorker) release(ctx context.Context, orders []domain.Order, report *TickReport) {
	if len(orders) == 0 {
		return
	}
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	if err := w.orders.ReleaseClaims(context.WithoutCancel(ctx), ids); err != nil {
		w.log.Error("failed to release claims", slog.Int("orders", len(ids)), slog.Any("error", err))
		return
	}
	report.Released += len(ids)
}
