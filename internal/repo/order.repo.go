package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"guardians-shop/internal/domain"
)

type OrderRepo interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error)
	// CreatePending stores a new pending order, before any payment exists.
	CreatePending(ctx context.Context, order *domain.Order) error
	// CreateOrUpdateApproved moves the order owning paymentID to approved.
	// The order is found by payment id, then by orderRef (a pending order
	// without payment id), and is created from draft otherwise. The bool
	// reports whether this call performed the transition.
	CreateOrUpdateApproved(ctx context.Context, paymentID, orderRef string, draft domain.OrderDraft) (*domain.Order, bool, error)
	// RecordRejected is the rejected counterpart; it only moves pending orders.
	RecordRejected(ctx context.Context, paymentID, orderRef string, draft domain.OrderDraft) (*domain.Order, bool, error)
	// ClaimDeliverable marks up to limit deliverable orders in flight for lease.
	ClaimDeliverable(ctx context.Context, limit int, lease time.Duration) ([]domain.Order, error)
	ReleaseClaims(ctx context.Context, ids []uuid.UUID) error
	RecordDeliveryOutcome(ctx context.Context, id uuid.UUID, outcome domain.DeliveryOutcome) error
}

const orderColumns = `id, user_ref, payment_id, product_sku, product_name, price, status,
	delivery_status, rcon_command, delivery_attempts, last_delivery_error, server_response,
	claimed_until, delivered_at, created_at, updated_at`

type orderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) OrderRepo {
	return &orderRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o            domain.Order
		paymentID    sql.NullString
		claimedUntil sql.NullTime
		deliveredAt  sql.NullTime
	)
	err := row.Scan(
		&o.ID,
		&o.UserRef,
		&paymentID,
		&o.ProductSKU,
		&o.ProductName,
		&o.Price,
		&o.Status,
		&o.DeliveryStatus,
		&o.RconCommand,
		&o.DeliveryAttempts,
		&o.LastDeliveryError,
		&o.ServerResponse,
		&claimedUntil,
		&deliveredAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.PaymentID = paymentID.String
	if claimedUntil.Valid {
		t := claimedUntil.Time
		o.ClaimedUntil = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	return &o, nil
}

func nullablePaymentID(id string) sql.NullString {
	return sql.NullString{String: id, Valid: id != ""}
}

func (r *orderRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // not found
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return o, nil
}

func (r *orderRepo) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE payment_id = $1", paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order by payment %s: %w", paymentID, err)
	}
	return o, nil
}

func (r *orderRepo) CreatePending(ctx context.Context, order *domain.Order) error {
	order.Status = domain.PaymentPending
	order.DeliveryStatus = domain.DeliveryPending
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_ref, payment_id, product_sku, product_name, price,
			status, delivery_status, rcon_command, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		order.ID, order.UserRef, nullablePaymentID(order.PaymentID), order.ProductSKU,
		order.ProductName, order.Price, string(order.Status), string(order.DeliveryStatus),
		order.RconCommand, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *orderRepo) CreateOrUpdateApproved(ctx context.Context, paymentID, orderRef string, draft domain.OrderDraft) (*domain.Order, bool, error) {
	return r.settle(ctx, paymentID, orderRef, draft, domain.PaymentApproved)
}

func (r *orderRepo) RecordRejected(ctx context.Context, paymentID, orderRef string, draft domain.OrderDraft) (*domain.Order, bool, error) {
	return r.settle(ctx, paymentID, orderRef, draft, domain.PaymentRejected)
}

// settle runs in one transaction. The row lock taken on the order, and the
// unique index on payment_id, serialize concurrent calls for one payment.
func (r *orderRepo) settle(ctx context.Context, paymentID, orderRef string, draft domain.OrderDraft, target domain.PaymentStatus) (*domain.Order, bool, error) {
	if paymentID == "" {
		return nil, false, errors.New("payment id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	order, err := lockByPaymentID(ctx, tx, paymentID)
	if err != nil {
		return nil, false, err
	}

	if order == nil && orderRef != "" {
		if id, perr := uuid.Parse(orderRef); perr == nil {
			order, err = adoptPending(ctx, tx, id, paymentID)
			if err != nil {
				return nil, false, err
			}
		}
	}

	if order == nil {
		created, err := insertSettled(ctx, tx, domain.NewOrder(draft, paymentID, time.Now().UTC()), target)
		if err != nil {
			return nil, false, err
		}
		if created != nil {
			if err := tx.Commit(); err != nil {
				return nil, false, err
			}
			return created, true, nil
		}
		// Lost the insert race; the winner has committed by now.
		order, err = lockByPaymentID(ctx, tx, paymentID)
		if err != nil {
			return nil, false, err
		}
		if order == nil {
			return nil, false, fmt.Errorf("order for payment %s vanished after conflict", paymentID)
		}
	}

	changed := false
	if canSettle(order.Status, target) {
		err := tx.QueryRowContext(ctx,
			"UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 RETURNING updated_at",
			order.ID, string(target),
		).Scan(&order.UpdatedAt)
		if err != nil {
			return nil, false, fmt.Errorf("settle order %s: %w", order.ID, err)
		}
		order.Status = target
		changed = true
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return order, changed, nil
}

// canSettle: approved is taken from any other status since the gateway is
// authoritative; rejected is only taken from pending.
func canSettle(current, target domain.PaymentStatus) bool {
	switch target {
	case domain.PaymentApproved:
		return current != domain.PaymentApproved
	case domain.PaymentRejected:
		return current == domain.PaymentPending
	default:
		return false
	}
}

func lockByPaymentID(ctx context.Context, tx *sql.Tx, paymentID string) (*domain.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE payment_id = $1 FOR UPDATE", paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock order by payment %s: %w", paymentID, err)
	}
	return o, nil
}

func adoptPending(ctx context.Context, tx *sql.Tx, id uuid.UUID, paymentID string) (*domain.Order, error) {
	o, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders SET payment_id = $2, updated_at = now()
		WHERE id = $1 AND payment_id IS NULL AND status = 'pending'
		RETURNING `+orderColumns, id, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("adopt order %s: %w", id, err)
	}
	return o, nil
}

func insertSettled(ctx context.Context, tx *sql.Tx, o *domain.Order, status domain.PaymentStatus) (*domain.Order, error) {
	o.Status = status
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_ref, payment_id, product_sku, product_name, price,
			status, delivery_status, rcon_command, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (payment_id) DO NOTHING`,
		o.ID, o.UserRef, o.PaymentID, o.ProductSKU, o.ProductName, o.Price,
		string(o.Status), string(o.DeliveryStatus), o.RconCommand, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return o, nil
}

func (r *orderRepo) ClaimDeliverable(ctx context.Context, limit int, lease time.Duration) ([]domain.Order, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		UPDATE orders SET claimed_until = now() + make_interval(secs => $2), updated_at = now()
		WHERE id IN (
			SELECT id FROM orders
			WHERE status = 'approved'
			  AND delivery_status IN ('pending', 'failed')
			  AND (claimed_until IS NULL OR claimed_until < now())
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+orderColumns, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim deliverable orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}

func (r *orderRepo) ReleaseClaims(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	_, err := r.db.ExecContext(ctx,
		"UPDATE orders SET claimed_until = NULL, updated_at = now() WHERE id = ANY($1::uuid[]) AND delivery_status <> 'delivered'",
		strIDs,
	)
	if err != nil {
		return fmt.Errorf("release claims: %w", err)
	}
	return nil
}

func (r *orderRepo) RecordDeliveryOutcome(ctx context.Context, id uuid.UUID, outcome domain.DeliveryOutcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			delivery_status = $2,
			server_response = $3,
			last_delivery_error = $4,
			delivery_attempts = delivery_attempts + 1,
			claimed_until = NULL,
			delivered_at = CASE WHEN $2 = 'delivered' THEN now() ELSE delivered_at END,
			updated_at = now()
		WHERE id = $1 AND status = 'approved' AND delivery_status <> 'delivered'`,
		id, string(outcome.Status), outcome.Response, outcome.Error,
	)
	if err != nil {
		return fmt.Errorf("record delivery outcome for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return rejectOutcome(current)
}

func rejectOutcome(current *domain.Order) error {
	switch {
	case current == nil:
		return domain.ErrOrderNotFound
	case current.DeliveryStatus == domain.DeliveryDelivered:
		return domain.ErrAlreadyDelivered
	default:
		return domain.ErrNotApproved
	}
}
