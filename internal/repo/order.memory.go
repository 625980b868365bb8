package repo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"guardians-shop/internal/domain"
)

// memoryOrderRepo keeps orders in process memory. One mutex serializes every
// operation, which gives the same atomicity as the postgres implementation.
type memoryOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*domain.Order
	byPayment map[string]uuid.UUID
	now       func() time.Time
}

func NewMemoryOrderRepo() OrderRepo {
	return newMemoryOrderRepo(time.Now)
}

func newMemoryOrderRepo(now func() time.Time) *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:    make(map[uuid.UUID]*domain.Order),
		byPayment: make(map[string]uuid.UUID),
		now:       now,
	}
}

func (r *memoryOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *memoryOrderRepo) FindByPaymentID(_ context.Context, paymentID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPayment[paymentID]
	if !ok {
		return nil, nil
	}
	cp := *r.orders[id]
	return &cp, nil
}

func (r *memoryOrderRepo) CreatePending(_ context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.ID]; ok {
		return errors.New("create order: duplicate id")
	}
	if order.PaymentID != "" {
		if _, ok := r.byPayment[order.PaymentID]; ok {
			return errors.New("create order: duplicate payment id")
		}
	}
	order.Status = domain.PaymentPending
	order.DeliveryStatus = domain.DeliveryPending
	cp := *order
	r.orders[cp.ID] = &cp
	if cp.PaymentID != "" {
		r.byPayment[cp.PaymentID] = cp.ID
	}
	return nil
}

func (r *memoryOrderRepo) CreateOrUpdateApproved(ctx context.Context, paymentID, orderRef string, draft domain.OrderDraft) (*domain.Order, bool, error) {
	return r.settle(paymentID, orderRef, draft, domain.PaymentApproved)
}

func (r *memoryOrderRepo) RecordRejected(ctx context.Context, paymentID, orderRef string, draft domain.OrderDraft) (*domain.Order, bool, error) {
	return r.settle(paymentID, orderRef, draft, domain.PaymentRejected)
}

func (r *memoryOrderRepo) settle(paymentID, orderRef string, draft domain.OrderDraft, target domain.PaymentStatus) (*domain.Order, bool, error) {
	if paymentID == "" {
		return nil, false, errors.New("payment id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()

	var order *domain.Order
	if id, ok := r.byPayment[paymentID]; ok {
		order = r.orders[id]
	} else if id, err := uuid.Parse(orderRef); err == nil {
		if o, ok := r.orders[id]; ok && o.PaymentID == "" && o.Status == domain.PaymentPending {
			o.PaymentID = paymentID
			o.UpdatedAt = now
			r.byPayment[paymentID] = o.ID
			order = o
		}
	}

	if order == nil {
		o := domain.NewOrder(draft, paymentID, now)
		o.Status = target
		r.orders[o.ID] = o
		r.byPayment[paymentID] = o.ID
		cp := *o
		return &cp, true, nil
	}

	changed := false
	if canSettle(order.Status, target) {
		order.Status = target
		order.UpdatedAt = now
		changed = true
	}
	cp := *order
	return &cp, changed, nil
}

func (r *memoryOrderRepo) ClaimDeliverable(_ context.Context, limit int, lease time.Duration) ([]domain.Order, error) {
	if limit <= 0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	var candidates []*domain.Order
	for _, o := range r.orders {
		if o.Deliverable() && !o.Claimed(now) {
			candidates = append(candidates, o)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].CreatedAt.Before(candidates[j].CreatedAt) })
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	until := now.Add(lease)
	claimed := make([]domain.Order, 0, len(candidates))
	for _, o := range candidates {
		u := until
		o.ClaimedUntil = &u
		o.UpdatedAt = now
		claimed = append(claimed, *o)
	}
	return claimed, nil
}

func (r *memoryOrderRepo) ReleaseClaims(_ context.Context, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if o, ok := r.orders[id]; ok && o.DeliveryStatus != domain.DeliveryDelivered {
			o.ClaimedUntil = nil
		}
	}
	return nil
}

func (r *memoryOrderRepo) RecordDeliveryOutcome(_ context.Context, id uuid.UUID, outcome domain.DeliveryOutcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok || o.Status != domain.PaymentApproved || o.DeliveryStatus == domain.DeliveryDelivered {
		var current *domain.Order
		if ok {
			current = o
		}
		return rejectOutcome(current)
	}

	now := r.now().UTC()
	o.DeliveryStatus = outcome.Status
	o.ServerResponse = outcome.Response
	o.LastDeliveryError = outcome.Error
	o.DeliveryAttempts++
	o.ClaimedUntil = nil
	o.UpdatedAt = now
	if outcome.Status == domain.DeliveryDelivered {
		o.DeliveredAt = &now
	}
	return nil
}
