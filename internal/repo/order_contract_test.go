package repo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardians-shop/internal/domain"
)

func vipDraft(player string) domain.OrderDraft {
	return domain.OrderDraft{
		UserRef:     "u1",
		ProductSKU:  "vip_oficial",
		ProductName: "VIP Oficial",
		Price:       29.99,
		RconCommand: "giveitems " + player + ` "VIPToken_Official" 1 1 false`,
	}
}

func approve(t *testing.T, r OrderRepo, paymentID string) *domain.Order {
	t.Helper()
	o, _, err := r.CreateOrUpdateApproved(context.Background(), paymentID, "", vipDraft("Steve"))
	require.NoError(t, err)
	return o
}

// testOrderRepoContract exercises behaviour every OrderRepo must share.
func testOrderRepoContract(t *testing.T, newRepo func(t *testing.T) OrderRepo) {
	ctx := context.Background()

	t.Run("approve creates one order", func(t *testing.T) {
		r := newRepo(t)

		first, changed, err := r.CreateOrUpdateApproved(ctx, "555", "", vipDraft("Steve"))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.PaymentApproved, first.Status)
		assert.Equal(t, domain.DeliveryPending, first.DeliveryStatus)

		second, changed, err := r.CreateOrUpdateApproved(ctx, "555", "", vipDraft("Someone"))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.RconCommand, second.RconCommand)

		stored, err := r.FindByPaymentID(ctx, "555")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, first.ID, stored.ID)
		assert.Equal(t, "u1", stored.UserRef)
		assert.Equal(t, 29.99, stored.Price)
	})

	t.Run("concurrent approvals create one order", func(t *testing.T) {
		r := newRepo(t)

		const n = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = map[uuid.UUID]int{}
			changes int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				o, changed, err := r.CreateOrUpdateApproved(ctx, "777", "", vipDraft("Steve"))
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[o.ID]++
				if changed {
					changes++
				}
			}()
		}
		wg.Wait()

		assert.Len(t, ids, 1)
		assert.Equal(t, 1, changes)
	})

	t.Run("adopts pending order by reference", func(t *testing.T) {
		r := newRepo(t)

		pending := domain.NewOrder(vipDraft("Steve"), "", time.Now().UTC())
		require.NoError(t, r.CreatePending(ctx, pending))

		o, changed, err := r.CreateOrUpdateApproved(ctx, "901", pending.ID.String(), vipDraft("Other"))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, pending.ID, o.ID)
		assert.Equal(t, "901", o.PaymentID)
		assert.Equal(t, pending.RconCommand, o.RconCommand)
	})

	t.Run("rejected only from pending", func(t *testing.T) {
		r := newRepo(t)

		o, changed, err := r.RecordRejected(ctx, "300", "", vipDraft("Steve"))
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, domain.PaymentRejected, o.Status)

		approve(t, r, "301")
		o, changed, err = r.RecordRejected(ctx, "301", "", vipDraft("Steve"))
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, domain.PaymentApproved, o.Status)

		claimed, err := r.ClaimDeliverable(ctx, 10, time.Hour)
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, "301", claimed[0].PaymentID)
	})

	t.Run("claim filters and marks in flight", func(t *testing.T) {
		r := newRepo(t)

		pending := domain.NewOrder(vipDraft("Steve"), "p-pending", time.Now().UTC())
		require.NoError(t, r.CreatePending(ctx, pending))
		a := approve(t, r, "a")
		b := approve(t, r, "b")
		c := approve(t, r, "c")

		first, err := r.ClaimDeliverable(ctx, 2, time.Hour)
		require.NoError(t, err)
		require.Len(t, first, 2)
		assert.Equal(t, a.ID, first[0].ID)
		assert.Equal(t, b.ID, first[1].ID)

		second, err := r.ClaimDeliverable(ctx, 10, time.Hour)
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, c.ID, second[0].ID)

		none, err := r.ClaimDeliverable(ctx, 10, time.Hour)
		require.NoError(t, err)
		assert.Empty(t, none)

		require.NoError(t, r.ReleaseClaims(ctx, []uuid.UUID{a.ID, b.ID}))
		again, err := r.ClaimDeliverable(ctx, 10, time.Hour)
		require.NoError(t, err)
		assert.Len(t, again, 2)
	})

	t.Run("failed is reclaimed, delivered is not", func(t *testing.T) {
		r := newRepo(t)

		ok := approve(t, r, "ok")
		bad := approve(t, r, "bad")

		claimed, err := r.ClaimDeliverable(ctx, 10, time.Hour)
		require.NoError(t, err)
		require.Len(t, claimed, 2)

		require.NoError(t, r.RecordDeliveryOutcome(ctx, ok.ID, domain.DeliveryOutcome{Status: domain.DeliveryDelivered, Response: "done"}))
		require.NoError(t, r.RecordDeliveryOutcome(ctx, bad.ID, domain.DeliveryOutcome{Status: domain.DeliveryFailed, Error: "timeout"}))

		next, err := r.ClaimDeliverable(ctx, 10, time.Hour)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Equal(t, bad.ID, next[0].ID)
		assert.Equal(t, 1, next[0].DeliveryAttempts)
		assert.Equal(t, "timeout", next[0].LastDeliveryError)

		delivered, err := r.FindByID(ctx, ok.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DeliveryDelivered, delivered.DeliveryStatus)
		assert.Equal(t, "done", delivered.ServerResponse)
		assert.NotNil(t, delivered.DeliveredAt)
		assert.Nil(t, delivered.ClaimedUntil)
	})

	t.Run("delivered is write once", func(t *testing.T) {
		r := newRepo(t)
		o := approve(t, r, "once")

		require.NoError(t, r.RecordDeliveryOutcome(ctx, o.ID, domain.DeliveryOutcome{Status: domain.DeliveryDelivered}))

		err := r.RecordDeliveryOutcome(ctx, o.ID, domain.DeliveryOutcome{Status: domain.DeliveryFailed, Error: "late"})
		assert.ErrorIs(t, err, domain.ErrAlreadyDelivered)

		err = r.RecordDeliveryOutcome(ctx, o.ID, domain.DeliveryOutcome{Status: domain.DeliveryDelivered})
		assert.ErrorIs(t, err, domain.ErrAlreadyDelivered)

		stored, err := r.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DeliveryDelivered, stored.DeliveryStatus)
		assert.Equal(t, 1, stored.DeliveryAttempts)
	})

	t.Run("outcome rejected for unpaid or unknown orders", func(t *testing.T) {
		r := newRepo(t)

		pending := domain.NewOrder(vipDraft("Steve"), "unpaid", time.Now().UTC())
		require.NoError(t, r.CreatePending(ctx, pending))

		err := r.RecordDeliveryOutcome(ctx, pending.ID, domain.DeliveryOutcome{Status: domain.DeliveryDelivered})
		assert.ErrorIs(t, err, domain.ErrNotApproved)

		err = r.RecordDeliveryOutcome(ctx, uuid.New(), domain.DeliveryOutcome{Status: domain.DeliveryDelivered})
		assert.ErrorIs(t, err, domain.ErrOrderNotFound)

		err = r.RecordDeliveryOutcome(ctx, pending.ID, domain.DeliveryOutcome{Status: domain.DeliveryPending})
		assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
	})

	t.Run("expired claim is reclaimable", func(t *testing.T) {
		r := newRepo(t)
		o := approve(t, r, "lease")

		claimed, err := r.ClaimDeliverable(ctx, 10, 50*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		time.Sleep(150 * time.Millisecond)

		again, err := r.ClaimDeliverable(ctx, 10, time.Hour)
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, o.ID, again[0].ID)
	})

	t.Run("lookups return nil when absent", func(t *testing.T) {
		r := newRepo(t)

		o, err := r.FindByPaymentID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, o)

		o, err = r.FindByID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, o)
	})
}

func TestMemoryOrderRepo(t *testing.T) {
	testOrderRepoContract(t, func(t *testing.T) OrderRepo {
		return NewMemoryOrderRepo()
	})
}
