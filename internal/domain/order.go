package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyDelivered = errors.New("order already delivered")
	ErrNotApproved      = errors.New("order payment is not approved")
	ErrInvalidOutcome   = errors.New("delivery outcome must be delivered or failed")
)

// Order is one purchase attempt. PaymentID is the idempotency key once set.
type Order struct {
	ID                uuid.UUID      `json:"id"`
	UserRef           string         `json:"userRef"`
	PaymentID         string         `json:"paymentId,omitempty"`
	ProductSKU        string         `json:"productSku"`
	ProductName       string         `json:"productName"`
	Price             float64        `json:"price"`
	Status            PaymentStatus  `json:"status"`
	DeliveryStatus    DeliveryStatus `json:"deliveryStatus"`
	RconCommand       string         `json:"rconCommand"`
	DeliveryAttempts  int            `json:"deliveryAttempts"`
	LastDeliveryError string         `json:"lastDeliveryError,omitempty"`
	ServerResponse    string         `json:"serverResponse,omitempty"`
	ClaimedUntil      *time.Time     `json:"-"`
	DeliveredAt       *time.Time     `json:"deliveredAt,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// Deliverable reports whether the worker may attempt delivery.
func (o *Order) Deliverable() bool {
	if o.Status != PaymentApproved {
		return false
	}
	return o.DeliveryStatus == DeliveryPending || o.DeliveryStatus == DeliveryFailed
}

// Claimed reports whether another worker run holds the order at now.
func (o *Order) Claimed(now time.Time) bool {
	return o.ClaimedUntil != nil && o.ClaimedUntil.After(now)
}

// OrderDraft is the purchase snapshot used when a payment arrives for an
// order that does not exist yet.
type OrderDraft struct {
	UserRef     string
	ProductSKU  string
	ProductName string
	Price       float64
	RconCommand string
}

// NewOrder builds a pending order from a draft.
func NewOrder(draft OrderDraft, paymentID string, now time.Time) *Order {
	return &Order{
		ID:             uuid.New(),
		UserRef:        draft.UserRef,
		PaymentID:      paymentID,
		ProductSKU:     draft.ProductSKU,
		ProductName:    draft.ProductName,
		Price:          draft.Price,
		Status:         PaymentPending,
		DeliveryStatus: DeliveryPending,
		RconCommand:    draft.RconCommand,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

type DeliveryOutcome struct {
	Status   DeliveryStatus
	Response string
	Error    string
}

func (o DeliveryOutcome) Validate() error {
	if o.Status != DeliveryDelivered && o.Status != DeliveryFailed {
		return ErrInvalidOutcome
	}
	return nil
}
