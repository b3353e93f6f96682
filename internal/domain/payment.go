package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
	// PaymentStatusExpired marks a pending payment the gateway never settled
	// within the stale window. The money status is unknown, so a late gateway
	// result can still move it to confirmed or failed.
	PaymentStatusExpired PaymentStatus = "expired"
)

// GatewayStatus is the normalized outcome reported by the payment gateway.
type GatewayStatus string

const (
	GatewayStatusSuccess GatewayStatus = "success"
	GatewayStatusFailure GatewayStatus = "failure"
	GatewayStatusPending GatewayStatus = "pending"
)

func (s GatewayStatus) Valid() bool {
	switch s {
	case GatewayStatusSuccess, GatewayStatusFailure, GatewayStatusPending:
		return true
	default:
		return false
	}
}

// Payment is a rent or deposit payment processed by the external gateway.
// GatewayReference is unique; a confirmed payment is never modified again.
type Payment struct {
	ID               uuid.UUID
	LeaseID          uuid.UUID
	PropertyID       uuid.UUID
	TenantID         uuid.UUID
	Amount           decimal.Decimal
	GatewayReference string
	GatewayToken     string
	RedirectURL      string
	Status           PaymentStatus
	ConfirmedAt      *time.Time
	FailedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByReference(ctx context.Context, ref string) (*Payment, error)
	// GetByReferenceForUpdate locks the payment row for the rest of the transaction.
	GetByReferenceForUpdate(ctx context.Context, ref string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	ListByLease(ctx context.Context, leaseID uuid.UUID) ([]*Payment, error)
	ListPendingBefore(ctx context.Context, before time.Time) ([]*Payment, error)
}
