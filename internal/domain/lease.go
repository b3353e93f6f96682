package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type LeaseStatus string

const (
	LeaseStatusPending    LeaseStatus = "pending"
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusTerminated LeaseStatus = "terminated"
	LeaseStatusExpired    LeaseStatus = "expired"
)

// ValidTransition checks if a lease state transition is allowed.
// Allowed: pending->active, active->terminated, active->expired.
// Terminated and expired are terminal.
func (s LeaseStatus) ValidTransition(to LeaseStatus) bool {
	switch s {
	case LeaseStatusPending:
		return to == LeaseStatusActive
	case LeaseStatusActive:
		return to == LeaseStatusTerminated || to == LeaseStatusExpired
	default:
		return false
	}
}

func (s LeaseStatus) Terminal() bool {
	return s == LeaseStatusTerminated || s == LeaseStatusExpired
}

// Lease binds a tenant to a unit. PropertyID and UnitID are copied from the
// tenant's unit at creation so scope checks need no joins.
type Lease struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	UnitID            uuid.UUID
	PropertyID        uuid.UUID
	StartDate         time.Time
	EndDate           time.Time
	Rent              decimal.Decimal
	Deposit           decimal.Decimal
	Term              int // months signed for; fixed at creation
	Status            LeaseStatus
	TerminationReason string
	ActivatedAt       *time.Time
	EndedAt           *time.Time
	RenewedAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TermMonths returns the lease length in whole months, counting EndDate as
// the last occupied day. It is at least one.
func (l *Lease) TermMonths() int {
	end := DateOf(l.EndDate).AddDate(0, 0, 1)
	start := DateOf(l.StartDate)
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if end.Day() < start.Day() {
		months--
	}
	return max(months, 1)
}

// RenewalTerm is the number of months an automatic renewal adds. Renewals
// repeat the signed term, not the span the lease has grown to.
func (l *Lease) RenewalTerm() int {
	if l.Term > 0 {
		return l.Term
	}
	return l.TermMonths()
}

// Covers reports whether the calendar month of period overlaps the lease term.
func (l *Lease) Covers(p Period) bool {
	first := p.Start()
	last := p.End()
	return !first.After(DateOf(l.EndDate)) && !last.Before(DateOf(l.StartDate))
}

type LeaseRepository interface {
	Create(ctx context.Context, l *Lease) error
	GetByID(ctx context.Context, id uuid.UUID) (*Lease, error)
	// GetForUpdate loads the lease and holds an exclusive lock on it until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Lease, error)
	Update(ctx context.Context, l *Lease) error
	ListByStatus(ctx context.Context, status LeaseStatus) ([]*Lease, error)
	CountActiveByUnit(ctx context.Context, unitID, excludeLeaseID uuid.UUID) (int, error)
}
