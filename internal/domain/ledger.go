package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// moneyLimit bounds amounts to what NUMERIC(14,2) columns hold.
var moneyLimit = decimal.New(1, 12) //nolint:gochecknoglobals // constant

// CheckMoney rejects amounts with more than two decimal places or a
// magnitude of 10^12 or more.
func CheckMoney(field string, d decimal.Decimal) error {
	if !d.Equal(d.Truncate(2)) {
		return fmt.Errorf("%w: %s must have at most two decimal places", ErrInvalidInput, field)
	}
	if d.Abs().GreaterThanOrEqual(moneyLimit) {
		return fmt.Errorf("%w: %s must be below 1000000000000", ErrInvalidInput, field)
	}
	return nil
}

type LedgerEntryKind string

const (
	LedgerEntryRent    LedgerEntryKind = "rent"
	LedgerEntryDeposit LedgerEntryKind = "deposit"
	LedgerEntryPayment LedgerEntryKind = "payment"
)

// Charge reports whether the entry increases what the tenant owes.
func (k LedgerEntryKind) Charge() bool {
	return k == LedgerEntryRent || k == LedgerEntryDeposit
}

// LedgerEntry is one line of a lease ledger. Charges are keyed by
// (LeaseID, Kind, Period); payment credits are keyed by PaymentID.
type LedgerEntry struct {
	ID        uuid.UUID
	LeaseID   uuid.UUID
	Kind      LedgerEntryKind
	Period    Period
	PaymentID *uuid.UUID
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// LedgerTotals are the raw sums behind a balance.
type LedgerTotals struct {
	Charges  decimal.Decimal
	Deposits decimal.Decimal
	Payments decimal.Decimal
}

// Balance is Charges - Payments. Signed keeps the audit value; Due is
// clamped at zero for reporting.
type Balance struct {
	LeaseID  uuid.UUID       `json:"lease_id"`
	Charges  decimal.Decimal `json:"charges"`
	Payments decimal.Decimal `json:"payments"`
	Signed   decimal.Decimal `json:"signed"`
	Due      decimal.Decimal `json:"due"`
}

func NewBalance(leaseID uuid.UUID, t LedgerTotals) Balance {
	signed := t.Charges.Sub(t.Payments)
	due := signed
	if due.IsNegative() {
		due = decimal.Zero
	}
	return Balance{
		LeaseID:  leaseID,
		Charges:  t.Charges,
		Payments: t.Payments,
		Signed:   signed,
		Due:      due,
	}
}

// Statement is a lease ledger with its balance, ordered oldest first.
type Statement struct {
	Lease   *Lease
	Entries []*LedgerEntry
	Balance Balance
}

type LedgerRepository interface {
	// Append inserts the entry unless one with the same accrual or payment key
	// exists. It reports whether a row was written.
	Append(ctx context.Context, e *LedgerEntry) (bool, error)
	ListByLease(ctx context.Context, leaseID uuid.UUID) ([]*LedgerEntry, error)
	Totals(ctx context.Context, leaseID uuid.UUID) (LedgerTotals, error)
}
