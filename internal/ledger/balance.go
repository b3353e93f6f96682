package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/scope"
)

// Balance computes the lease balance from the given repositories.
func Balance(ctx context.Context, repos domain.Repos, leaseID uuid.UUID) (domain.Balance, error) {
	totals, err := repos.Ledger().Totals(ctx, leaseID)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.NewBalance(leaseID, totals), nil
}

// DepositSettled reports whether confirmed payments cover the lease deposit.
// A zero deposit is always settled.
func DepositSettled(ctx context.Context, repos domain.Repos, lease *domain.Lease) (bool, error) {
	if !lease.Deposit.IsPositive() {
		return true, nil
	}
	totals, err := repos.Ledger().Totals(ctx, lease.ID)
	if err != nil {
		return false, err
	}
	return totals.Payments.GreaterThanOrEqual(lease.Deposit), nil
}

// EnsureDepositCharge writes the one-time deposit charge if the lease has one.
func (l *Ledger) EnsureDepositCharge(ctx context.Context, tx domain.Repos, lease *domain.Lease) error {
	if !lease.Deposit.IsPositive() {
		return nil
	}
	_, err := tx.Ledger().Append(ctx, &domain.LedgerEntry{
		ID:        uuid.New(),
		LeaseID:   lease.ID,
		Kind:      domain.LedgerEntryDeposit,
		Period:    domain.PeriodDeposit,
		Amount:    lease.Deposit,
		CreatedAt: l.now(),
	})
	if err != nil {
		return fmt.Errorf("deposit charge: %w", err)
	}
	return nil
}

// CheckPayable reports whether the lease accepts a new payment. On a Pending
// lease, payments still in flight at the gateway count toward the deposit, so
// a second deposit payment cannot be opened while the first is outstanding.
func (l *Ledger) CheckPayable(ctx context.Context, repos domain.Repos, lease *domain.Lease) error {
	if lease.Status != domain.LeaseStatusPending {
		return l.checkPostable(ctx, repos, lease)
	}
	settled, err := DepositSettled(ctx, repos, lease)
	if err != nil {
		return err
	}
	if settled {
		return fmt.Errorf("lease %s is pending with deposit settled: %w", lease.ID, domain.ErrInvalidLedgerState)
	}
	inFlight, err := pendingTotal(ctx, repos, lease.ID)
	if err != nil {
		return err
	}
	totals, err := repos.Ledger().Totals(ctx, lease.ID)
	if err != nil {
		return err
	}
	if totals.Payments.Add(inFlight).GreaterThanOrEqual(lease.Deposit) {
		return fmt.Errorf("lease %s: deposit covered by payments in flight: %w", lease.ID, domain.ErrInvalidLedgerState)
	}
	return nil
}

// checkPostable reports whether a payment the gateway already settled may be
// credited. Money that moved is always credited to an Active or Pending lease;
// an ended lease only takes settlement of an outstanding balance.
func (l *Ledger) checkPostable(ctx context.Context, repos domain.Repos, lease *domain.Lease) error {
	switch lease.Status {
	case domain.LeaseStatusActive, domain.LeaseStatusPending:
		return nil
	}
	if !l.policy.HoldUnitUntilSettled {
		return fmt.Errorf("lease %s is %s: %w", lease.ID, lease.Status, domain.ErrInvalidLedgerState)
	}
	bal, err := Balance(ctx, repos, lease.ID)
	if err != nil {
		return err
	}
	if !bal.Signed.IsPositive() {
		return fmt.Errorf("lease %s is %s with nothing outstanding: %w", lease.ID, lease.Status, domain.ErrInvalidLedgerState)
	}
	return nil
}

func pendingTotal(ctx context.Context, repos domain.Repos, leaseID uuid.UUID) (decimal.Decimal, error) {
	pays, err := repos.Payments().ListByLease(ctx, leaseID)
	if err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, p := range pays {
		if p.Status == domain.PaymentStatusPending {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

// PostPayment credits a confirmed payment to its locked lease. Posting the
// same payment twice is a no-op.
func (l *Ledger) PostPayment(ctx context.Context, tx domain.Repos, lease *domain.Lease, payment *domain.Payment) error {
	if payment.Status != domain.PaymentStatusConfirmed {
		return fmt.Errorf("post payment %s: status %s: %w", payment.GatewayReference, payment.Status, domain.ErrInvalidLedgerState)
	}
	if payment.LeaseID != lease.ID {
		return fmt.Errorf("post payment %s: belongs to another lease: %w", payment.GatewayReference, domain.ErrInvalidLedgerState)
	}
	if err := l.checkPostable(ctx, tx, lease); err != nil {
		return fmt.Errorf("post payment %s: %w", payment.GatewayReference, err)
	}
	if lease.Status == domain.LeaseStatusPending {
		if err := l.EnsureDepositCharge(ctx, tx, lease); err != nil {
			return err
		}
	}

	id := payment.ID
	_, err := tx.Ledger().Append(ctx, &domain.LedgerEntry{
		ID:        uuid.New(),
		LeaseID:   lease.ID,
		Kind:      domain.LedgerEntryPayment,
		PaymentID: &id,
		Amount:    payment.Amount,
		CreatedAt: l.now(),
	})
	if err != nil {
		return fmt.Errorf("post payment %s: %w", payment.GatewayReference, err)
	}
	return nil
}

// CurrentBalance returns the lease balance visible to p.
func (l *Ledger) CurrentBalance(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (domain.Balance, error) {
	if _, err := l.authorizeView(ctx, p, leaseID); err != nil {
		return domain.Balance{}, fmt.Errorf("ledger.CurrentBalance: %w", err)
	}
	bal, err := Balance(ctx, l.store, leaseID)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("ledger.CurrentBalance: %w", err)
	}
	return bal, nil
}

// Statement returns every ledger entry of the lease with its balance.
func (l *Ledger) Statement(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (*domain.Statement, error) {
	lease, err := l.authorizeView(ctx, p, leaseID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Statement: %w", err)
	}
	entries, err := l.store.Ledger().ListByLease(ctx, leaseID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Statement: %w", err)
	}
	bal, err := Balance(ctx, l.store, leaseID)
	if err != nil {
		return nil, fmt.Errorf("ledger.Statement: %w", err)
	}
	return &domain.Statement{Lease: lease, Entries: entries, Balance: bal}, nil
}

func (l *Ledger) authorizeView(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (*domain.Lease, error) {
	sc, err := l.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	lease, err := l.store.Leases().GetByID(ctx, leaseID)
	if err != nil {
		return nil, err
	}
	if err := sc.Check(scope.CapViewLedger, lease.PropertyID, lease.TenantID); err != nil {
		return nil, err
	}
	return lease, nil
}
