package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gosuda/leasekeep/internal/domain"
)

type LeaseRepo struct{ db dbtx }

// Money columns are read as text so no precision passes through float64.
const leaseColumns = `id, tenant_id, unit_id, property_id, start_date, end_date, rent::text, deposit::text, term_months,
	status, termination_reason, activated_at, ended_at, renewed_at, created_at, updated_at`

func (r *LeaseRepo) Create(ctx context.Context, l *domain.Lease) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO leases (id, tenant_id, unit_id, property_id, start_date, end_date, rent, deposit, term_months,
		                     status, termination_reason, activated_at, ended_at, renewed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11, $12, $13, $14, $15, $16)`,
		l.ID, l.TenantID, l.UnitID, l.PropertyID, l.StartDate, l.EndDate, l.Rent.String(), l.Deposit.String(), l.RenewalTerm(),
		l.Status, l.TerminationReason, l.ActivatedAt, l.EndedAt, l.RenewedAt, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return mapErr("leaseRepo.Create", err)
	}
	return nil
}

func (r *LeaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lease, error) {
	rows, err := r.db.Query(ctx, `SELECT `+leaseColumns+` FROM leases WHERE id = $1`, id)
	if err != nil {
		return nil, mapErr("leaseRepo.GetByID", err)
	}
	return collectOne(rows, scanLease, "leaseRepo.GetByID")
}

func (r *LeaseRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Lease, error) {
	rows, err := r.db.Query(ctx, `SELECT `+leaseColumns+` FROM leases WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, mapErr("leaseRepo.GetForUpdate", err)
	}
	return collectOne(rows, scanLease, "leaseRepo.GetForUpdate")
}

func (r *LeaseRepo) Update(ctx context.Context, l *domain.Lease) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE leases SET end_date = $1, status = $2, termination_reason = $3, activated_at = $4,
		        ended_at = $5, renewed_at = $6, updated_at = $7
		 WHERE id = $8`,
		l.EndDate, l.Status, l.TerminationReason, l.ActivatedAt, l.EndedAt, l.RenewedAt, l.UpdatedAt, l.ID,
	)
	return mustAffect("leaseRepo.Update", tag, err)
}

func (r *LeaseRepo) ListByStatus(ctx context.Context, status domain.LeaseStatus) ([]*domain.Lease, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE status = $1 ORDER BY created_at`, status,
	)
	if err != nil {
		return nil, mapErr("leaseRepo.ListByStatus", err)
	}
	return collectAll(rows, scanLease, "leaseRepo.ListByStatus")
}

func (r *LeaseRepo) CountActiveByUnit(ctx context.Context, unitID, excludeLeaseID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM leases WHERE unit_id = $1 AND id <> $2 AND status = 'active'`,
		unitID, excludeLeaseID,
	).Scan(&n)
	if err != nil {
		return 0, mapErr("leaseRepo.CountActiveByUnit", err)
	}
	return n, nil
}

func scanLease(row pgx.CollectableRow) (*domain.Lease, error) {
	var (
		l             domain.Lease
		rent, deposit string
	)
	err := row.Scan(
		&l.ID, &l.TenantID, &l.UnitID, &l.PropertyID, &l.StartDate, &l.EndDate, &rent, &deposit, &l.Term,
		&l.Status, &l.TerminationReason, &l.ActivatedAt, &l.EndedAt, &l.RenewedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if l.Rent, err = decimal.NewFromString(rent); err != nil {
		return nil, fmt.Errorf("rent: %w", err)
	}
	if l.Deposit, err = decimal.NewFromString(deposit); err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}
	l.StartDate = domain.DateOf(l.StartDate)
	l.EndDate = domain.DateOf(l.EndDate)
	return &l, nil
}

type LedgerRepo struct{ db dbtx }

// Append relies on the unique indexes on (lease_id, kind, period) for charges
// and on payment_id for credits.
func (r *LedgerRepo) Append(ctx context.Context, e *domain.LedgerEntry) (bool, error) {
	var period *string
	if e.PaymentID == nil {
		p := string(e.Period)
		period = &p
	}
	tag, err := r.db.Exec(ctx,
		`INSERT INTO ledger_entries (id, lease_id, kind, period, payment_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		 ON CONFLICT DO NOTHING`,
		e.ID, e.LeaseID, e.Kind, period, e.PaymentID, e.Amount.String(), e.CreatedAt,
	)
	if err != nil {
		return false, mapErr("ledgerRepo.Append", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *LedgerRepo) ListByLease(ctx context.Context, leaseID uuid.UUID) ([]*domain.LedgerEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, lease_id, kind, COALESCE(period, ''), payment_id, amount::text, created_at
		 FROM ledger_entries WHERE lease_id = $1
		 ORDER BY created_at, id`,
		leaseID,
	)
	if err != nil {
		return nil, mapErr("ledgerRepo.ListByLease", err)
	}
	return collectAll(rows, func(row pgx.CollectableRow) (*domain.LedgerEntry, error) {
		var (
			e      domain.LedgerEntry
			amount string
		)
		if err := row.Scan(&e.ID, &e.LeaseID, &e.Kind, &e.Period, &e.PaymentID, &amount, &e.CreatedAt); err != nil {
			return nil, err
		}
		var err error
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		return &e, nil
	}, "ledgerRepo.ListByLease")
}

func (r *LedgerRepo) Totals(ctx context.Context, leaseID uuid.UUID) (domain.LedgerTotals, error) {
	var charges, deposits, payments string
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount) FILTER (WHERE kind IN ('rent', 'deposit')), 0)::text,
		        COALESCE(SUM(amount) FILTER (WHERE kind = 'deposit'), 0)::text,
		        COALESCE(SUM(amount) FILTER (WHERE kind = 'payment'), 0)::text
		 FROM ledger_entries WHERE lease_id = $1`,
		leaseID,
	).Scan(&charges, &deposits, &payments)
	if err != nil {
		return domain.LedgerTotals{}, mapErr("ledgerRepo.Totals", err)
	}

	var t domain.LedgerTotals
	if t.Charges, err = decimal.NewFromString(charges); err != nil {
		return t, fmt.Errorf("ledgerRepo.Totals: charges: %w", err)
	}
	if t.Deposits, err = decimal.NewFromString(deposits); err != nil {
		return t, fmt.Errorf("ledgerRepo.Totals: deposits: %w", err)
	}
	if t.Payments, err = decimal.NewFromString(payments); err != nil {
		return t, fmt.Errorf("ledgerRepo.Totals: payments: %w", err)
	}
	return t, nil
}

// collectOne returns the single row of rows or ErrNotFound.
func collectOne[T any](rows pgx.Rows, fn pgx.RowToFunc[*T], caller string) (*T, error) {
	v, err := pgx.CollectExactlyOneRow(rows, fn)
	if err != nil {
		return nil, mapErr(caller, err)
	}
	return v, nil
}

func collectAll[T any](rows pgx.Rows, fn pgx.RowToFunc[*T], caller string) ([]*T, error) {
	out, err := pgx.CollectRows(rows, fn)
	if err != nil {
		return nil, mapErr(caller, err)
	}
	return out, nil
}
