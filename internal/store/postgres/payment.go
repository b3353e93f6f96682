package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gosuda/leasekeep/internal/domain"
)

type PaymentRepo struct{ db dbtx }

const paymentColumns = `id, lease_id, property_id, tenant_id, amount::text, gateway_reference, gateway_token,
	redirect_url, status, confirmed_at, failed_at, created_at, updated_at`

func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO payments (id, lease_id, property_id, tenant_id, amount, gateway_reference, gateway_token,
		                       redirect_url, status, confirmed_at, failed_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.LeaseID, p.PropertyID, p.TenantID, p.Amount.String(), p.GatewayReference, p.GatewayToken,
		p.RedirectURL, p.Status, p.ConfirmedAt, p.FailedAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapErr("paymentRepo.Create", err)
	}
	return nil
}

func (r *PaymentRepo) GetByReference(ctx context.Context, ref string) (*domain.Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_reference = $1`, ref)
	if err != nil {
		return nil, mapErr("paymentRepo.GetByReference", err)
	}
	return collectOne(rows, scanPayment, "paymentRepo.GetByReference")
}

func (r *PaymentRepo) GetByReferenceForUpdate(ctx context.Context, ref string) (*domain.Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_reference = $1 FOR UPDATE`, ref)
	if err != nil {
		return nil, mapErr("paymentRepo.GetByReferenceForUpdate", err)
	}
	return collectOne(rows, scanPayment, "paymentRepo.GetByReferenceForUpdate")
}

// Update never touches a confirmed row; confirmed payments are immutable.
func (r *PaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE payments SET status = $1, confirmed_at = $2, failed_at = $3, updated_at = $4
		 WHERE id = $5 AND status <> 'confirmed'`,
		p.Status, p.ConfirmedAt, p.FailedAt, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return mapErr("paymentRepo.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("paymentRepo.Update: %w: payment %s missing or confirmed", domain.ErrConflict, p.ID)
	}
	return nil
}

func (r *PaymentRepo) ListByLease(ctx context.Context, leaseID uuid.UUID) ([]*domain.Payment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE lease_id = $1 ORDER BY created_at`, leaseID,
	)
	if err != nil {
		return nil, mapErr("paymentRepo.ListByLease", err)
	}
	return collectAll(rows, scanPayment, "paymentRepo.ListByLease")
}

func (r *PaymentRepo) ListPendingBefore(ctx context.Context, before time.Time) ([]*domain.Payment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at
		 LIMIT 1000`,
		before,
	)
	if err != nil {
		return nil, mapErr("paymentRepo.ListPendingBefore", err)
	}
	return collectAll(rows, scanPayment, "paymentRepo.ListPendingBefore")
}

func scanPayment(row pgx.CollectableRow) (*domain.Payment, error) {
	var (
		p      domain.Payment
		amount string
	)
	err := row.Scan(
		&p.ID, &p.LeaseID, &p.PropertyID, &p.TenantID, &amount, &p.GatewayReference, &p.GatewayToken,
		&p.RedirectURL, &p.Status, &p.ConfirmedAt, &p.FailedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return &p, nil
}
