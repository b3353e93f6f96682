package v1

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosuda/leasekeep/internal/application"
	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/lease"
	"github.com/gosuda/leasekeep/internal/maintenance"
	"github.com/gosuda/leasekeep/internal/payment"
	"github.com/gosuda/leasekeep/internal/scope"
)

// ScopeResolver resolves a principal's authorization scope.
// *scope.Resolver satisfies this interface.
type ScopeResolver interface {
	Resolve(ctx context.Context, p domain.Principal) (*scope.Scope, error)
}

// LeaseService abstracts lease lifecycle operations for handler testing.
// *lease.Service satisfies this interface.
type LeaseService interface {
	Create(ctx context.Context, p domain.Principal, in lease.NewLease) (*domain.Lease, error)
	Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lease, error)
	Activate(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lease, error)
	Terminate(ctx context.Context, p domain.Principal, id uuid.UUID, reason string) (*domain.Lease, error)
	Renew(ctx context.Context, p domain.Principal, id uuid.UUID, newEnd time.Time) (*domain.Lease, error)
}

// LedgerService abstracts balance queries and accrual.
// *ledger.Ledger satisfies this interface.
type LedgerService interface {
	CurrentBalance(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (domain.Balance, error)
	Statement(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (*domain.Statement, error)
	AccrueMonthlyCharge(ctx context.Context, p domain.Principal, leaseID uuid.UUID, period domain.Period) (bool, error)
}

// PaymentService abstracts payment initiation and confirmation. Sync serves
// client callbacks; Confirm takes a trusted status and serves verified
// gateway notifications only.
// *payment.Service satisfies this interface.
type PaymentService interface {
	Initiate(ctx context.Context, p domain.Principal, leaseID uuid.UUID, amount decimal.Decimal) (*domain.Payment, error)
	Get(ctx context.Context, p domain.Principal, ref string) (*domain.Payment, error)
	Sync(ctx context.Context, p domain.Principal, ref string) (*payment.ConfirmResult, error)
	Confirm(ctx context.Context, p domain.Principal, ref string, status domain.GatewayStatus) (*payment.ConfirmResult, error)
}

// MaintenanceService abstracts the maintenance workflow.
// *maintenance.Service satisfies this interface.
type MaintenanceService interface {
	Submit(ctx context.Context, p domain.Principal, in maintenance.NewRequest) (*domain.MaintenanceRequest, error)
	Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error)
	ListByProperty(ctx context.Context, p domain.Principal, propertyID uuid.UUID) ([]*domain.MaintenanceRequest, error)
	Assign(ctx context.Context, p domain.Principal, id, staffID uuid.UUID) (*domain.MaintenanceRequest, error)
	Start(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error)
	Complete(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error)
	Cancel(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error)
}

// ApplicationService abstracts rental application review.
// *application.Service satisfies this interface.
type ApplicationService interface {
	Submit(ctx context.Context, p domain.Principal, in application.NewApplication) (*domain.Application, error)
	Approve(ctx context.Context, p domain.Principal, id uuid.UUID, note string) (*domain.Application, error)
	Deny(ctx context.Context, p domain.Principal, id uuid.UUID, note string) (*domain.Application, error)
}

// NotificationOperator exposes dead-lettered notifications to operators.
// *notify.Dispatcher satisfies this interface.
type NotificationOperator interface {
	ListFailed(ctx context.Context, p domain.Principal, limit int) ([]*domain.Notification, error)
	Requeue(ctx context.Context, p domain.Principal, id uuid.UUID) error
}
