package v1_test

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
	"github.com/gosuda/leasekeep/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers: inject a principal for DoCtx
// ---------------------------------------------------------------------------

func principalCtx(p domain.Principal) context.Context {
	return middleware.WithPrincipal(context.Background(), p)
}

func landlordCtx() (context.Context, domain.Principal) {
	p := domain.Principal{UserID: uuid.New(), Roles: []string{domain.RoleLandlord}}
	return principalCtx(p), p
}

// ---------------------------------------------------------------------------
// Mock LeaseService
// ---------------------------------------------------------------------------

type mockLeaseService struct {
	createFunc    func(ctx context.Context, p domain.Principal, in lease.NewLease) (*domain.Lease, error)
	getFunc       func(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lease, error)
	activateFunc  func(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lease, error)
	terminateFunc func(ctx context.Context, p domain.Principal, id uuid.UUID, reason string) (*domain.Lease, error)
	renewFunc     func(ctx context.Context, p domain.Principal, id uuid.UUID, newEnd time.Time) (*domain.Lease, error)
}

func (m *mockLeaseService) Create(ctx context.Context, p domain.Principal, in lease.NewLease) (*domain.Lease, error) {
	return m.createFunc(ctx, p, in)
}

func (m *mockLeaseService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lease, error) {
	return m.getFunc(ctx, p, id)
}

func (m *mockLeaseService) Activate(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lease, error) {
	return m.activateFunc(ctx, p, id)
}

func (m *mockLeaseService) Terminate(ctx context.Context, p domain.Principal, id uuid.UUID, reason string) (*domain.Lease, error) {
	return m.terminateFunc(ctx, p, id, reason)
}

func (m *mockLeaseService) Renew(ctx context.Context, p domain.Principal, id uuid.UUID, newEnd time.Time) (*domain.Lease, error) {
	return m.renewFunc(ctx, p, id, newEnd)
}

// ---------------------------------------------------------------------------
// Mock LedgerService
// ---------------------------------------------------------------------------

type mockLedgerService struct {
	balanceFunc   func(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (domain.Balance, error)
	statementFunc func(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (*domain.Statement, error)
	accrueFunc    func(ctx context.Context, p domain.Principal, leaseID uuid.UUID, period domain.Period) (bool, error)
}

func (m *mockLedgerService) CurrentBalance(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (domain.Balance, error) {
	return m.balanceFunc(ctx, p, leaseID)
}

func (m *mockLedgerService) Statement(ctx context.Context, p domain.Principal, leaseID uuid.UUID) (*domain.Statement, error) {
	return m.statementFunc(ctx, p, leaseID)
}

func (m *mockLedgerService) AccrueMonthlyCharge(ctx context.Context, p domain.Principal, leaseID uuid.UUID, period domain.Period) (bool, error) {
	return m.accrueFunc(ctx, p, leaseID, period)
}

// ---------------------------------------------------------------------------
// Mock PaymentService
// ---------------------------------------------------------------------------

type mockPaymentService struct {
	initiateFunc func(ctx context.Context, p domain.Principal, leaseID uuid.UUID, amount decimal.Decimal) (*domain.Payment, error)
	getFunc      func(ctx context.Context, p domain.Principal, ref string) (*domain.Payment, error)
	syncFunc     func(ctx context.Context, p domain.Principal, ref string) (*payment.ConfirmResult, error)
	confirmFunc  func(ctx context.Context, p domain.Principal, ref string, status domain.GatewayStatus) (*payment.ConfirmResult, error)
}

func (m *mockPaymentService) Initiate(ctx context.Context, p domain.Principal, leaseID uuid.UUID, amount decimal.Decimal) (*domain.Payment, error) {
	return m.initiateFunc(ctx, p, leaseID, amount)
}

func (m *mockPaymentService) Get(ctx context.Context, p domain.Principal, ref string) (*domain.Payment, error) {
	return m.getFunc(ctx, p, ref)
}

func (m *mockPaymentService) Sync(ctx context.Context, p domain.Principal, ref string) (*payment.ConfirmResult, error) {
	return m.syncFunc(ctx, p, ref)
}

func (m *mockPaymentService) Confirm(ctx context.Context, p domain.Principal, ref string, status domain.GatewayStatus) (*payment.ConfirmResult, error) {
	return m.confirmFunc(ctx, p, ref, status)
}

// ---------------------------------------------------------------------------
// Mock MaintenanceService
// ---------------------------------------------------------------------------

type maintenanceStepFunc func(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error)

type mockMaintenanceService struct {
	submitFunc   func(ctx context.Context, p domain.Principal, in maintenance.NewRequest) (*domain.MaintenanceRequest, error)
	getFunc      maintenanceStepFunc
	listFunc     func(ctx context.Context, p domain.Principal, propertyID uuid.UUID) ([]*domain.MaintenanceRequest, error)
	assignFunc   func(ctx context.Context, p domain.Principal, id, staffID uuid.UUID) (*domain.MaintenanceRequest, error)
	startFunc    maintenanceStepFunc
	completeFunc maintenanceStepFunc
	cancelFunc   maintenanceStepFunc
}

func (m *mockMaintenanceService) Submit(ctx context.Context, p domain.Principal, in maintenance.NewRequest) (*domain.MaintenanceRequest, error) {
	return m.submitFunc(ctx, p, in)
}

func (m *mockMaintenanceService) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	return m.getFunc(ctx, p, id)
}

func (m *mockMaintenanceService) ListByProperty(ctx context.Context, p domain.Principal, propertyID uuid.UUID) ([]*domain.MaintenanceRequest, error) {
	return m.listFunc(ctx, p, propertyID)
}

func (m *mockMaintenanceService) Assign(ctx context.Context, p domain.Principal, id, staffID uuid.UUID) (*domain.MaintenanceRequest, error) {
	return m.assignFunc(ctx, p, id, staffID)
}

func (m *mockMaintenanceService) Start(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	return m.startFunc(ctx, p, id)
}

func (m *mockMaintenanceService) Complete(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	return m.completeFunc(ctx, p, id)
}

func (m *mockMaintenanceService) Cancel(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.MaintenanceRequest, error) {
	return m.cancelFunc(ctx, p, id)
}

// ---------------------------------------------------------------------------
// Mock ApplicationService
// ---------------------------------------------------------------------------

type mockApplicationService struct {
	submitFunc  func(ctx context.Context, p domain.Principal, in application.NewApplication) (*domain.Application, error)
	approveFunc func(ctx context.Context, p domain.Principal, id uuid.UUID, note string) (*domain.Application, error)
	denyFunc    func(ctx context.Context, p domain.Principal, id uuid.UUID, note string) (*domain.Application, error)
}

func (m *mockApplicationService) Submit(ctx context.Context, p domain.Principal, in application.NewApplication) (*domain.Application, error) {
	return m.submitFunc(ctx, p, in)
}

func (m *mockApplicationService) Approve(ctx context.Context, p domain.Principal, id uuid.UUID, note string) (*domain.Application, error) {
	return m.approveFunc(ctx, p, id, note)
}

func (m *mockApplicationService) Deny(ctx context.Context, p domain.Principal, id uuid.UUID, note string) (*domain.Application, error) {
	return m.denyFunc(ctx, p, id, note)
}

// ---------------------------------------------------------------------------
// Mock NotificationOperator
// ---------------------------------------------------------------------------

type mockNotificationOperator struct {
	listFailedFunc func(ctx context.Context, p domain.Principal, limit int) ([]*domain.Notification, error)
	requeueFunc    func(ctx context.Context, p domain.Principal, id uuid.UUID) error
}

func (m *mockNotificationOperator) ListFailed(ctx context.Context, p domain.Principal, limit int) ([]*domain.Notification, error) {
	return m.listFailedFunc(ctx, p, limit)
}

func (m *mockNotificationOperator) Requeue(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	return m.requeueFunc(ctx, p, id)
}
