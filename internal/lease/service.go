// Package lease implements the lease lifecycle: creation, activation,
// termination, renewal and the expiry sweep.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/ledger"
	"github.com/gosuda/leasekeep/internal/metrics"
	"github.com/gosuda/leasekeep/internal/scope"
)

type ScopeResolver interface {
	Resolve(ctx context.Context, p domain.Principal) (*scope.Scope, error)
}

type Service struct {
	store    domain.Store
	resolver ScopeResolver
	ledger   *ledger.Ledger
	events   domain.EventPublisher
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time
}

type Option func(*Service)

func WithEvents(pub domain.EventPublisher) Option { return func(s *Service) { s.events = pub } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store domain.Store, resolver ScopeResolver, l *ledger.Ledger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		resolver: resolver,
		ledger:   l,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewLease is the input of Create.
type NewLease struct {
	TenantID  uuid.UUID `validate:"required"`
	StartDate time.Time `validate:"required"`
	EndDate   time.Time `validate:"required"`
	Rent      decimal.Decimal
	Deposit   decimal.Decimal
}

func (n NewLease) check(v *validator.Validate) error {
	if err := v.Struct(n); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, err.Error())
	}
	if !n.Rent.IsPositive() {
		return fmt.Errorf("%w: rent must be positive", domain.ErrInvalidInput)
	}
	if n.Deposit.IsNegative() {
		return fmt.Errorf("%w: deposit must not be negative", domain.ErrInvalidInput)
	}
	if err := domain.CheckMoney("rent", n.Rent); err != nil {
		return err
	}
	if err := domain.CheckMoney("deposit", n.Deposit); err != nil {
		return err
	}
	if domain.DateOf(n.EndDate).Before(domain.DateOf(n.StartDate)) {
		return fmt.Errorf("%w: end date before start date", domain.ErrInvalidInput)
	}
	return nil
}

// Create records a Pending lease for a tenant in p's scope.
func (s *Service) Create(ctx context.Context, p domain.Principal, in NewLease) (*domain.Lease, error) {
	if err := in.check(s.validate); err != nil {
		return nil, fmt.Errorf("lease.Service.Create: %w", err)
	}
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Create: %w", err)
	}
	tenant, err := s.store.Tenants().GetByID(ctx, in.TenantID)
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Create: tenant: %w", err)
	}
	unit, err := s.store.Units().GetByID(ctx, tenant.UnitID)
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Create: unit: %w", err)
	}
	if err := sc.Check(scope.CapManageLeases, unit.PropertyID, uuid.Nil); err != nil {
		return nil, fmt.Errorf("lease.Service.Create: %w", err)
	}

	now := s.now()
	l := &domain.Lease{
		ID:         uuid.New(),
		TenantID:   tenant.ID,
		UnitID:     unit.ID,
		PropertyID: unit.PropertyID,
		StartDate:  domain.DateOf(in.StartDate),
		EndDate:    domain.DateOf(in.EndDate),
		Rent:       in.Rent,
		Deposit:    in.Deposit,
		Status:     domain.LeaseStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.Term = l.TermMonths()
	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		if err := tx.Leases().Create(ctx, l); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, domain.NewAuditEntry(p, "lease.create", "lease", l.ID, l.PropertyID,
			map[string]any{"rent": l.Rent.String(), "deposit": l.Deposit.String()}, now))
	})
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Create: %w", err)
	}
	return l, nil
}

// Get returns a lease visible to p. Tenants only see their own leases.
func (s *Service) Get(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lease, error) {
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Get: %w", err)
	}
	l, err := s.store.Leases().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Get: %w", err)
	}
	if err := sc.Check(scope.CapViewLedger, l.PropertyID, l.TenantID); err != nil {
		return nil, fmt.Errorf("lease.Service.Get: %w", err)
	}
	return l, nil
}

// Activate moves a Pending lease to Active once its deposit is posted and its
// start date has arrived.
func (s *Service) Activate(ctx context.Context, p domain.Principal, id uuid.UUID) (*domain.Lease, error) {
	l, err := s.mutate(ctx, p, id, func(ctx context.Context, tx domain.Repos, l *domain.Lease) (*domain.Event, error) {
		return s.ActivateInTx(ctx, tx, p, l)
	})
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Activate: %w", err)
	}
	return l, nil
}

// Terminate ends an Active lease early.
func (s *Service) Terminate(ctx context.Context, p domain.Principal, id uuid.UUID, reason string) (*domain.Lease, error) {
	l, err := s.mutate(ctx, p, id, func(ctx context.Context, tx domain.Repos, l *domain.Lease) (*domain.Event, error) {
		return s.end(ctx, tx, p, l, domain.LeaseStatusTerminated, reason)
	})
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Terminate: %w", err)
	}
	return l, nil
}

// Renew pushes the end date of an Active lease to newEnd.
func (s *Service) Renew(ctx context.Context, p domain.Principal, id uuid.UUID, newEnd time.Time) (*domain.Lease, error) {
	l, err := s.mutate(ctx, p, id, func(ctx context.Context, tx domain.Repos, l *domain.Lease) (*domain.Event, error) {
		return s.renew(ctx, tx, p, l, domain.DateOf(newEnd))
	})
	if err != nil {
		return nil, fmt.Errorf("lease.Service.Renew: %w", err)
	}
	return l, nil
}

type mutation func(ctx context.Context, tx domain.Repos, l *domain.Lease) (*domain.Event, error)

// mutate runs fn on the locked lease after the scope check and publishes the
// resulting event once the transaction has committed.
func (s *Service) mutate(ctx context.Context, p domain.Principal, id uuid.UUID, fn mutation) (*domain.Lease, error) {
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Leases().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sc.Check(scope.CapManageLeases, current.PropertyID, uuid.Nil); err != nil {
		return nil, err
	}

	var (
		out   *domain.Lease
		event *domain.Event
	)
	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		l, err := tx.Leases().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		event, err = fn(ctx, tx, l)
		if err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if event != nil {
		domain.Publish(ctx, s.events, *event)
	}
	return out, nil
}
