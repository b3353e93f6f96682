// Package payment initiates gateway payments and reconciles their outcome into
// the lease ledger exactly once.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/ledger"
	"github.com/gosuda/leasekeep/internal/metrics"
	"github.com/gosuda/leasekeep/internal/scope"
)

type ScopeResolver interface {
	Resolve(ctx context.Context, p domain.Principal) (*scope.Scope, error)
}

// ChargeRequest asks the gateway to open a charge under Reference.
type ChargeRequest struct {
	Reference     string
	Amount        decimal.Decimal
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// Charge is the client-facing handle returned by the gateway.
type Charge struct {
	Token       string
	RedirectURL string
}

// Gateway opens charges on the external payment gateway and reports their
// current outcome.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	Status(ctx context.Context, ref string) (domain.GatewayStatus, error)
}

// LeaseLifecycle is the part of the lease service a settled payment may drive.
type LeaseLifecycle interface {
	CanActivate(ctx context.Context, tx domain.Repos, l *domain.Lease) (bool, error)
	ActivateInTx(ctx context.Context, tx domain.Repos, actor domain.Principal, l *domain.Lease) (*domain.Event, error)
	ReleaseUnitInTx(ctx context.Context, tx domain.Repos, l *domain.Lease) error
}

type Service struct {
	store      domain.Store
	resolver   ScopeResolver
	ledger     *ledger.Ledger
	leases     LeaseLifecycle
	gateway    Gateway
	events     domain.EventPublisher
	metrics    *metrics.Metrics
	staleAfter time.Duration
	now        func() time.Time
}

type Option func(*Service)

func WithEvents(pub domain.EventPublisher) Option { return func(s *Service) { s.events = pub } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithStaleAfter sets how long a payment may stay pending before ExpireStale
// marks it expired.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

func NewService(store domain.Store, resolver ScopeResolver, l *ledger.Ledger, leases LeaseLifecycle, gw Gateway, opts ...Option) *Service {
	s := &Service{
		store:      store,
		resolver:   resolver,
		ledger:     l,
		leases:     leases,
		gateway:    gw,
		staleAfter: 24 * time.Hour,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewReference returns a fresh gateway reference.
func NewReference() string {
	return "lk-" + uuid.NewString()
}

// Initiate opens a gateway charge for amount and records a Pending payment.
// The ledger is not touched. A gateway failure leaves nothing behind, so the
// call is safe to retry.
func (s *Service) Initiate(ctx context.Context, p domain.Principal, leaseID uuid.UUID, amount decimal.Decimal) (*domain.Payment, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("payment.Service.Initiate: %w: amount must be positive", domain.ErrInvalidInput)
	}
	if err := domain.CheckMoney("amount", amount); err != nil {
		return nil, fmt.Errorf("payment.Service.Initiate: %w", err)
	}
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("payment.Service.Initiate: %w", err)
	}
	lease, err := s.store.Leases().GetByID(ctx, leaseID)
	if err != nil {
		return nil, fmt.Errorf("payment.Service.Initiate: %w", err)
	}
	if err := sc.Check(scope.CapPay, lease.PropertyID, lease.TenantID); err != nil {
		return nil, fmt.Errorf("payment.Service.Initiate: %w", err)
	}
	if err := s.ledger.CheckPayable(ctx, s.store, lease); err != nil {
		return nil, fmt.Errorf("payment.Service.Initiate: %w", err)
	}
	tenant, err := s.store.Tenants().GetByID(ctx, lease.TenantID)
	if err != nil {
		return nil, fmt.Errorf("payment.Service.Initiate: tenant: %w", err)
	}

	ref := NewReference()
	charge, err := s.gateway.CreateCharge(ctx, ChargeRequest{
		Reference:     ref,
		Amount:        amount,
		CustomerName:  tenant.FullName(),
		CustomerEmail: tenant.Email,
		CustomerPhone: tenant.Phone,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidInput) && !errors.Is(err, domain.ErrExternalUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrExternalUnavailable, err)
		}
		return nil, fmt.Errorf("payment.Service.Initiate: gateway: %w", err)
	}

	now := s.now()
	pay := &domain.Payment{
		ID:               uuid.New(),
		LeaseID:          lease.ID,
		PropertyID:       lease.PropertyID,
		TenantID:         lease.TenantID,
		Amount:           amount,
		GatewayReference: ref,
		GatewayToken:     charge.Token,
		RedirectURL:      charge.RedirectURL,
		Status:           domain.PaymentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	err = s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		if err := tx.Payments().Create(ctx, pay); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, domain.NewAuditEntry(p, "payment.initiate", "payment", pay.ID, pay.PropertyID,
			map[string]any{"reference": ref, "amount": amount.String()}, now))
	})
	if err != nil {
		return nil, fmt.Errorf("payment.Service.Initiate: %w", err)
	}

	s.metrics.PaymentInitiated()
	log.Info().Str("payment_ref", ref).Str("lease_id", lease.ID.String()).Str("amount", amount.String()).Msg("payment initiated")
	return pay, nil
}

// Get returns the payment behind ref if p may see it.
func (s *Service) Get(ctx context.Context, p domain.Principal, ref string) (*domain.Payment, error) {
	pay, err := s.authorize(ctx, p, ref)
	if err != nil {
		return nil, fmt.Errorf("payment.Service.Get: %w", err)
	}
	return pay, nil
}

func (s *Service) authorize(ctx context.Context, p domain.Principal, ref string) (*domain.Payment, error) {
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	pay, err := s.store.Payments().GetByReference(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnknownPayment
	}
	if err != nil {
		return nil, err
	}
	if err := sc.Check(scope.CapPay, pay.PropertyID, pay.TenantID); err != nil {
		return nil, err
	}
	return pay, nil
}

// ExpireStale marks payments pending for longer than the stale window as
// Expired and returns how many were changed.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.store.Payments().ListPendingBefore(ctx, now.Add(-s.staleAfter))
	if err != nil {
		return 0, fmt.Errorf("payment.Service.ExpireStale: %w", err)
	}

	expired := 0
	for _, candidate := range stale {
		changed := false
		err := s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
			pay, err := tx.Payments().GetByReferenceForUpdate(ctx, candidate.GatewayReference)
			if err != nil {
				return err
			}
			if pay.Status != domain.PaymentStatusPending {
				return nil
			}
			pay.Status = domain.PaymentStatusExpired
			pay.UpdatedAt = now
			if err := tx.Payments().Update(ctx, pay); err != nil {
				return err
			}
			changed = true
			return tx.Audit().Record(ctx, domain.NewAuditEntry(domain.SystemPrincipal(), "payment.expired", "payment",
				pay.ID, pay.PropertyID, map[string]any{"reference": pay.GatewayReference}, now))
		})
		switch {
		case err != nil:
			log.Error().Err(err).Str("payment_ref", candidate.GatewayReference).Msg("payment expiry failed")
		case changed:
			expired++
		}
	}
	if expired > 0 {
		log.Info().Int("count", expired).Msg("stale payments expired")
	}
	return expired, nil
}
