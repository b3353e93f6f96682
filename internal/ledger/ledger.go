// Package ledger maintains the running charge/payment balance of each lease.
// All amounts use exact decimal arithmetic.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/metrics"
	"github.com/gosuda/leasekeep/internal/scope"
)

// ScopeResolver resolves the authorization scope of a principal.
type ScopeResolver interface {
	Resolve(ctx context.Context, p domain.Principal) (*scope.Scope, error)
}

type Ledger struct {
	store       domain.Store
	resolver    ScopeResolver
	policy      domain.TenancyPolicy
	metrics     *metrics.Metrics
	now         func() time.Time
	parallelism int
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

func WithMetrics(m *metrics.Metrics) Option { return func(l *Ledger) { l.metrics = m } }

// WithParallelism bounds how many leases AccrueAll processes at once.
func WithParallelism(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.parallelism = n
		}
	}
}

func New(store domain.Store, resolver ScopeResolver, policy domain.TenancyPolicy, opts ...Option) *Ledger {
	l := &Ledger{
		store:       store,
		resolver:    resolver,
		policy:      policy,
		now:         time.Now,
		parallelism: 8,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Policy returns the tenancy policy the ledger enforces.
func (l *Ledger) Policy() domain.TenancyPolicy { return l.policy }

// AccrueMonthlyCharge charges one month of rent for period. It is idempotent
// per (lease, period) and reports whether a new charge was written.
func (l *Ledger) AccrueMonthlyCharge(ctx context.Context, p domain.Principal, leaseID uuid.UUID, period domain.Period) (bool, error) {
	sc, err := l.resolver.Resolve(ctx, p)
	if err != nil {
		return false, fmt.Errorf("ledger.AccrueMonthlyCharge: %w", err)
	}
	lease, err := l.store.Leases().GetByID(ctx, leaseID)
	if err != nil {
		return false, fmt.Errorf("ledger.AccrueMonthlyCharge: %w", err)
	}
	if err := sc.Check(scope.CapManageLeases, lease.PropertyID, uuid.Nil); err != nil {
		return false, fmt.Errorf("ledger.AccrueMonthlyCharge: %w", err)
	}

	created, err := l.accrue(ctx, p, leaseID, period)
	if err != nil {
		return false, fmt.Errorf("ledger.AccrueMonthlyCharge: %w", err)
	}
	return created, nil
}

func (l *Ledger) accrue(ctx context.Context, actor domain.Principal, leaseID uuid.UUID, period domain.Period) (bool, error) {
	var created bool
	err := l.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		lease, err := tx.Leases().GetForUpdate(ctx, leaseID)
		if err != nil {
			return err
		}
		created, err = l.AccrueInTx(ctx, tx, actor, lease, period)
		return err
	})
	return created, err
}

// AccrueInTx writes the rent charge of period for a locked, active lease.
func (l *Ledger) AccrueInTx(ctx context.Context, tx domain.Repos, actor domain.Principal, lease *domain.Lease, period domain.Period) (bool, error) {
	if lease.Status != domain.LeaseStatusActive {
		return false, fmt.Errorf("accrue %s: lease %s is %s: %w", period, lease.ID, lease.Status, domain.ErrInvalidLedgerState)
	}
	if !lease.Covers(period) {
		return false, fmt.Errorf("accrue %s: outside lease term: %w", period, domain.ErrInvalidLedgerState)
	}

	now := l.now()
	created, err := tx.Ledger().Append(ctx, &domain.LedgerEntry{
		ID:        uuid.New(),
		LeaseID:   lease.ID,
		Kind:      domain.LedgerEntryRent,
		Period:    period,
		Amount:    lease.Rent,
		CreatedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("accrue %s: %w", period, err)
	}
	if !created {
		l.metrics.Accrual("existing")
		return false, nil
	}

	err = tx.Audit().Record(ctx, domain.NewAuditEntry(actor, "ledger.accrue", "lease", lease.ID, lease.PropertyID,
		map[string]any{"period": string(period), "amount": lease.Rent.String()}, now))
	if err != nil {
		return false, fmt.Errorf("accrue %s: audit: %w", period, err)
	}
	l.metrics.Accrual("created")
	return true, nil
}

// AccrualReport summarises a batch accrual run.
type AccrualReport struct {
	Period   domain.Period
	Created  int
	Existing int
	Skipped  int
	Failed   int
}

// AccrueAll charges period's rent on every active lease covering it. Leases
// are processed in parallel; one lease failing does not stop the others.
func (l *Ledger) AccrueAll(ctx context.Context, period domain.Period) (AccrualReport, error) {
	report := AccrualReport{Period: period}

	leases, err := l.store.Leases().ListByStatus(ctx, domain.LeaseStatusActive)
	if err != nil {
		return report, fmt.Errorf("ledger.AccrueAll: list leases: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)

	for _, lease := range leases {
		if !lease.Covers(period) {
			report.Skipped++
			continue
		}
		g.Go(func() error {
			created, accrueErr := l.accrue(gctx, domain.SystemPrincipal(), lease.ID, period)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(accrueErr, domain.ErrInvalidLedgerState):
				report.Skipped++
			case accrueErr != nil:
				report.Failed++
				log.Error().Err(accrueErr).Str("lease_id", lease.ID.String()).Str("period", string(period)).Msg("ledger: accrual failed")
			case created:
				report.Created++
			default:
				report.Existing++
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info().
		Str("period", string(period)).
		Int("created", report.Created).
		Int("existing", report.Existing).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("ledger: accrual run finished")

	return report, nil
}
