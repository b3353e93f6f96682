// Package jobs runs the periodic batch work: monthly rent accrual, lease
// expiry and stale payment cleanup.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/lease"
	"github.com/gosuda/leasekeep/internal/ledger"
)

// Accruer is satisfied by *ledger.Ledger.
type Accruer interface {
	AccrueAll(ctx context.Context, period domain.Period) (ledger.AccrualReport, error)
}

// LeaseSweeper is satisfied by *lease.Service.
type LeaseSweeper interface {
	ExpireDue(ctx context.Context) (lease.ExpiryReport, error)
}

// PaymentSweeper is satisfied by *payment.Service.
type PaymentSweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

type Scheduler struct {
	accruer  Accruer
	leases   LeaseSweeper
	payments PaymentSweeper
	interval time.Duration
	now      func() time.Time
}

type Option func(*Scheduler)

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(accruer Accruer, leases LeaseSweeper, payments PaymentSweeper, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		accruer:  accruer,
		leases:   leases,
		payments: payments,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes RunOnce immediately and then every interval until ctx is
// cancelled. A failed pass is logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		if err := s.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler pass failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce accrues the current month, then ends overdue leases, then expires
// stale payments. Accrual comes first so a lease ending this month still gets
// its last charge. Every step runs even when an earlier one fails.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return errors.Join(s.Accrue(ctx, domain.PeriodOf(s.now())), s.Sweep(ctx))
}

// Accrue charges period's rent on every active lease.
func (s *Scheduler) Accrue(ctx context.Context, period domain.Period) error {
	report, err := s.accruer.AccrueAll(ctx, period)
	if err != nil {
		return fmt.Errorf("jobs.Scheduler.Accrue: %w", err)
	}
	log.Info().
		Str("period", string(report.Period)).
		Int("created", report.Created).
		Int("existing", report.Existing).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("rent accrual finished")
	if report.Failed > 0 {
		return fmt.Errorf("jobs.Scheduler.Accrue: %d of the leases failed", report.Failed)
	}
	return nil
}

// Sweep ends overdue leases and expires stale payments.
func (s *Scheduler) Sweep(ctx context.Context) error {
	var errs []error

	expiry, err := s.leases.ExpireDue(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("jobs.Scheduler.Sweep: leases: %w", err))
	} else {
		log.Info().Int("expired", expiry.Expired).Int("renewed", expiry.Renewed).Int("failed", expiry.Failed).Msg("lease sweep finished")
		if expiry.Failed > 0 {
			errs = append(errs, fmt.Errorf("jobs.Scheduler.Sweep: %d leases failed", expiry.Failed))
		}
	}

	stale, err := s.payments.ExpireStale(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("jobs.Scheduler.Sweep: payments: %w", err))
	} else if stale > 0 {
		log.Info().Int("expired", stale).Msg("stale payments expired")
	}

	return errors.Join(errs...)
}
