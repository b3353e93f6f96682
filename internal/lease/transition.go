package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/ledger"
)

const dateLayout = "2006-01-02"

// ActivateInTx applies Pending->Active to a locked lease. The deposit charge is
// written first so an unpaid deposit shows up on the ledger either way.
func (s *Service) ActivateInTx(ctx context.Context, tx domain.Repos, actor domain.Principal, l *domain.Lease) (*domain.Event, error) {
	if !l.Status.ValidTransition(domain.LeaseStatusActive) {
		return nil, domain.NewTransitionError("lease", l.Status, domain.LeaseStatusActive, "")
	}
	now := s.now()
	if domain.DateOf(now).Before(l.StartDate) {
		return nil, domain.NewTransitionError("lease", l.Status, domain.LeaseStatusActive,
			"start date "+l.StartDate.Format(dateLayout)+" not reached")
	}
	if err := s.ledger.EnsureDepositCharge(ctx, tx, l); err != nil {
		return nil, err
	}
	settled, err := ledger.DepositSettled(ctx, tx, l)
	if err != nil {
		return nil, err
	}
	if !settled {
		return nil, fmt.Errorf("activate lease %s: deposit not posted: %w", l.ID, domain.ErrInvalidLedgerState)
	}

	from := l.Status
	l.Status = domain.LeaseStatusActive
	l.ActivatedAt = &now
	l.UpdatedAt = now
	if err := tx.Leases().Update(ctx, l); err != nil {
		return nil, err
	}
	if err := tx.Units().UpdateStatus(ctx, l.UnitID, domain.UnitStatusRented); err != nil {
		return nil, fmt.Errorf("activate lease %s: unit: %w", l.ID, err)
	}

	tenant, err := tx.Tenants().GetByID(ctx, l.TenantID)
	if err != nil {
		return nil, fmt.Errorf("activate lease %s: tenant: %w", l.ID, err)
	}
	err = tx.Outbox().Enqueue(ctx, domain.NewNotification(domain.NotificationLeaseConfirmed, tenant.Email, map[string]string{
		"tenant_name": tenant.FullName(),
		"lease_id":    l.ID.String(),
		"start_date":  l.StartDate.Format(dateLayout),
		"end_date":    l.EndDate.Format(dateLayout),
		"rent":        l.Rent.StringFixed(2),
	}, now))
	if err != nil {
		return nil, fmt.Errorf("activate lease %s: notify: %w", l.ID, err)
	}

	if err := s.recordTransition(ctx, tx, actor, l, from, nil); err != nil {
		return nil, err
	}
	return s.event(l, now), nil
}

// CanActivate reports whether ActivateInTx would succeed on l right now.
func (s *Service) CanActivate(ctx context.Context, tx domain.Repos, l *domain.Lease) (bool, error) {
	if l.Status != domain.LeaseStatusPending || domain.DateOf(s.now()).Before(l.StartDate) {
		return false, nil
	}
	return ledger.DepositSettled(ctx, tx, l)
}

func (s *Service) end(ctx context.Context, tx domain.Repos, actor domain.Principal, l *domain.Lease, to domain.LeaseStatus, reason string) (*domain.Event, error) {
	if !l.Status.ValidTransition(to) {
		return nil, domain.NewTransitionError("lease", l.Status, to, "")
	}
	now := s.now()
	from := l.Status
	l.Status = to
	l.TerminationReason = reason
	l.EndedAt = &now
	l.UpdatedAt = now
	if err := tx.Leases().Update(ctx, l); err != nil {
		return nil, err
	}
	if err := s.ReleaseUnitInTx(ctx, tx, l); err != nil {
		return nil, err
	}

	var details map[string]any
	if reason != "" {
		details = map[string]any{"reason": reason}
	}
	if err := s.recordTransition(ctx, tx, actor, l, from, details); err != nil {
		return nil, err
	}
	return s.event(l, now), nil
}

// ReleaseUnitInTx returns the unit of an ended lease to Available unless the
// unit must be held for an outstanding balance or another lease occupies it.
func (s *Service) ReleaseUnitInTx(ctx context.Context, tx domain.Repos, l *domain.Lease) error {
	if !l.Status.Terminal() {
		return nil
	}
	if s.ledger.Policy().HoldUnitUntilSettled {
		bal, err := ledger.Balance(ctx, tx, l.ID)
		if err != nil {
			return err
		}
		if bal.Signed.IsPositive() {
			return nil
		}
	}
	others, err := tx.Leases().CountActiveByUnit(ctx, l.UnitID, l.ID)
	if err != nil {
		return err
	}
	if others > 0 {
		return nil
	}
	unit, err := tx.Units().GetByID(ctx, l.UnitID)
	if err != nil {
		return err
	}
	if unit.Status != domain.UnitStatusRented {
		return nil
	}
	return tx.Units().UpdateStatus(ctx, l.UnitID, domain.UnitStatusAvailable)
}

func (s *Service) renew(ctx context.Context, tx domain.Repos, actor domain.Principal, l *domain.Lease, newEnd time.Time) (*domain.Event, error) {
	if l.Status != domain.LeaseStatusActive {
		return nil, domain.NewTransitionError("lease", l.Status, l.Status, "only active leases can be renewed")
	}
	if !newEnd.After(l.EndDate) {
		return nil, fmt.Errorf("%w: new end date must be after %s", domain.ErrInvalidInput, l.EndDate.Format(dateLayout))
	}
	now := s.now()
	previous := l.EndDate
	l.EndDate = newEnd
	l.RenewedAt = &now
	l.UpdatedAt = now
	if err := tx.Leases().Update(ctx, l); err != nil {
		return nil, err
	}
	err := tx.Audit().Record(ctx, domain.NewAuditEntry(actor, "lease.renew", "lease", l.ID, l.PropertyID, map[string]any{
		"previous_end": previous.Format(dateLayout),
		"end":          newEnd.Format(dateLayout),
	}, now))
	if err != nil {
		return nil, err
	}
	log.Info().Str("lease_id", l.ID.String()).Str("end", newEnd.Format(dateLayout)).Msg("lease renewed")
	return &domain.Event{Type: "lease_renewed", PropertyID: l.PropertyID, EntityID: l.ID, Status: string(l.Status), At: now}, nil
}

// ExpiryReport summarises an expiry sweep.
type ExpiryReport struct {
	Expired int
	Renewed int
	Failed  int
}

// ExpireDue ends every Active lease whose end date has passed, or renews it by
// its original term when the policy auto-renews.
func (s *Service) ExpireDue(ctx context.Context) (ExpiryReport, error) {
	var report ExpiryReport
	leases, err := s.store.Leases().ListByStatus(ctx, domain.LeaseStatusActive)
	if err != nil {
		return report, fmt.Errorf("lease.Service.ExpireDue: %w", err)
	}
	today := domain.DateOf(s.now())
	system := domain.SystemPrincipal()

	for _, candidate := range leases {
		if !today.After(candidate.EndDate) {
			continue
		}
		var (
			event   *domain.Event
			renewed bool
		)
		err := s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
			l, err := tx.Leases().GetForUpdate(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if l.Status != domain.LeaseStatusActive || !today.After(l.EndDate) {
				return nil
			}
			if s.ledger.Policy().AutoRenew {
				end := l.EndDate
				for !end.After(today) {
					end = end.AddDate(0, l.RenewalTerm(), 0)
				}
				event, err = s.renew(ctx, tx, system, l, end)
				renewed = err == nil
				return err
			}
			event, err = s.end(ctx, tx, system, l, domain.LeaseStatusExpired, "")
			return err
		})
		switch {
		case err != nil:
			report.Failed++
			log.Error().Err(err).Str("lease_id", candidate.ID.String()).Msg("lease expiry failed")
			continue
		case event == nil:
			continue
		case renewed:
			report.Renewed++
		default:
			report.Expired++
		}
		domain.Publish(ctx, s.events, *event)
	}
	return report, nil
}

func (s *Service) recordTransition(ctx context.Context, tx domain.Repos, actor domain.Principal, l *domain.Lease, from domain.LeaseStatus, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["from"] = string(from)
	details["to"] = string(l.Status)
	err := tx.Audit().Record(ctx, domain.NewAuditEntry(actor, "lease."+string(l.Status), "lease", l.ID, l.PropertyID, details, l.UpdatedAt))
	if err != nil {
		return fmt.Errorf("audit lease %s: %w", l.ID, err)
	}
	s.metrics.Transition("lease", string(l.Status))
	log.Info().
		Str("lease_id", l.ID.String()).
		Str("from", string(from)).
		Str("to", string(l.Status)).
		Msg("lease transition")
	return nil
}

func (s *Service) event(l *domain.Lease, at time.Time) *domain.Event {
	return &domain.Event{
		Type:       "lease." + string(l.Status),
		PropertyID: l.PropertyID,
		EntityID:   l.ID,
		Status:     string(l.Status),
		At:         at,
	}
}
