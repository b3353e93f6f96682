package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/scope"
)

// ConfirmResult is the outcome of a confirm call. Applied is true only for
// the call that moved the payment out of Pending.
type ConfirmResult struct {
	Payment *domain.Payment
	Applied bool
}

// Confirm reconciles a gateway result for ref. The status is trusted, so only
// the system principal acting on a verified gateway notification (or an
// admin) may call it. It may be called any number of times, in any order:
//
//   - a confirmed payment is returned unchanged
//   - a failed payment yields ErrAlreadyFailed
//   - success confirms the payment and posts it to the ledger in one transaction
//   - failure marks the payment failed
//   - a gateway pending status changes nothing
//
// The payment row is locked for the whole transaction, then its lease, so
// concurrent confirms of one reference serialize and only one applies.
func (s *Service) Confirm(ctx context.Context, p domain.Principal, ref string, status domain.GatewayStatus) (*ConfirmResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("payment.Service.Confirm: %w: gateway status %q", domain.ErrInvalidInput, status)
	}
	sc, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("payment.Service.Confirm: %w", err)
	}
	if err := sc.Require(scope.CapReconcilePayments); err != nil {
		s.metrics.Confirmation("rejected")
		return nil, fmt.Errorf("payment.Service.Confirm: %w", err)
	}
	res, err := s.reconcile(ctx, p, ref, status)
	if err != nil {
		return nil, fmt.Errorf("payment.Service.Confirm: %w", err)
	}
	return res, nil
}

// Sync is the client-side confirm callback. The caller only names the
// payment; its outcome is fetched from the gateway and reconciled like a
// webhook notification.
func (s *Service) Sync(ctx context.Context, p domain.Principal, ref string) (*ConfirmResult, error) {
	if _, err := s.authorize(ctx, p, ref); err != nil {
		s.metrics.Confirmation("rejected")
		return nil, fmt.Errorf("payment.Service.Sync: %w", err)
	}
	status, err := s.gateway.Status(ctx, ref)
	if err != nil {
		if !errors.Is(err, domain.ErrExternalUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrExternalUnavailable, err)
		}
		return nil, fmt.Errorf("payment.Service.Sync: gateway: %w", err)
	}
	res, err := s.reconcile(ctx, p, ref, status)
	if err != nil {
		return nil, fmt.Errorf("payment.Service.Sync: %w", err)
	}
	return res, nil
}

func (s *Service) reconcile(ctx context.Context, p domain.Principal, ref string, status domain.GatewayStatus) (*ConfirmResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: gateway status %q", domain.ErrInvalidInput, status)
	}

	var (
		result = &ConfirmResult{}
		events []domain.Event
	)
	err := s.store.InTx(ctx, func(ctx context.Context, tx domain.Repos) error {
		events = events[:0]
		pay, err := tx.Payments().GetByReferenceForUpdate(ctx, ref)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUnknownPayment
		}
		if err != nil {
			return err
		}
		result.Payment = pay

		switch pay.Status {
		case domain.PaymentStatusConfirmed:
			return nil
		case domain.PaymentStatusFailed:
			return fmt.Errorf("payment %s: %w", ref, domain.ErrAlreadyFailed)
		}

		switch status {
		case domain.GatewayStatusPending:
			return nil
		case domain.GatewayStatusFailure:
			events, err = s.fail(ctx, tx, p, pay)
		default:
			events, err = s.settle(ctx, tx, p, pay)
		}
		if err != nil {
			return err
		}
		result.Applied = true
		return nil
	})
	if err != nil {
		s.metrics.Confirmation("error")
		return nil, err
	}

	switch {
	case result.Applied:
		s.metrics.Confirmation(string(result.Payment.Status))
		log.Info().
			Str("payment_ref", ref).
			Str("lease_id", result.Payment.LeaseID.String()).
			Str("status", string(result.Payment.Status)).
			Msg("payment reconciled")
	case result.Payment.Status == domain.PaymentStatusConfirmed:
		s.metrics.Confirmation("replay")
	default:
		s.metrics.Confirmation("pending")
	}
	domain.Publish(ctx, s.events, events...)
	return result, nil
}

func (s *Service) fail(ctx context.Context, tx domain.Repos, actor domain.Principal, pay *domain.Payment) ([]domain.Event, error) {
	now := s.now()
	from := pay.Status
	pay.Status = domain.PaymentStatusFailed
	pay.FailedAt = &now
	pay.UpdatedAt = now
	if err := tx.Payments().Update(ctx, pay); err != nil {
		return nil, err
	}
	err := tx.Audit().Record(ctx, domain.NewAuditEntry(actor, "payment.failed", "payment", pay.ID, pay.PropertyID,
		map[string]any{"reference": pay.GatewayReference, "from": string(from)}, now))
	if err != nil {
		return nil, err
	}
	return []domain.Event{paymentEvent(pay)}, nil
}

// settle confirms pay, posts it to the ledger and drives the lease forward.
func (s *Service) settle(ctx context.Context, tx domain.Repos, actor domain.Principal, pay *domain.Payment) ([]domain.Event, error) {
	lease, err := tx.Leases().GetForUpdate(ctx, pay.LeaseID)
	if err != nil {
		return nil, fmt.Errorf("lease: %w", err)
	}

	now := s.now()
	from := pay.Status
	pay.Status = domain.PaymentStatusConfirmed
	pay.ConfirmedAt = &now
	pay.UpdatedAt = now
	if err := tx.Payments().Update(ctx, pay); err != nil {
		return nil, err
	}
	if err := s.ledger.PostPayment(ctx, tx, lease, pay); err != nil {
		return nil, err
	}

	events := []domain.Event{paymentEvent(pay)}
	switch {
	case lease.Status == domain.LeaseStatusPending:
		ok, err := s.leases.CanActivate(ctx, tx, lease)
		if err != nil {
			return nil, err
		}
		if ok {
			ev, err := s.leases.ActivateInTx(ctx, tx, actor, lease)
			if err != nil {
				return nil, err
			}
			events = append(events, *ev)
		}
	case lease.Status.Terminal():
		if err := s.leases.ReleaseUnitInTx(ctx, tx, lease); err != nil {
			return nil, err
		}
	}

	tenant, err := tx.Tenants().GetByID(ctx, pay.TenantID)
	if err != nil {
		return nil, fmt.Errorf("tenant: %w", err)
	}
	err = tx.Outbox().Enqueue(ctx, domain.NewNotification(domain.NotificationPaymentReceived, tenant.Email, map[string]string{
		"tenant_name": tenant.FullName(),
		"reference":   pay.GatewayReference,
		"amount":      pay.Amount.StringFixed(2),
		"lease_id":    pay.LeaseID.String(),
		"paid_at":     now.Format("2006-01-02 15:04"),
	}, now))
	if err != nil {
		return nil, fmt.Errorf("notify: %w", err)
	}

	err = tx.Audit().Record(ctx, domain.NewAuditEntry(actor, "payment.confirmed", "payment", pay.ID, pay.PropertyID,
		map[string]any{"reference": pay.GatewayReference, "amount": pay.Amount.String(), "from": string(from)}, now))
	if err != nil {
		return nil, err
	}
	return events, nil
}

func paymentEvent(pay *domain.Payment) domain.Event {
	return domain.Event{
		Type:       "payment." + string(pay.Status),
		PropertyID: pay.PropertyID,
		EntityID:   pay.ID,
		Status:     string(pay.Status),
		At:         pay.UpdatedAt,
	}
}
