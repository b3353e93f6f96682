package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/domain"
)

// ErrPermanent marks a delivery failure that retrying cannot fix.
var ErrPermanent = errors.New("notify: permanent failure")

// Mailer is the email collaborator: one operation per template. Retrying is
// the dispatcher's job, not the mailer's.
type Mailer interface {
	SendVerification(ctx context.Context, to string, fields map[string]string) error
	SendApplicationSubmitted(ctx context.Context, to string, fields map[string]string) error
	SendApplicationApproved(ctx context.Context, to string, fields map[string]string) error
	SendApplicationDenied(ctx context.Context, to string, fields map[string]string) error
	SendLeaseConfirmation(ctx context.Context, to string, fields map[string]string) error
	SendPaymentReceipt(ctx context.Context, to string, fields map[string]string) error
	SendMaintenanceStatus(ctx context.Context, to string, fields map[string]string) error
}

// deliver routes a job to the mailer operation of its template.
func deliver(ctx context.Context, m Mailer, n *domain.Notification) error {
	switch n.Kind {
	case domain.NotificationVerification:
		return m.SendVerification(ctx, n.Recipient, n.Data)
	case domain.NotificationApplicationSubmitted:
		return m.SendApplicationSubmitted(ctx, n.Recipient, n.Data)
	case domain.NotificationApplicationApproved:
		return m.SendApplicationApproved(ctx, n.Recipient, n.Data)
	case domain.NotificationApplicationDenied:
		return m.SendApplicationDenied(ctx, n.Recipient, n.Data)
	case domain.NotificationLeaseConfirmed:
		return m.SendLeaseConfirmation(ctx, n.Recipient, n.Data)
	case domain.NotificationPaymentReceived:
		return m.SendPaymentReceipt(ctx, n.Recipient, n.Data)
	case domain.NotificationMaintenanceStatus:
		return m.SendMaintenanceStatus(ctx, n.Recipient, n.Data)
	default:
		return fmt.Errorf("%w: unknown template %q", ErrPermanent, n.Kind)
	}
}

// LogMailer writes every email to the log instead of sending it. It is used
// when no email provider is configured.
type LogMailer struct{}

var _ Mailer = LogMailer{} //nolint:gochecknoglobals // compile-time check

func (LogMailer) log(template, to string, fields map[string]string) error {
	ev := log.Info().Str("template", template).Str("to", to)
	for k, v := range fields {
		ev = ev.Str(k, v)
	}
	ev.Msg("email (log only)")
	return nil
}

func (m LogMailer) SendVerification(_ context.Context, to string, fields map[string]string) error {
	return m.log("verification", to, fields)
}

func (m LogMailer) SendApplicationSubmitted(_ context.Context, to string, fields map[string]string) error {
	return m.log("application_submitted", to, fields)
}

func (m LogMailer) SendApplicationApproved(_ context.Context, to string, fields map[string]string) error {
	return m.log("application_approved", to, fields)
}

func (m LogMailer) SendApplicationDenied(_ context.Context, to string, fields map[string]string) error {
	return m.log("application_denied", to, fields)
}

func (m LogMailer) SendLeaseConfirmation(_ context.Context, to string, fields map[string]string) error {
	return m.log("lease_confirmation", to, fields)
}

func (m LogMailer) SendPaymentReceipt(_ context.Context, to string, fields map[string]string) error {
	return m.log("payment_receipt", to, fields)
}

func (m LogMailer) SendMaintenanceStatus(_ context.Context, to string, fields map[string]string) error {
	return m.log("maintenance_status", to, fields)
}
