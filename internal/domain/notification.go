package domain

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
)

// NotificationKind selects the email template used for a job.
type NotificationKind string

const (
	NotificationVerification         NotificationKind = "verification"
	NotificationApplicationSubmitted NotificationKind = "application_submitted"
	NotificationApplicationApproved  NotificationKind = "application_approved"
	NotificationApplicationDenied    NotificationKind = "application_denied"
	NotificationLeaseConfirmed       NotificationKind = "lease_confirmed"
	NotificationPaymentReceived      NotificationKind = "payment_received"
	NotificationMaintenanceStatus    NotificationKind = "maintenance_status"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification is an outbox job: a templated email written in the same
// transaction as the transition that produced it and delivered later.
type Notification struct {
	ID            uuid.UUID
	Kind          NotificationKind
	Recipient     string
	Data          map[string]string
	Status        NotificationStatus
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	SentAt        *time.Time
}

func NewNotification(kind NotificationKind, recipient string, data map[string]string, now time.Time) *Notification {
	return &Notification{
		ID:            uuid.New(),
		Kind:          kind,
		Recipient:     recipient,
		Data:          maps.Clone(data),
		Status:        NotificationStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, n *Notification) error
	// ClaimDue returns up to limit pending jobs whose NextAttemptAt has passed
	// and pushes their NextAttemptAt to now+hold so concurrent dispatchers skip them.
	ClaimDue(ctx context.Context, now time.Time, limit int, hold time.Duration) ([]*Notification, error)
	MarkSent(ctx context.Context, id uuid.UUID, attempts int, at time.Time) error
	MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
	ListFailed(ctx context.Context, limit int) ([]*Notification, error)
	Requeue(ctx context.Context, id uuid.UUID, now time.Time) error
}
