package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AuditEntry struct {
	ID         uuid.UUID
	PropertyID uuid.UUID
	ActorID    uuid.UUID // uuid.Nil for the system principal
	Action     string    // "lease.active", "payment.confirmed", ...
	Resource   string    // "lease", "payment", "maintenance", "application"
	ResourceID uuid.UUID
	Details    map[string]any
	CreatedAt  time.Time
}

type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
	ListByResource(ctx context.Context, resource string, resourceID uuid.UUID) ([]*AuditEntry, error)
}

func NewAuditEntry(actor Principal, action, resource string, resourceID, propertyID uuid.UUID, details map[string]any, now time.Time) *AuditEntry {
	return &AuditEntry{
		ID:         uuid.New(),
		PropertyID: propertyID,
		ActorID:    actor.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		CreatedAt:  now,
	}
}
