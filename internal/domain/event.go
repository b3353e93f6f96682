package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event is a committed state change fanned out to live dashboards.
type Event struct {
	Type       string    `json:"type"` // "lease.active", "payment.confirmed", ...
	PropertyID uuid.UUID `json:"property_id"`
	EntityID   uuid.UUID `json:"entity_id"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`
}

// EventPublisher broadcasts committed events. Publishing is best effort.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e Event) error
}

// Publish sends committed events in order. Failures are logged and dropped;
// a nil publisher drops everything.
func Publish(ctx context.Context, pub EventPublisher, events ...Event) {
	if pub == nil {
		return
	}
	for _, e := range events {
		if err := pub.PublishEvent(ctx, e); err != nil {
			log.Warn().Err(err).Str("type", e.Type).Str("property_id", e.PropertyID.String()).Msg("event publish failed")
		}
	}
}
