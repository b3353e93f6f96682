package memory

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/leasekeep/internal/domain"
)

type outboxRepo struct{ s *Store }

func (r outboxRepo) Enqueue(_ context.Context, n *domain.Notification) error {
	v := *n
	v.Data = maps.Clone(n.Data)
	return r.s.write(func(d *data) error {
		if _, ok := d.notifications[n.ID]; ok {
			return conflict("memory.outboxRepo.Enqueue")
		}
		d.notifications[n.ID] = v
		return nil
	})
}

func (r outboxRepo) ClaimDue(_ context.Context, now time.Time, limit int, hold time.Duration) ([]*domain.Notification, error) {
	var out []*domain.Notification
	err := r.s.write(func(d *data) error {
		due := make([]domain.Notification, 0)
		for _, n := range d.notifications {
			if n.Status == domain.NotificationStatusPending && !n.NextAttemptAt.After(now) {
				due = append(due, n)
			}
		}
		slices.SortFunc(due, func(a, b domain.Notification) int { return a.NextAttemptAt.Compare(b.NextAttemptAt) })
		if len(due) > limit {
			due = due[:limit]
		}
		for _, n := range due {
			stored := d.notifications[n.ID]
			stored.NextAttemptAt = now.Add(hold)
			d.notifications[n.ID] = stored

			claimed := n
			claimed.Data = maps.Clone(n.Data)
			out = append(out, &claimed)
		}
		return nil
	})
	return out, err
}

func (r outboxRepo) MarkSent(_ context.Context, id uuid.UUID, attempts int, at time.Time) error {
	return r.update(id, "memory.outboxRepo.MarkSent", func(n *domain.Notification) {
		n.Status = domain.NotificationStatusSent
		n.Attempts = attempts
		n.SentAt = &at
		n.LastError = ""
	})
}

func (r outboxRepo) MarkRetry(_ context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error {
	return r.update(id, "memory.outboxRepo.MarkRetry", func(n *domain.Notification) {
		n.Attempts = attempts
		n.NextAttemptAt = next
		n.LastError = lastErr
	})
}

func (r outboxRepo) MarkFailed(_ context.Context, id uuid.UUID, attempts int, lastErr string) error {
	return r.update(id, "memory.outboxRepo.MarkFailed", func(n *domain.Notification) {
		n.Status = domain.NotificationStatusFailed
		n.Attempts = attempts
		n.LastError = lastErr
	})
}

func (r outboxRepo) ListFailed(_ context.Context, limit int) ([]*domain.Notification, error) {
	var out []*domain.Notification
	r.s.read(func(d *data) {
		for _, n := range d.notifications {
			if n.Status == domain.NotificationStatusFailed {
				n.Data = maps.Clone(n.Data)
				out = append(out, &n)
			}
		}
	})
	slices.SortFunc(out, func(a, b *domain.Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r outboxRepo) Requeue(_ context.Context, id uuid.UUID, now time.Time) error {
	return r.s.write(func(d *data) error {
		n, ok := d.notifications[id]
		if !ok || n.Status != domain.NotificationStatusFailed {
			return notFound("memory.outboxRepo.Requeue")
		}
		n.Status = domain.NotificationStatusPending
		n.Attempts = 0
		n.NextAttemptAt = now
		d.notifications[id] = n
		return nil
	})
}

// Pending returns every undelivered job, oldest first. Tests use it to inspect the outbox.
func (s *Store) Pending() []*domain.Notification {
	var out []*domain.Notification
	s.read(func(d *data) {
		for _, n := range d.notifications {
			if n.Status == domain.NotificationStatusPending {
				n.Data = maps.Clone(n.Data)
				out = append(out, &n)
			}
		}
	})
	slices.SortFunc(out, func(a, b *domain.Notification) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (r outboxRepo) update(id uuid.UUID, caller string, fn func(n *domain.Notification)) error {
	return r.s.write(func(d *data) error {
		n, ok := d.notifications[id]
		if !ok {
			return notFound(caller)
		}
		fn(&n)
		d.notifications[id] = n
		return nil
	})
}

type auditRepo struct{ s *Store }

func (r auditRepo) Record(_ context.Context, entry *domain.AuditEntry) error {
	return r.s.write(func(d *data) error {
		d.audit = append(d.audit, *entry)
		return nil
	})
}

func (r auditRepo) ListByResource(_ context.Context, resource string, resourceID uuid.UUID) ([]*domain.AuditEntry, error) {
	var out []*domain.AuditEntry
	r.s.read(func(d *data) {
		for _, e := range d.audit {
			if e.Resource == resource && e.ResourceID == resourceID {
				out = append(out, &e)
			}
		}
	})
	return out, nil
}
