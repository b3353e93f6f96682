package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/leasekeep/internal/domain"
)

type OutboxRepo struct{ db dbtx }

const notificationColumns = `id, kind, recipient, data, status, attempts, next_attempt_at, last_error, created_at, sent_at`

func (r *OutboxRepo) Enqueue(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("outboxRepo.Enqueue: marshal data: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.Kind, n.Recipient, data, n.Status, n.Attempts, n.NextAttemptAt, n.LastError, n.CreatedAt, n.SentAt,
	)
	if err != nil {
		return mapErr("outboxRepo.Enqueue", err)
	}
	return nil
}

// ClaimDue locks due rows with SKIP LOCKED so concurrent dispatchers never
// claim the same job, and hides them for hold by moving next_attempt_at.
func (r *OutboxRepo) ClaimDue(ctx context.Context, now time.Time, limit int, hold time.Duration) ([]*domain.Notification, error) {
	rows, err := r.db.Query(ctx,
		`WITH due AS (
		     SELECT id FROM notifications
		     WHERE status = 'pending' AND next_attempt_at <= $1
		     ORDER BY next_attempt_at
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 ), claimed AS (
		     UPDATE notifications n SET next_attempt_at = $3
		     FROM due WHERE n.id = due.id
		     RETURNING n.id, n.kind, n.recipient, n.data, n.status, n.attempts, $1::timestamptz AS next_attempt_at,
		               n.last_error, n.created_at, n.sent_at
		 )
		 SELECT `+notificationColumns+` FROM claimed ORDER BY created_at`,
		now, limit, now.Add(hold),
	)
	if err != nil {
		return nil, mapErr("outboxRepo.ClaimDue", err)
	}
	return collectAll(rows, scanNotification, "outboxRepo.ClaimDue")
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id uuid.UUID, attempts int, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET status = 'sent', attempts = $1, sent_at = $2, last_error = '' WHERE id = $3`,
		attempts, at, id,
	)
	return mustAffect("outboxRepo.MarkSent", tag, err)
}

func (r *OutboxRepo) MarkRetry(ctx context.Context, id uuid.UUID, attempts int, next time.Time, lastErr string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET attempts = $1, next_attempt_at = $2, last_error = $3 WHERE id = $4`,
		attempts, next, lastErr, id,
	)
	return mustAffect("outboxRepo.MarkRetry", tag, err)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET status = 'failed', attempts = $1, last_error = $2 WHERE id = $3`,
		attempts, lastErr, id,
	)
	return mustAffect("outboxRepo.MarkFailed", tag, err)
}

func (r *OutboxRepo) ListFailed(ctx context.Context, limit int) ([]*domain.Notification, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE status = 'failed'
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, mapErr("outboxRepo.ListFailed", err)
	}
	return collectAll(rows, scanNotification, "outboxRepo.ListFailed")
}

func (r *OutboxRepo) Requeue(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE notifications SET status = 'pending', attempts = 0, next_attempt_at = $1
		 WHERE id = $2 AND status = 'failed'`,
		now, id,
	)
	return mustAffect("outboxRepo.Requeue", tag, err)
}

func scanNotification(row pgx.CollectableRow) (*domain.Notification, error) {
	var (
		n    domain.Notification
		data []byte
	)
	err := row.Scan(&n.ID, &n.Kind, &n.Recipient, &data, &n.Status, &n.Attempts, &n.NextAttemptAt, &n.LastError, &n.CreatedAt, &n.SentAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &n.Data); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return &n, nil
}
