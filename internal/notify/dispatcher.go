// Package notify delivers outbox notification jobs through the email
// collaborator with bounded exponential backoff.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/metrics"
	"github.com/gosuda/leasekeep/internal/scope"
)

// Alerter is told about jobs that exhausted their retries.
type Alerter interface {
	NotificationFailed(ctx context.Context, n *domain.Notification) error
}

type ScopeResolver interface {
	Resolve(ctx context.Context, p domain.Principal) (*scope.Scope, error)
}

type Config struct {
	MaxAttempts  int
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	PollInterval time.Duration
	SendTimeout  time.Duration
	// ClaimTTL is how long a claimed job stays invisible to other dispatchers.
	ClaimTTL  time.Duration
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		BaseBackoff:  30 * time.Second,
		MaxBackoff:   30 * time.Minute,
		PollInterval: 5 * time.Second,
		SendTimeout:  10 * time.Second,
		ClaimTTL:     2 * time.Minute,
		BatchSize:    20,
	}
}

// Backoff returns the delay before retry number attempt (1-based):
// base * 2^(attempt-1), capped at max.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := c.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return min(d, c.MaxBackoff)
}

type Dispatcher struct {
	outbox   domain.OutboxRepository
	mailer   Mailer
	alerter  Alerter
	resolver ScopeResolver
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
}

type Option func(*Dispatcher)

func WithAlerter(a Alerter) Option { return func(d *Dispatcher) { d.alerter = a } }

func WithMetrics(m *metrics.Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }

func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// WithResolver enables the operator methods ListFailed and Requeue.
func WithResolver(r ScopeResolver) Option { return func(d *Dispatcher) { d.resolver = r } }

func NewDispatcher(outbox domain.OutboxRepository, mailer Mailer, cfg Config, opts ...Option) *Dispatcher {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.BaseBackoff)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.ClaimTTL <= cfg.SendTimeout {
		cfg.ClaimTTL = cfg.SendTimeout * 2
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	d := &Dispatcher{outbox: outbox, mailer: mailer, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	log.Info().Dur("poll_interval", d.cfg.PollInterval).Msg("notification dispatcher started")
	for {
		for {
			n, err := d.DispatchOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("notification dispatch failed")
				break
			}
			if n < d.cfg.BatchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("notification dispatcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// DispatchOnce claims one batch of due jobs and attempts each once. It
// returns how many jobs were claimed.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	jobs, err := d.outbox.ClaimDue(ctx, d.now(), d.cfg.BatchSize, d.cfg.ClaimTTL)
	if err != nil {
		return 0, fmt.Errorf("notify.Dispatcher.DispatchOnce: claim: %w", err)
	}
	for _, n := range jobs {
		if ctx.Err() != nil {
			return len(jobs), nil
		}
		d.attempt(ctx, n)
	}
	return len(jobs), nil
}

func (d *Dispatcher) attempt(ctx context.Context, n *domain.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	start := time.Now()
	err := deliver(sendCtx, d.mailer, n)
	cancel()

	attempts := n.Attempts + 1
	logger := log.With().
		Str("notification_id", n.ID.String()).
		Str("kind", string(n.Kind)).
		Int("attempt", attempts).
		Logger()

	if err == nil {
		d.metrics.NotificationSent(time.Since(start).Seconds())
		if markErr := d.outbox.MarkSent(ctx, n.ID, attempts, d.now()); markErr != nil {
			logger.Error().Err(markErr).Msg("notification sent but not marked")
		}
		return
	}

	if errors.Is(err, ErrPermanent) || attempts >= d.cfg.MaxAttempts {
		d.metrics.NotificationFailed()
		if markErr := d.outbox.MarkFailed(ctx, n.ID, attempts, err.Error()); markErr != nil {
			logger.Error().Err(markErr).Msg("notification failure not recorded")
			return
		}
		logger.Error().Err(err).Msg("notification permanently failed")
		n.Status = domain.NotificationStatusFailed
		n.Attempts = attempts
		n.LastError = err.Error()
		if d.alerter != nil {
			if alertErr := d.alerter.NotificationFailed(ctx, n); alertErr != nil {
				logger.Warn().Err(alertErr).Msg("dead letter alert failed")
			}
		}
		return
	}

	next := d.now().Add(d.cfg.Backoff(attempts))
	d.metrics.NotificationRetry()
	if markErr := d.outbox.MarkRetry(ctx, n.ID, attempts, next, err.Error()); markErr != nil {
		logger.Error().Err(markErr).Msg("notification retry not recorded")
		return
	}
	logger.Warn().Err(err).Time("next_attempt_at", next).Msg("notification delivery failed, will retry")
}

// ListFailed returns permanently failed jobs for operators.
func (d *Dispatcher) ListFailed(ctx context.Context, p domain.Principal, limit int) ([]*domain.Notification, error) {
	if err := d.requireOperator(ctx, p); err != nil {
		return nil, fmt.Errorf("notify.Dispatcher.ListFailed: %w", err)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out, err := d.outbox.ListFailed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("notify.Dispatcher.ListFailed: %w", err)
	}
	return out, nil
}

// Requeue puts a failed job back in the queue with a fresh attempt budget.
func (d *Dispatcher) Requeue(ctx context.Context, p domain.Principal, id uuid.UUID) error {
	if err := d.requireOperator(ctx, p); err != nil {
		return fmt.Errorf("notify.Dispatcher.Requeue: %w", err)
	}
	if err := d.outbox.Requeue(ctx, id, d.now()); err != nil {
		return fmt.Errorf("notify.Dispatcher.Requeue: %w", err)
	}
	log.Info().Str("notification_id", id.String()).Msg("notification requeued")
	return nil
}

func (d *Dispatcher) requireOperator(ctx context.Context, p domain.Principal) error {
	if d.resolver == nil {
		return domain.ErrForbidden
	}
	sc, err := d.resolver.Resolve(ctx, p)
	if err != nil {
		return err
	}
	return sc.Require(scope.CapOperateNotifications)
}
