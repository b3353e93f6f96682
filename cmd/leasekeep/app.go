package main

import (
	"context"
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/leasekeep/internal/api/ws"
	"github.com/gosuda/leasekeep/internal/application"
	"github.com/gosuda/leasekeep/internal/config"
	"github.com/gosuda/leasekeep/internal/domain"
	"github.com/gosuda/leasekeep/internal/jobs"
	"github.com/gosuda/leasekeep/internal/lease"
	"github.com/gosuda/leasekeep/internal/ledger"
	"github.com/gosuda/leasekeep/internal/maintenance"
	"github.com/gosuda/leasekeep/internal/metrics"
	"github.com/gosuda/leasekeep/internal/notify"
	"github.com/gosuda/leasekeep/internal/notify/email"
	"github.com/gosuda/leasekeep/internal/notify/slack"
	"github.com/gosuda/leasekeep/internal/payment"
	"github.com/gosuda/leasekeep/internal/payment/midtrans"
	"github.com/gosuda/leasekeep/internal/scope"
	"github.com/gosuda/leasekeep/internal/server"
	"github.com/gosuda/leasekeep/internal/store/postgres"
	redisstore "github.com/gosuda/leasekeep/internal/store/redis"
)

// app holds the wired services shared by every command.
type app struct {
	cfg      *config.Config
	store    *postgres.Store
	pubsub   *redisstore.PubSub
	registry *prometheus.Registry

	resolver     *scope.Resolver
	ledger       *ledger.Ledger
	leases       *lease.Service
	payments     *payment.Service
	maintenance  *maintenance.Service
	applications *application.Service
	dispatcher   *notify.Dispatcher
}

func openStore(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}
	return postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
}

// newApp connects to PostgreSQL and, when withEvents is set, to Redis for
// event fan-out. Batch commands run without Redis.
func newApp(ctx context.Context, cfg *config.Config, withEvents bool) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		store:    store,
		registry: prometheus.NewRegistry(),
	}

	var events domain.EventPublisher
	if withEvents {
		a.pubsub, err = redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			store.Close()
			return nil, err
		}
		events = a.pubsub
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(a.registry)

	policy := domain.TenancyPolicy{
		AutoRenew:            cfg.Lease.AutoRenew,
		HoldUnitUntilSettled: cfg.Lease.HoldUnitUntilSettled,
	}

	a.resolver = scope.NewResolver(store)
	a.ledger = ledger.New(store, a.resolver, policy, ledger.WithMetrics(m))
	a.leases = lease.NewService(store, a.resolver, a.ledger,
		lease.WithEvents(events),
		lease.WithMetrics(m),
	)
	a.payments = payment.NewService(store, a.resolver, a.ledger, a.leases,
		midtrans.New(cfg.Gateway.ServerKey, cfg.Gateway.Production),
		payment.WithEvents(events),
		payment.WithMetrics(m),
		payment.WithStaleAfter(cfg.Payment.StaleAfter),
	)
	a.maintenance = maintenance.NewService(store, a.resolver,
		maintenance.WithEvents(events),
		maintenance.WithMetrics(m),
	)
	a.applications = application.NewService(store, a.resolver, application.WithMetrics(m))
	a.dispatcher = newDispatcher(cfg, store, a.resolver, m)

	return a, nil
}

func newDispatcher(cfg *config.Config, store *postgres.Store, resolver *scope.Resolver, m *metrics.Metrics) *notify.Dispatcher {
	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.Email.BaseURL != "" {
		mailer = email.New(email.Config{
			BaseURL: cfg.Email.BaseURL,
			APIKey:  cfg.Email.APIKey,
			From:    cfg.Email.From,
			Timeout: cfg.Email.Timeout,
		})
	} else {
		log.Warn().Msg("no email provider configured, notifications are logged only")
	}

	nc := notify.DefaultConfig()
	nc.MaxAttempts = cfg.Notify.MaxAttempts
	nc.BaseBackoff = cfg.Notify.BaseBackoff
	nc.MaxBackoff = cfg.Notify.MaxBackoff
	nc.PollInterval = cfg.Notify.PollInterval
	nc.BatchSize = cfg.Notify.BatchSize
	nc.SendTimeout = cfg.Notify.SendTimeout

	opts := []notify.Option{
		notify.WithResolver(resolver),
		notify.WithMetrics(m),
	}
	if cfg.Slack.BotToken != "" {
		opts = append(opts, notify.WithAlerter(slack.New(cfg.Slack.BotToken, cfg.Slack.Channel)))
	}
	return notify.NewDispatcher(store.Outbox(), mailer, nc, opts...)
}

func (a *app) services() server.Services {
	return server.Services{
		Scope:         a.resolver,
		Leases:        a.leases,
		Ledger:        a.ledger,
		Payments:      a.payments,
		Maintenance:   a.maintenance,
		Applications:  a.applications,
		Notifications: a.dispatcher,
	}
}

func (a *app) hub() *ws.Hub {
	return ws.NewHub(a.pubsub, a.resolver)
}

func (a *app) healthChecks() map[string]server.Pinger {
	checks := map[string]server.Pinger{"postgres": a.store}
	if a.pubsub != nil {
		checks["redis"] = a.pubsub
	}
	return checks
}

func (a *app) gatherer() prometheus.Gatherer {
	if !a.cfg.Metrics {
		return nil
	}
	return a.registry
}

func (a *app) scheduler() *jobs.Scheduler {
	return jobs.NewScheduler(a.ledger, a.leases, a.payments, a.cfg.Scheduler.Interval)
}

func (a *app) Close() {
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
	a.store.Close()
}
