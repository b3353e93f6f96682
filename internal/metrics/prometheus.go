package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the tenancy core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// State machine metrics
	TransitionsTotal *prometheus.CounterVec

	// Ledger metrics
	AccrualsTotal *prometheus.CounterVec

	// Payment metrics
	PaymentsInitiatedTotal prometheus.Counter
	ConfirmationsTotal     *prometheus.CounterVec

	// Notification metrics
	NotificationsSentTotal   prometheus.Counter
	NotificationRetriesTotal prometheus.Counter
	NotificationsFailedTotal prometheus.Counter
	NotificationSendDuration prometheus.Histogram
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leasekeep",
			Subsystem: "core",
			Name:      "transitions_total",
			Help:      "State machine transitions applied, by machine and target state",
		}, []string{"machine", "to"}),

		AccrualsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leasekeep",
			Subsystem: "ledger",
			Name:      "accruals_total",
			Help:      "Monthly accrual attempts, by outcome",
		}, []string{"outcome"}),

		PaymentsInitiatedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leasekeep",
			Subsystem: "payment",
			Name:      "initiated_total",
			Help:      "Payments initiated with the gateway",
		}),
		ConfirmationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leasekeep",
			Subsystem: "payment",
			Name:      "confirmations_total",
			Help:      "Confirm calls, by outcome",
		}, []string{"outcome"}),

		NotificationsSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leasekeep",
			Subsystem: "notify",
			Name:      "sent_total",
			Help:      "Notification jobs delivered",
		}),
		NotificationRetriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leasekeep",
			Subsystem: "notify",
			Name:      "retries_total",
			Help:      "Notification deliveries scheduled for retry",
		}),
		NotificationsFailedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "leasekeep",
			Subsystem: "notify",
			Name:      "failed_total",
			Help:      "Notification jobs permanently failed",
		}),
		NotificationSendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "leasekeep",
			Subsystem: "notify",
			Name:      "send_duration_seconds",
			Help:      "Email collaborator call latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) Transition(machine, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(machine, to).Inc()
}

func (m *Metrics) Accrual(outcome string) {
	if m == nil {
		return
	}
	m.AccrualsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PaymentInitiated() {
	if m == nil {
		return
	}
	m.PaymentsInitiatedTotal.Inc()
}

func (m *Metrics) Confirmation(outcome string) {
	if m == nil {
		return
	}
	m.ConfirmationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NotificationSent(seconds float64) {
	if m == nil {
		return
	}
	m.NotificationsSentTotal.Inc()
	m.NotificationSendDuration.Observe(seconds)
}

func (m *Metrics) NotificationRetry() {
	if m == nil {
		return
	}
	m.NotificationRetriesTotal.Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailedTotal.Inc()
}
