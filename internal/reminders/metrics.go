package reminders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for reminder scheduling and delivery.
type Metrics struct {
	// NotificationsScheduled counts registrations handed to the sink, by offset kind.
	NotificationsScheduled *prometheus.CounterVec

	// ScheduleFailures counts registrations the sink rejected, by offset kind.
	ScheduleFailures *prometheus.CounterVec

	// NotificationsSkipped counts reminders dropped because their fire time had passed.
	NotificationsSkipped prometheus.Counter

	// NotificationsCancelled counts cancelled registrations.
	NotificationsCancelled prometheus.Counter

	// Rollovers counts recurring gigs advanced to their next occurrence.
	Rollovers prometheus.Counter

	// NotificationsDelivered counts delivery outcomes, by status.
	NotificationsDelivered *prometheus.CounterVec

	// DeliveryDuration is the time to deliver one notification.
	DeliveryDuration prometheus.Histogram

	// DeliveryRetries counts retry attempts.
	DeliveryRetries prometheus.Counter

	// PendingNotifications is the number of registrations in the sink at the last poll.
	PendingNotifications prometheus.Gauge
}

// NewMetrics creates reminder metrics and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		NotificationsScheduled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_scheduled_total",
				Help:      "Total number of notifications scheduled",
			},
			[]string{"kind"},
		),

		ScheduleFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_schedule_failures_total",
				Help:      "Total number of notifications the sink failed to schedule",
			},
			[]string{"kind"},
		),

		NotificationsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_skipped_total",
				Help:      "Total number of reminders skipped because their time had passed",
			},
		),

		NotificationsCancelled: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_cancelled_total",
				Help:      "Total number of cancelled notifications",
			},
		),

		Rollovers: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gig_rollovers_total",
				Help:      "Total number of recurring gigs advanced",
			},
		),

		NotificationsDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_delivered_total",
				Help:      "Total number of delivery attempts by outcome",
			},
			[]string{"status"},
		),

		DeliveryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_delivery_duration_seconds",
				Help:      "Time to deliver a notification",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5},
			},
		),

		DeliveryRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notification_delivery_retries_total",
				Help:      "Total number of delivery retry attempts",
			},
		),

		PendingNotifications: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notifications_pending",
				Help:      "Number of registered notifications at the last poll",
			},
		),
	}
}

// kindOf collapses hour tags into one label value.
func kindOf(tag string) string {
	switch tag {
	case TagSevenDays, TagOneDay:
		return tag
	default:
		return "hours"
	}
}

func (m *Metrics) IncScheduled(tag string) {
	m.NotificationsScheduled.WithLabelValues(kindOf(tag)).Inc()
}

func (m *Metrics) IncScheduleFailure(tag string) {
	m.ScheduleFailures.WithLabelValues(kindOf(tag)).Inc()
}

func (m *Metrics) IncSkipped() {
	m.NotificationsSkipped.Inc()
}

func (m *Metrics) AddCancelled(n int) {
	m.NotificationsCancelled.Add(float64(n))
}

func (m *Metrics) IncRollovers() {
	m.Rollovers.Inc()
}

func (m *Metrics) IncDelivered(status string) {
	m.NotificationsDelivered.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveDeliveryDuration(seconds float64) {
	m.DeliveryDuration.Observe(seconds)
}

func (m *Metrics) IncRetries() {
	m.DeliveryRetries.Inc()
}

func (m *Metrics) SetPending(n int) {
	m.PendingNotifications.Set(float64(n))
}
