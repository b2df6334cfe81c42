package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "domestiq",
			Name:      "booking_created_total",
			Help:      "Count of booking requests created.",
		},
	)

	bookingTransition = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "domestiq",
			Name:      "booking_transition_total",
			Help:      "Count of booking status transitions by target status and outcome.",
		},
		[]string{"to", "outcome"},
	)

	transitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "domestiq",
			Name:      "booking_transition_duration_seconds",
			Help:      "Time spent applying a booking transition.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"to"},
	)

	paymentEvent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "domestiq",
			Name:      "payment_event_total",
			Help:      "Count of payment events by kind and outcome.",
		},
		[]string{"event", "outcome"},
	)

	refundAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "domestiq",
			Name:      "refund_amount_cents_total",
			Help:      "Sum of refunds decided at cancellation or no-show, in cents.",
		},
	)

	notificationsRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "domestiq",
			Name:      "notifications_relayed_total",
			Help:      "Count of notifications published to the message bus.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingTransition, transitionDuration, paymentEvent, refundAmount, notificationsRelayed)
	})
}

func IncBookingCreated() {
	bookingCreated.Inc()
}

// ObserveTransition records one transition attempt. outcome is "ok", "illegal", "conflict" or "error".
func ObserveTransition(to, outcome string, started time.Time) {
	bookingTransition.WithLabelValues(to, outcome).Inc()
	transitionDuration.WithLabelValues(to).Observe(time.Since(started).Seconds())
}

func IncPaymentEvent(event, outcome string) {
	paymentEvent.WithLabelValues(event, outcome).Inc()
}

func AddRefund(cents int64) {
	if cents > 0 {
		refundAmount.Add(float64(cents))
	}
}

func AddNotificationsRelayed(n int) {
	if n > 0 {
		notificationsRelayed.Add(float64(n))
	}
}
