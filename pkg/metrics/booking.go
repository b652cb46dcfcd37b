package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chalets"

// BookingMetrics tracks booking, payment and webhook outcomes.
type BookingMetrics struct {
	bookingsCreated  *prometheus.CounterVec
	bookingConflicts prometheus.Counter
	payments         *prometheus.CounterVec
	webhooks         *prometheus.CounterVec
	gatewayLatency   *prometheus.HistogramVec
}

// NewBookingMetrics registers the booking metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	m := &BookingMetrics{
		bookingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created, by initial status.",
		}, []string{"status"}),
		bookingConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected because the dates were taken.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payment attempts by method and resulting status.",
		}, []string{"method", "status"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Payment webhooks by event and outcome.",
		}, []string{"event", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(m.bookingsCreated, m.bookingConflicts, m.payments, m.webhooks, m.gatewayLatency)
	return m
}

func (m *BookingMetrics) BookingCreated(status string) {
	if m == nil || m.bookingsCreated == nil {
		return
	}
	m.bookingsCreated.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *BookingMetrics) BookingConflict() {
	if m == nil || m.bookingConflicts == nil {
		return
	}
	m.bookingConflicts.Inc()
}

func (m *BookingMetrics) Payment(method, status string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(method), normalizeLabel(status)).Inc()
}

// Webhook records one webhook delivery; outcome is applied, duplicate,
// ignored, not_found, rejected or error.
func (m *BookingMetrics) Webhook(event, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

// ObserveGateway records the latency of a gateway operation.
func (m *BookingMetrics) ObserveGateway(operation string, err error, d time.Duration) {
	if m == nil || m.gatewayLatency == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayLatency.WithLabelValues(normalizeLabel(operation), outcome).Observe(d.Seconds())
}
