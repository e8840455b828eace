package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters/histograms for the scheduling core.
type Metrics struct {
	bookingsTotal    *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	attachmentOps    *prometheus.CounterVec
	bookingLatency   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by result",
		}, []string{"result"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Appointment status transitions by target and result",
		}, []string{"to", "result"}),
		attachmentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consult",
			Subsystem: "visit",
			Name:      "attachment_ops_total",
			Help:      "Lab report storage operations by kind and result",
		}, []string{"op", "result"}),
		bookingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "consult",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of the booking critical section",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.attachmentOps, m.bookingLatency)
	return m
}

func (m *Metrics) ObserveBooking(result string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
	m.bookingLatency.Observe(seconds)
}

func (m *Metrics) ObserveTransition(to, result string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, result).Inc()
}

func (m *Metrics) ObserveAttachment(op, result string) {
	if m == nil {
		return
	}
	m.attachmentOps.WithLabelValues(op, result).Inc()
}
