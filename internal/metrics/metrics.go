package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the scheduling engine.
type BookingMetrics struct {
	createTotal      *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	availability     prometheus.Histogram
	lockFallbacks    prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "create_total",
			Help:      "Appointment creation attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "status_transitions_total",
			Help:      "Applied appointment status transitions",
		}, []string{"from", "to"}),
		availability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "availability_seconds",
			Help:      "Latency of available start time computation",
			Buckets:   prometheus.DefBuckets,
		}),
		lockFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "lock_fallbacks_total",
			Help:      "Bookings serialized by database locks alone because Redis was unreachable",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createTotal, m.transitionsTotal, m.availability, m.lockFallbacks)
	return m
}

func (m *BookingMetrics) ObserveCreate(outcome string) {
	if m == nil {
		return
	}
	m.createTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObserveAvailability(seconds float64) {
	if m == nil {
		return
	}
	m.availability.Observe(seconds)
}

func (m *BookingMetrics) ObserveLockFallback() {
	if m == nil {
		return
	}
	m.lockFallbacks.Inc()
}
