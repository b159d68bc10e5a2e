package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "courtbook",
			Name:      "bookings_total",
			Help:      "Booking attempts by result.",
		},
		[]string{"result"},
	)

	slotsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "courtbook",
			Name:      "slots_generated_total",
			Help:      "Slots created by the generator.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, slotsGenerated)
	})
}

// IncHTTP increments the counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncBooking counts one booking attempt outcome (created, conflict, error).
func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

// AddSlotsGenerated counts slots emitted by a regeneration run.
func AddSlotsGenerated(n int) {
	if n > 0 {
		slotsGenerated.Add(float64(n))
	}
}
