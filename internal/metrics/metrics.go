package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	registrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stiralka",
			Name:      "registrations_total",
			Help:      "Count of successful nickname registrations.",
		},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stiralka",
			Name:      "bookings_total",
			Help:      "Count of booking attempts by outcome.",
		},
		[]string{"outcome"},
	)

	weeklyResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stiralka",
			Name:      "weekly_resets_total",
			Help:      "Count of weekly schedule resets performed.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(registrations, bookings, weeklyResets)
	})
}

func IncRegistration() {
	registrations.Inc()
}

func IncBooking(outcome string) {
	bookings.WithLabelValues(outcome).Inc()
}

func IncWeeklyReset() {
	weeklyResets.Inc()
}
