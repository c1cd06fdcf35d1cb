package services

import "github.com/prometheus/client_golang/prometheus"

var (
	enrollmentEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "challenge_enrollment_events_total",
			Help: "Enrollment lifecycle transitions by event",
		},
		[]string{"event"},
	)
	ritualsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "challenge_rituals_completed_total",
			Help: "Ritual completions appended to the ledger",
		},
	)
	pushesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_notifications_total",
			Help: "Push notification dispatch outcomes",
		},
		[]string{"outcome"},
	)
)

// RegisterMetrics registers the service metrics. Call once from main.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(enrollmentEvents, ritualsCompleted, pushesSent)
}
