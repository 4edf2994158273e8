// Package metrics provides Prometheus metrics for reconciliation runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished runs by status.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "announcer",
			Name:      "runs_total",
			Help:      "Total number of reconciliation runs",
		},
		[]string{"status"},
	)

	// RunDuration measures run duration.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "announcer",
			Name:      "run_duration_seconds",
			Help:      "Duration of reconciliation runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// AnnouncementsTotal counts per-announcement outcomes.
	AnnouncementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "announcer",
			Name:      "announcements_total",
			Help:      "Announcements processed, by action taken or failing stage",
		},
		[]string{"outcome"},
	)

	// RejectedRunsTotal counts triggers refused because a run was active.
	RejectedRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "announcer",
			Name:      "rejected_runs_total",
			Help:      "Reconciliation triggers rejected while a run was in progress",
		},
	)
)

func RecordRun(status string, seconds float64) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(seconds)
}

func RecordAnnouncement(outcome string) {
	AnnouncementsTotal.WithLabelValues(outcome).Inc()
}

func RecordRejectedRun() {
	RejectedRunsTotal.Inc()
}
