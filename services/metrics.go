package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	streakOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetup_streak_outcomes_total",
			Help: "Meetups submitted to the streak engine by outcome",
		},
		[]string{"outcome"},
	)
	conflictChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meetup_conflict_checks_total",
			Help: "Conflict checks by result",
		},
		[]string{"result"},
	)
	gridCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "availability_grid_cache_total",
			Help: "Availability grid cache lookups",
		},
		[]string{"result"},
	)
	dispatchJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_jobs_total",
			Help: "Background jobs run by the dispatcher",
		},
		[]string{"job", "status"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_job_duration_seconds",
			Help:    "Duration of background jobs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	registerOnce sync.Once
)

// RegisterMetrics registers the domain collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(streakOutcomes, conflictChecks, gridCacheLookups, dispatchJobs, dispatchDuration)
	})
}
