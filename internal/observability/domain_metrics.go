package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportrunner_jobs_submitted_total",
			Help: "Total number of asynchronous jobs submitted.",
		},
	)
	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reportrunner_jobs_finished_total",
			Help: "Total number of jobs reaching a terminal status.",
		},
		[]string{"operation", "status"},
	)
	jobDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reportrunner_job_duration_seconds",
			Help:    "Wall-clock duration from job pickup to terminal status.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reportrunner_query_duration_seconds",
			Help:    "Warehouse query latency by operation.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	resultsSpilledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportrunner_results_spilled_total",
			Help: "Total number of results routed to object storage.",
		},
	)
	jobRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportrunner_job_retries_total",
			Help: "Total number of retryable-error retries across jobs.",
		},
	)
	sandboxRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reportrunner_sandbox_rejections_total",
			Help: "Total number of ad-hoc queries rejected by the sandbox.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		jobsSubmittedTotal,
		jobsFinishedTotal,
		jobDurationSeconds,
		queryDurationSeconds,
		resultsSpilledTotal,
		jobRetriesTotal,
		sandboxRejectionsTotal,
	)
}

func IncrementJobSubmitted() {
	jobsSubmittedTotal.Inc()
}

func ObserveJobFinished(operation, status string, elapsed time.Duration) {
	jobsFinishedTotal.WithLabelValues(operation, status).Inc()
	jobDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveQueryDuration(operation string, elapsed time.Duration) {
	queryDurationSeconds.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func IncrementResultSpilled() {
	resultsSpilledTotal.Inc()
}

func IncrementJobRetry() {
	jobRetriesTotal.Inc()
}

func IncrementSandboxRejection() {
	sandboxRejectionsTotal.Inc()
}
