package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ggufctl",
			Subsystem: "pipeline",
			Name:      "jobs_total",
			Help:      "Total pipeline jobs by terminal state",
		},
		[]string{"state"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ggufctl",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
		[]string{"stage"},
	)

	stageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ggufctl",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Total stage failures",
		},
		[]string{"stage"},
	)

	jobsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ggufctl",
			Subsystem: "pipeline",
			Name:      "jobs_active",
			Help:      "Jobs currently executing",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, stageDuration, stageFailures, jobsActive)
}

// observeStage times one stage execution.
func observeStage(stage string, start time.Time, err error) {
	stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		stageFailures.WithLabelValues(stage).Inc()
	}
}
