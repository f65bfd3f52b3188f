package supervisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks task invocations.
//
// Metrics:
//   - flint_task_runs_total: invocations by task and outcome
//   - flint_task_duration_seconds: wall-clock time per task
//   - flint_tasks_abandoned: timed-out in-process tasks still running
type Metrics struct {
	runs      *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	abandoned prometheus.Gauge
}

// NewMetrics creates and registers task metrics with the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flint",
				Name:      "task_runs_total",
				Help:      "Task invocations by task and outcome",
			},
			[]string{"task", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flint",
				Name:      "task_duration_seconds",
				Help:      "Task wall-clock duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
			},
			[]string{"task"},
		),
		abandoned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "flint",
			Name:      "tasks_abandoned",
			Help:      "Timed-out in-process tasks that have not returned yet",
		}),
	}
	reg.MustRegister(m.runs, m.duration, m.abandoned)
	return m
}

func (m *Metrics) observe(task, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(task, outcome).Inc()
	m.duration.WithLabelValues(task).Observe(elapsed.Seconds())
}

func (m *Metrics) setAbandoned(n int64) {
	if m == nil {
		return
	}
	m.abandoned.Set(float64(n))
}
