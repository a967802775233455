package tabsh

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// metrics tracks the worker. With a nil registerer the collectors work but
// are not exported.
type metrics struct {
	commands   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	queueDepth prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabsh_commands_total",
				Help: "Total number of executed commands",
			},
			[]string{"command", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabsh_command_duration_seconds",
				Help:    "Command execution time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tabsh_queue_depth",
				Help: "Number of commands waiting for the worker",
			},
		),
	}
}

func (m *metrics) observe(command string, err error, elapsed time.Duration) {
	status := statusSuccess
	if err != nil {
		status = statusFailure
	}
	m.commands.WithLabelValues(command, status).Inc()
	m.duration.WithLabelValues(command).Observe(elapsed.Seconds())
}
