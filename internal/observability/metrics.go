package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trainlink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trainlink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trainlink",
			Subsystem: "ws",
			Name:      "connections_active",
			Help:      "Open training-session connections.",
		},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trainlink",
			Name:      "commands_total",
			Help:      "Session commands handled, by type and response status.",
		},
		[]string{"type", "status"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trainlink",
			Name:      "command_duration_seconds",
			Help:      "Session command handling duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)
	trainingJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trainlink",
			Name:      "training_jobs_total",
			Help:      "Training jobs started, by terminal outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, wsConnections, commands, commandDuration, trainingJobs)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func ConnectionOpened() {
	RegisterMetrics()
	wsConnections.Inc()
}

func ConnectionClosed() {
	RegisterMetrics()
	wsConnections.Dec()
}

func RecordCommand(commandType, status string, duration time.Duration) {
	RegisterMetrics()
	commands.WithLabelValues(commandType, status).Inc()
	commandDuration.WithLabelValues(commandType).Observe(duration.Seconds())
}

func RecordTrainingJob(outcome string) {
	RegisterMetrics()
	trainingJobs.WithLabelValues(outcome).Inc()
}
