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
			Namespace: "viewctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "viewctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	commandsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "viewctl",
			Subsystem: "queue",
			Name:      "commands_enqueued_total",
			Help:      "Commands submitted to the action queue by tier.",
		},
		[]string{"tier"},
	)
	commandOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "viewctl",
			Subsystem: "commands",
			Name:      "executed_total",
			Help:      "Terminal command outcomes by result.",
		},
		[]string{"result"},
	)
	commandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "viewctl",
			Subsystem: "commands",
			Name:      "execution_duration_seconds",
			Help:      "Command execution duration from dispatch to outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	sweepReleases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "viewctl",
			Subsystem: "queue",
			Name:      "sweep_releases_total",
			Help:      "Entries released from the queue by sweeps.",
		},
	)
	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "viewctl",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Commands currently waiting in the action queue.",
		},
	)
	bridgeConnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "viewctl",
			Subsystem: "bridge",
			Name:      "connects_total",
			Help:      "Viewer sessions established.",
		},
	)
	bridgeUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "viewctl",
			Subsystem: "bridge",
			Name:      "up",
			Help:      "Whether a viewer session is currently live.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			commandsEnqueued,
			commandOutcomes,
			commandDuration,
			sweepReleases,
			queueDepth,
			bridgeConnects,
			bridgeUp,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCommandEnqueued(tier string) {
	RegisterMetrics()
	commandsEnqueued.WithLabelValues(tier).Inc()
}

func RecordCommandOutcome(result string, duration time.Duration) {
	RegisterMetrics()
	commandOutcomes.WithLabelValues(result).Inc()
	commandDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func RecordSweep(released int) {
	RegisterMetrics()
	sweepReleases.Add(float64(released))
}

func SetQueueDepth(depth int) {
	RegisterMetrics()
	queueDepth.Set(float64(depth))
}

func RecordBridgeConnect() {
	RegisterMetrics()
	bridgeConnects.Inc()
}

func SetBridgeUp(up bool) {
	RegisterMetrics()
	if up {
		bridgeUp.Set(1)
		return
	}
	bridgeUp.Set(0)
}
