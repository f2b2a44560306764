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
			Namespace: "wireprobe",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wireprobe",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	probeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wireprobe",
			Subsystem: "probe",
			Name:      "runs_total",
			Help:      "Protocol probe runs by outcome.",
		},
		[]string{"module", "operation", "outcome"},
	)
	probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wireprobe",
			Subsystem: "probe",
			Name:      "duration_seconds",
			Help:      "Protocol probe wall time in seconds.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"module", "operation"},
	)
	probeObjects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wireprobe",
			Subsystem: "probe",
			Name:      "objects_total",
			Help:      "Information objects decoded by probes.",
		},
		[]string{"module", "operation"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, probeRuns, probeDuration, probeObjects)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordProbe counts one finished probe. outcome is "success", "failure" or
// an error kind.
func RecordProbe(module, operation, outcome string, duration time.Duration, objects int) {
	RegisterMetrics()
	probeRuns.WithLabelValues(module, operation, outcome).Inc()
	probeDuration.WithLabelValues(module, operation).Observe(duration.Seconds())
	if objects > 0 {
		probeObjects.WithLabelValues(module, operation).Add(float64(objects))
	}
}
