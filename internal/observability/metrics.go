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
			Namespace: "hubu",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"hub", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hubu",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"hub", "method", "path", "status"},
	)
	componentEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubu",
			Subsystem: "hub",
			Name:      "component_events_total",
			Help:      "Components registered and unregistered on a hub.",
		},
		[]string{"hub", "event"},
	)
	serviceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubu",
			Subsystem: "registry",
			Name:      "service_events_total",
			Help:      "Service events fired by a hub registry.",
		},
		[]string{"hub", "type"},
	)
	registeredServices = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hubu",
			Subsystem: "registry",
			Name:      "services",
			Help:      "Services currently registered on a hub.",
		},
		[]string{"hub"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, componentEvents, serviceEvents, registeredServices)
	})
}

func RecordHTTPRequest(hubName, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(hubName, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(hubName, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordComponentEvent(hubName, event string) {
	RegisterMetrics()
	componentEvents.WithLabelValues(hubName, event).Inc()
}

func RecordServiceEvent(hubName, eventType string, registered int) {
	RegisterMetrics()
	serviceEvents.WithLabelValues(hubName, eventType).Inc()
	registeredServices.WithLabelValues(hubName).Set(float64(registered))
}

func SetRegisteredServices(hubName string, registered int) {
	RegisterMetrics()
	registeredServices.WithLabelValues(hubName).Set(float64(registered))
}
