package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SolveRuns counts solver invocations by outcome
	SolveRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carp_solve_runs_total", Help: "Solver runs by outcome."},
		[]string{"outcome"},
	)
	// ShortestPathDuration tracks all-pairs shortest path computation time in seconds
	ShortestPathDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "carp_shortest_path_seconds", Help: "All-pairs shortest path computation time.", Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10)},
	)
	// ConstructDuration tracks route construction time in seconds
	ConstructDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "carp_construct_seconds", Help: "Path-scanning route construction time.", Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10)},
	)
	// RoutesPerSolution records how many routes each solution needed
	RoutesPerSolution = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "carp_routes_per_solution", Help: "Routes per solution.", Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55}},
	)
	// EventsPublished counts broker events by type
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carp_events_published_total", Help: "Events published to the broker by type."},
		[]string{"type"},
	)
	// WebhookDeliveries counts webhook attempts by result
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "carp_webhook_deliveries_total", Help: "Webhook delivery attempts by result."},
		[]string{"result"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SolveRuns)
		Registry.MustRegister(ShortestPathDuration)
		Registry.MustRegister(ConstructDuration)
		Registry.MustRegister(RoutesPerSolution)
		Registry.MustRegister(EventsPublished)
		Registry.MustRegister(WebhookDeliveries)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
