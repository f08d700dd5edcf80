package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"carpnav/internal/metrics"
)

// Routes wires every endpoint behind the access log and metrics middleware.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()
	mux := http.NewServeMux()

	// Solving
	mux.HandleFunc("/v1/solve", s.limiter.Wrap(s.SolveHandler))

	// Runs
	mux.HandleFunc("/v1/runs", s.RunsIndexHandler)
	mux.HandleFunc("/v1/runs/", s.RunByIDHandler) // includes /solution, /report, /events/stream

	// Events
	mux.HandleFunc("/v1/events/stream", s.EventsStreamHandler)
	mux.HandleFunc("/v1/ws", s.WSHandler)

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)

	// Ops
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/info", s.DebugJSON)

	return observe(mux)
}
