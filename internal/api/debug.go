package api

import (
	"net/http"
	"time"

	"carpnav/internal/buildinfo"
)

// DebugJSON handles GET /debug/info. Secrets are reported only as presence.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"addr":               s.cfg.Server.Addr,
			"solver_workers":     s.cfg.Solver.Workers,
			"solver_time_budget": s.cfg.Solver.TimeBudget.String(),
			"max_vertices":       s.cfg.Solver.MaxVertices,
			"rate_rps":           s.cfg.Rate.RPS,
			"rate_burst":         s.cfg.Rate.Burst,
			"trusted_proxies":    s.cfg.Rate.TrustedProxies,
			"log_level":          s.cfg.Log.Level,
			"has_database_url":   s.cfg.Storage.DatabaseURL != "",
			"has_redis_url":      s.cfg.Broker.RedisURL != "",
			"webhook_urls":       len(s.cfg.Webhooks.URLs),
			"has_webhook_secret": s.cfg.Webhooks.Secret != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}
