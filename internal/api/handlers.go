package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"carpnav/internal/metrics"
	"carpnav/internal/model"
	"carpnav/internal/solfile"
	"carpnav/internal/solver"
)

const heartbeatEvery = 15 * time.Second

// SolveHandler handles POST /v1/solve
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.Server.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes)
	}
	req, err := s.decodeSolveRequest(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	g, err := s.graphFor(req)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	if limit := s.cfg.Solver.MaxVertices; limit > 0 && g.NumVertices > limit {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Instance too large",
			fmt.Sprintf("%d vertices exceeds the limit of %d", g.NumVertices, limit), r.URL.Path)
		return
	}
	p, err := solver.NewProblem(g, s.cfg.Solver.Workers)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}

	run := model.Run{
		Instance: g.Name,
		Vertices: g.NumVertices,
		Required: g.RequiredCount(),
		Capacity: g.Capacity,
		Depot:    g.DepotVertex(),
	}
	// the run is stored even when the client has gone away
	ctx := context.WithoutCancel(r.Context())

	res, err := s.Solver.Solve(r.Context(), p)
	if err != nil {
		run.Status = model.StatusFailed
		run.Outcome = solver.Outcome(err)
		run.Error = err.Error()
		saved, serr := s.Store.CreateRun(ctx, run)
		if serr != nil {
			log.Error().Err(serr).Str("instance", g.Name).Msg("store failed run")
		} else {
			s.publish(model.Event{Type: EventRunFailed, RunID: saved.ID, Instance: g.Name,
				Payload: map[string]any{"outcome": run.Outcome, "error": run.Error}})
		}
		writeError(w, err, r.URL.Path)
		return
	}

	sol := res.Solution
	run.Status = model.StatusSolved
	run.Outcome = solver.Outcome(nil)
	run.TotalCost = sol.TotalCost()
	run.TotalDemand = sol.TotalDemand()
	run.RouteCount = sol.Len()
	run.TotalNS = res.Total.Nanoseconds()
	run.SolveNS = res.Construct.Nanoseconds()
	run.Solution = sol
	if req.Report {
		rep, err := p.Report()
		if err != nil {
			writeError(w, err, r.URL.Path)
			return
		}
		run.Report = &rep
	}
	saved, err := s.Store.CreateRun(ctx, run)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Store run failed", err.Error(), r.URL.Path)
		return
	}
	for i, rt := range sol.Routes {
		s.publish(model.Event{Type: EventRoutePlanned, RunID: saved.ID, Instance: g.Name, Payload: map[string]any{
			"route":    i + 1,
			"cost":     rt.Cost,
			"demand":   rt.Demand,
			"services": rt.Services,
		}})
	}
	s.publish(model.Event{Type: EventRunCompleted, RunID: saved.ID, Instance: g.Name, Payload: map[string]any{
		"totalCost": saved.TotalCost,
		"routes":    saved.RouteCount,
	}})
	log.Info().Str("run_id", saved.ID).Str("instance", g.Name).Int64("cost", saved.TotalCost).Msg("run stored")
	writeJSON(w, http.StatusOK, saved)
}

// publish fans evt out to the global topic and to its run's topic.
func (s *Server) publish(evt model.Event) {
	if evt.TS == "" {
		evt.TS = time.Now().UTC().Format(time.RFC3339Nano)
	}
	s.Broker.Publish(TopicAll, evt)
	if evt.RunID != "" {
		s.Broker.Publish(RunTopic(evt.RunID), evt)
	}
	metrics.EventsPublished.WithLabelValues(evt.Type).Inc()
}

// RunsIndexHandler handles GET /v1/runs
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/runs" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRuns(r.Context(), q.Get("instance"), q.Get("cursor"), limit)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, model.RunList{Items: items, NextCursor: next})
}

// RunByIDHandler handles GET /v1/runs/{id}, /v1/runs/{id}/solution,
// /v1/runs/{id}/report and /v1/runs/{id}/events/stream
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")
	if sub == "events/stream" {
		s.streamEvents(w, r, RunTopic(id))
		return
	}
	run, err := s.Store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err, r.URL.Path)
		return
	}
	switch sub {
	case "":
		writeJSON(w, http.StatusOK, run)
	case "solution":
		if run.Solution == nil {
			writeProblem(w, http.StatusNotFound, "No solution", "run "+run.Status+": "+run.Error, r.URL.Path)
			return
		}
		if wantsText(r) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			if err := solfile.Write(w, run.Solution, run.TotalNS, run.SolveNS); err != nil {
				log.Error().Err(err).Str("run_id", id).Msg("write solution")
			}
			return
		}
		writeJSON(w, http.StatusOK, run.Solution)
	case "report":
		if run.Report == nil {
			writeProblem(w, http.StatusNotFound, "No report", "solve with report=true to keep the graph report", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, run.Report)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
	}
}

func wantsText(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return f == "dat" || f == "text"
	}
	return strings.HasPrefix(r.Header.Get("Accept"), "text/plain")
}

// EventsStreamHandler handles GET /v1/events/stream (SSE). With ?runId= it
// only forwards that run's events.
func (s *Server) EventsStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	topic := TopicAll
	if id := r.URL.Query().Get("runId"); id != "" {
		topic = RunTopic(id)
	}
	s.streamEvents(w, r, topic)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"topic\":%q,\"ts\":%q}\n\n", topic, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
