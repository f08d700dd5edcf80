// Package solver ties the CARP pieces together: it owns the lazily computed
// shortest-path matrices of a problem, runs path-scanning under a wall-clock
// budget and records timings and metrics.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"carpnav/internal/instance"
	"carpnav/internal/metrics"
	"carpnav/internal/pathscan"
	"carpnav/internal/report"
	"carpnav/internal/spf"
)

// ErrTimeBudget is returned when a solve does not finish within its budget.
var ErrTimeBudget = errors.New("solver: time budget exceeded")

// Problem is an immutable graph plus its shortest-path matrices, computed
// once on first use and shared read-only afterwards.
type Problem struct {
	Graph *instance.Graph

	workers int
	once    sync.Once
	m       *spf.Matrices
	err     error
	elapsed time.Duration
}

// NewProblem validates g. workers is forwarded to spf.WithWorkers.
func NewProblem(g *instance.Graph, workers int) (*Problem, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &Problem{Graph: g, workers: workers}, nil
}

// Matrices returns the all-pairs result, computing it on the first call.
func (p *Problem) Matrices() (*spf.Matrices, error) {
	p.once.Do(func() {
		start := time.Now()
		p.m, p.err = spf.FromGraph(p.Graph, spf.WithWorkers(p.workers))
		p.elapsed = time.Since(start)
		metrics.ShortestPathDuration.Observe(p.elapsed.Seconds())
	})
	return p.m, p.err
}

// Result is one solved instance.
type Result struct {
	Solution *pathscan.Solution
	// ShortestPath is the time spent in the all-pairs computation, zero when
	// the matrices were already cached.
	ShortestPath time.Duration
	// Construct is the time spent in route construction.
	Construct time.Duration
	// Total covers the whole Solve call.
	Total time.Duration
}

// Solver runs path-scanning over problems.
type Solver struct {
	// Budget bounds one Solve call; zero means unbounded.
	Budget time.Duration
}

// Solve computes (or reuses) the matrices of p and builds a solution. The
// core is not interruptible: when the budget expires Solve returns
// ErrTimeBudget and the abandoned computation finishes in the background.
func (s *Solver) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if s.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Budget)
		defer cancel()
	}
	start := time.Now()
	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.run(p)
		done <- outcome{res, err}
	}()

	var res *Result
	var err error
	select {
	case o := <-done:
		res, err = o.res, o.err
	case <-ctx.Done():
		err = fmt.Errorf("%s after %s: %w", p.Graph.Name, time.Since(start).Round(time.Millisecond), errors.Join(ErrTimeBudget, ctx.Err()))
	}
	metrics.SolveRuns.WithLabelValues(Outcome(err)).Inc()
	if err != nil {
		log.Warn().Err(err).Str("instance", p.Graph.Name).Str("outcome", Outcome(err)).Msg("solve failed")
		return nil, err
	}
	res.Total = time.Since(start)
	metrics.RoutesPerSolution.Observe(float64(res.Solution.Len()))
	log.Info().
		Str("instance", p.Graph.Name).
		Int("routes", res.Solution.Len()).
		Int64("cost", res.Solution.TotalCost()).
		Dur("shortest_path", res.ShortestPath).
		Dur("construct", res.Construct).
		Msg("solved")
	return res, nil
}

func (s *Solver) run(p *Problem) (*Result, error) {
	start := time.Now()
	m, err := p.Matrices()
	if err != nil {
		return nil, err
	}
	res := &Result{ShortestPath: time.Since(start)}
	cstart := time.Now()
	sol, err := pathscan.Build(p.Graph, m)
	res.Construct = time.Since(cstart)
	metrics.ConstructDuration.Observe(res.Construct.Seconds())
	if err != nil {
		return nil, err
	}
	res.Solution = sol
	return res, nil
}

// Report builds descriptive statistics for p, reusing its matrices.
func (p *Problem) Report() (report.Report, error) {
	m, err := p.Matrices()
	if err != nil {
		return report.Report{}, err
	}
	return report.Build(p.Graph, m), nil
}

// Outcome classifies err for metrics and API status mapping.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeBudget):
		return "timeout"
	case errors.Is(err, pathscan.ErrUnreachableDepot):
		return "unreachable"
	case errors.Is(err, pathscan.ErrInfeasibleService), errors.Is(err, pathscan.ErrDegenerateCapacity), errors.Is(err, pathscan.ErrNoProgress):
		return "infeasible"
	case errors.Is(err, instance.ErrInvalidVertex), errors.Is(err, instance.ErrNegativeCost), errors.Is(err, instance.ErrSyntax),
		errors.Is(err, instance.ErrCostOverflow), errors.Is(err, spf.ErrInvalidVertex), errors.Is(err, spf.ErrNegativeCost),
		errors.Is(err, spf.ErrCostOverflow):
		return "invalid"
	default:
		return "error"
	}
}
