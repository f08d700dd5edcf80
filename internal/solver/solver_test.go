package solver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpnav/internal/instance"
	"carpnav/internal/pathscan"
	"carpnav/internal/spf"
)

func scenarioGraph() *instance.Graph {
	return &instance.Graph{
		Name:          "scenario",
		NumVertices:   4,
		Capacity:      10,
		Nodes:         []instance.NodeService{{Vertex: 3, Demand: 4, ServiceCost: 1}},
		Edges:         []instance.Link{{From: 1, To: 2, Cost: 2, Demand: 5, ServiceCost: 3}},
		OptionalEdges: []instance.Link{{From: 2, To: 3, Cost: 1}, {From: 1, To: 3, Cost: 4}},
	}
}

func TestSolveScenario(t *testing.T) {
	p, err := NewProblem(scenarioGraph(), 2)
	require.NoError(t, err)

	s := &Solver{Budget: 10 * time.Second}
	res, err := s.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Solution.TotalCost())
	assert.Equal(t, 1, res.Solution.Len())
	assert.GreaterOrEqual(t, res.Total, res.Construct)
}

func TestSolveInfeasible(t *testing.T) {
	g := scenarioGraph()
	g.Nodes[0].Demand = 11
	p, err := NewProblem(g, 1)
	require.NoError(t, err)

	_, err = (&Solver{}).Solve(context.Background(), p)
	assert.ErrorIs(t, err, pathscan.ErrInfeasibleService)
	assert.Equal(t, "infeasible", Outcome(err))
}

func TestNewProblemRejectsInvalidGraph(t *testing.T) {
	g := scenarioGraph()
	g.Edges[0].To = 9
	_, err := NewProblem(g, 1)
	assert.ErrorIs(t, err, instance.ErrInvalidVertex)
	assert.Equal(t, "invalid", Outcome(err))
}

func TestMatricesComputedOnce(t *testing.T) {
	p, err := NewProblem(scenarioGraph(), 1)
	require.NoError(t, err)

	a, err := p.Matrices()
	require.NoError(t, err)
	b, err := p.Matrices()
	require.NoError(t, err)
	assert.Same(t, a, b)

	rep, err := p.Report()
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Vertices)
	assert.Equal(t, int64(3), rep.Diameter)
}

func TestSolveTimeBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	n := 400
	g := &instance.Graph{Name: "large", NumVertices: n, Capacity: 100}
	for v := 1; v < n; v++ {
		g.OptionalEdges = append(g.OptionalEdges, instance.Link{From: v, To: v + 1, Cost: int64(1 + rng.Intn(9))})
	}
	for range 2 * n {
		g.OptionalArcs = append(g.OptionalArcs, instance.Link{From: 1 + rng.Intn(n), To: 1 + rng.Intn(n), Cost: int64(rng.Intn(20))})
	}
	p, err := NewProblem(g, 1)
	require.NoError(t, err)

	// an already expired context leaves the computation no time at all
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = (&Solver{Budget: time.Minute}).Solve(ctx, p)
	assert.ErrorIs(t, err, ErrTimeBudget)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "timeout", Outcome(err))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", ErrTimeBudget), "timeout"},
		{pathscan.ErrUnreachableDepot, "unreachable"},
		{pathscan.ErrInfeasibleService, "infeasible"},
		{pathscan.ErrDegenerateCapacity, "infeasible"},
		{errors.Join(pathscan.ErrNoProgress, pathscan.ErrInfeasibleService), "infeasible"},
		{instance.ErrSyntax, "invalid"},
		{instance.ErrNegativeCost, "invalid"},
		{spf.ErrInvalidVertex, "invalid"},
		{spf.ErrNegativeCost, "invalid"},
		{spf.ErrCostOverflow, "invalid"},
		{instance.ErrCostOverflow, "invalid"},
		{errors.New("disk on fire"), "error"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Outcome(tc.err), "%v", tc.err)
	}
}
