package pathscan

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpnav/internal/instance"
	"carpnav/internal/spf"
)

func scenarioGraph() *instance.Graph {
	return &instance.Graph{
		NumVertices:   4,
		Capacity:      10,
		Depot:         1,
		Nodes:         []instance.NodeService{{Vertex: 3, Demand: 4, ServiceCost: 1}},
		Edges:         []instance.Link{{From: 1, To: 2, Cost: 2, Demand: 5, ServiceCost: 3}},
		OptionalEdges: []instance.Link{{From: 2, To: 3, Cost: 1}, {From: 1, To: 3, Cost: 4}},
	}
}

func build(t *testing.T, g *instance.Graph) (*Solution, error) {
	t.Helper()
	m, err := spf.FromGraph(g)
	require.NoError(t, err)
	return Build(g, m)
}

func TestScenarioSingleRoute(t *testing.T) {
	g := scenarioGraph()
	sol, err := build(t, g)
	require.NoError(t, err)
	require.Equal(t, 1, sol.Len())

	r := sol.Routes[0]
	// serve edge (1,2) for 2+3, move to 3 for 1, serve node 3 for 1, return
	// along the shortest path 3→2→1 for 3
	assert.Equal(t, []int{1, 2, 3, 2, 1}, r.Vertices)
	assert.Equal(t, int64(10), r.Cost)
	assert.Equal(t, int64(9), r.Demand)
	// node services get the lowest ids
	assert.Equal(t, []int{2, 1}, r.Services)
	assert.Equal(t, []Visit{
		{Kind: VisitDepot},
		{Kind: VisitService, ServiceID: 2, ServiceKind: instance.KindEdge, From: 1, To: 2},
		{Kind: VisitService, ServiceID: 1, ServiceKind: instance.KindNode, From: 3, To: 3},
		{Kind: VisitDepot},
	}, r.Visits)
	assert.Equal(t, int64(10), sol.TotalCost())
	assert.Equal(t, int64(9), sol.TotalDemand())
	require.NoError(t, sol.Validate(g))
}

func TestCapacitySplitsRoutes(t *testing.T) {
	g := scenarioGraph()
	g.Capacity = 5
	sol, err := build(t, g)
	require.NoError(t, err)
	require.Equal(t, 2, sol.Len())
	for _, r := range sol.Routes {
		assert.LessOrEqual(t, r.Demand, g.Capacity)
	}
	// first route takes the edge at the depot, the second the node
	assert.Equal(t, []int{2}, sol.Routes[0].Services)
	assert.Equal(t, []int{1, 2, 1}, sol.Routes[0].Vertices)
	assert.Equal(t, int64(5+2), sol.Routes[0].Cost)
	assert.Equal(t, []int{1}, sol.Routes[1].Services)
	assert.Equal(t, int64(3+1+3), sol.Routes[1].Cost)
	require.NoError(t, sol.Validate(g))
}

func TestInfeasibleDemand(t *testing.T) {
	g := scenarioGraph()
	g.Edges[0].Demand = 12
	sol, err := build(t, g)
	assert.ErrorIs(t, err, ErrInfeasibleService)
	assert.Nil(t, sol)
}

func TestZeroCapacity(t *testing.T) {
	g := scenarioGraph()
	g.Capacity = 0
	_, err := build(t, g)
	assert.ErrorIs(t, err, ErrInfeasibleService)
	assert.ErrorIs(t, err, ErrDegenerateCapacity)

	// zero demand services still fit
	g.Nodes[0].Demand = 0
	g.Edges[0].Demand = 0
	sol, err := build(t, g)
	require.NoError(t, err)
	assert.Equal(t, 1, sol.Len())
}

func TestNegativeCapacity(t *testing.T) {
	g := scenarioGraph()
	g.Capacity = -1
	m, err := spf.FromGraph(g)
	require.NoError(t, err)
	_, err = Build(g, m)
	assert.ErrorIs(t, err, ErrDegenerateCapacity)
}

func TestUnreachableDepot(t *testing.T) {
	g := &instance.Graph{
		NumVertices:   4,
		Capacity:      10,
		Depot:         1,
		Edges:         []instance.Link{{From: 3, To: 4, Cost: 2, Demand: 1}},
		OptionalEdges: []instance.Link{{From: 1, To: 2, Cost: 5}},
	}
	sol, err := build(t, g)
	assert.ErrorIs(t, err, ErrUnreachableDepot)
	assert.Nil(t, sol)
}

func TestArcWithoutWayBack(t *testing.T) {
	// the arc 2→3 can be reached but 3 never leads back to the depot
	g := &instance.Graph{
		NumVertices:   3,
		Capacity:      10,
		Arcs:          []instance.Link{{From: 2, To: 3, Cost: 1, Demand: 1}},
		OptionalEdges: []instance.Link{{From: 1, To: 2, Cost: 1}},
	}
	_, err := build(t, g)
	assert.ErrorIs(t, err, ErrUnreachableDepot)
}

func TestArcEnteredAtOrigin(t *testing.T) {
	g := &instance.Graph{
		NumVertices:  3,
		Capacity:     10,
		Arcs:         []instance.Link{{From: 2, To: 1, Cost: 4, Demand: 1, ServiceCost: 1}},
		OptionalArcs: []instance.Link{{From: 1, To: 3, Cost: 1}, {From: 3, To: 2, Cost: 1}},
	}
	sol, err := build(t, g)
	require.NoError(t, err)
	require.Equal(t, 1, sol.Len())
	// 1→3→2 to the origin, then the arc itself lands on the depot
	assert.Equal(t, []int{1, 3, 2, 1}, sol.Routes[0].Vertices)
	assert.Equal(t, int64(2+4+1), sol.Routes[0].Cost)
}

func TestEdgeTieGoesToDeclaredOrigin(t *testing.T) {
	// both ends of the required edge are at distance 1 from the depot
	g := &instance.Graph{
		NumVertices:   3,
		Capacity:      10,
		Edges:         []instance.Link{{From: 3, To: 2, Cost: 5, Demand: 1}},
		OptionalEdges: []instance.Link{{From: 1, To: 2, Cost: 1}, {From: 1, To: 3, Cost: 1}},
	}
	sol, err := build(t, g)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2, 1}, sol.Routes[0].Vertices)
}

func TestNoServices(t *testing.T) {
	g := &instance.Graph{NumVertices: 2, Capacity: 3}
	sol, err := build(t, g)
	require.NoError(t, err)
	assert.Equal(t, 0, sol.Len())
	assert.Equal(t, int64(0), sol.TotalCost())
}

func TestMatrixMismatch(t *testing.T) {
	g := scenarioGraph()
	m, err := spf.Compute(3, nil, nil)
	require.NoError(t, err)
	_, err = Build(g, m)
	assert.ErrorIs(t, err, ErrMatrixMismatch)
}

func TestDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	g := randomInstance(rng, 30)
	a, err := build(t, g)
	require.NoError(t, err)
	b, err := build(t, g)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// randomInstance builds a strongly connected mixed instance: a bidirectional
// ring of optional edges plus random required elements.
func randomInstance(rng *rand.Rand, n int) *instance.Graph {
	g := &instance.Graph{NumVertices: n, Capacity: int64(10 + rng.Intn(20)), Depot: 1 + rng.Intn(n)}
	for v := 1; v <= n; v++ {
		g.OptionalEdges = append(g.OptionalEdges, instance.Link{From: v, To: v%n + 1, Cost: int64(1 + rng.Intn(9))})
	}
	for range n {
		u, v := 1+rng.Intn(n), 1+rng.Intn(n)
		demand := int64(rng.Intn(int(g.Capacity) + 1))
		l := instance.Link{From: u, To: v, Cost: int64(rng.Intn(10)), Demand: demand, ServiceCost: int64(rng.Intn(3))}
		switch rng.Intn(3) {
		case 0:
			g.Nodes = append(g.Nodes, instance.NodeService{Vertex: u, Demand: demand, ServiceCost: l.ServiceCost})
		case 1:
			g.Edges = append(g.Edges, l)
		default:
			g.Arcs = append(g.Arcs, l)
		}
	}
	return g
}

// routeCost recomputes a route's cost from its service order: the shortest
// approach to the closer entry, the service charge, and the way home.
func routeCost(m *spf.Matrices, byID map[int]instance.Service, depot int, r Route) int64 {
	var cost int64
	pos := depot
	for _, id := range r.Services {
		svc := byID[id]
		entry := svc.Entries()[0]
		for _, e := range svc.Entries()[1:] {
			if m.Distance(pos, e) < m.Distance(pos, entry) {
				entry = e
			}
		}
		cost += m.Distance(pos, entry) + svc.Charge()
		pos = svc.Exit(entry)
	}
	return cost + m.Distance(pos, depot)
}

func TestRandomInstancesAreValid(t *testing.T) {
	rng := rand.New(rand.NewSource(2024))
	for iter := 0; iter < 30; iter++ {
		g := randomInstance(rng, 3+rng.Intn(25))
		m, err := spf.FromGraph(g)
		require.NoError(t, err)
		sol, err := Build(g, m)
		require.NoError(t, err, "iteration %d", iter)
		require.NoError(t, sol.Validate(g), "iteration %d", iter)

		depot := g.DepotVertex()
		byID := map[int]instance.Service{}
		for _, svc := range g.Services() {
			byID[svc.ID] = svc
		}
		for ri, r := range sol.Routes {
			assert.NotEmpty(t, r.Services, "route %d is empty", ri)
			// every hop of the vertex walk follows a direct link
			_, ok := m.PathCost(r.Vertices)
			assert.True(t, ok, "route %d walks a missing link: %v", ri, r.Vertices)
			assert.Equal(t, routeCost(m, byID, depot, r), r.Cost, "route %d cost", ri)
			assert.Equal(t, depot, r.Vertices[0])
		}
	}
}

func TestValidateCatchesBrokenSolutions(t *testing.T) {
	g := scenarioGraph()
	good := func() *Solution {
		sol, err := build(t, g)
		require.NoError(t, err)
		return sol
	}

	sol := good()
	sol.Routes[0].Services = sol.Routes[0].Services[:1]
	assert.ErrorIs(t, sol.Validate(g), ErrInvalidSolution, "load mismatch")

	sol = good()
	sol.Routes = append(sol.Routes, sol.Routes[0])
	assert.ErrorIs(t, sol.Validate(g), ErrInvalidSolution, "duplicate service")

	sol = good()
	sol.Routes[0].Vertices = sol.Routes[0].Vertices[1:]
	assert.ErrorIs(t, sol.Validate(g), ErrInvalidSolution, "not starting at depot")

	sol = good()
	sol.Routes[0].Visits = sol.Routes[0].Visits[:len(sol.Routes[0].Visits)-1]
	assert.ErrorIs(t, sol.Validate(g), ErrInvalidSolution, "visit log not closed")

	sol = good()
	sol.Routes[0].Demand = 11
	assert.ErrorIs(t, sol.Validate(g), ErrInvalidSolution, "over capacity")

	sol = good()
	sol.Routes = nil
	assert.ErrorIs(t, sol.Validate(g), ErrInvalidSolution, "nothing served")
}
