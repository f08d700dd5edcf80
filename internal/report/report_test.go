package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carpnav/internal/instance"
	"carpnav/internal/spf"
)

func TestBuildScenario(t *testing.T) {
	g := &instance.Graph{
		NumVertices:   4,
		Capacity:      10,
		Nodes:         []instance.NodeService{{Vertex: 3, Demand: 4, ServiceCost: 1}},
		Edges:         []instance.Link{{From: 1, To: 2, Cost: 2, Demand: 5, ServiceCost: 3}},
		OptionalEdges: []instance.Link{{From: 2, To: 3, Cost: 1}, {From: 1, To: 3, Cost: 4}},
	}
	m, err := spf.FromGraph(g)
	require.NoError(t, err)

	r := Build(g, m)
	assert.Equal(t, 4, r.Vertices)
	assert.Equal(t, 3, r.Edges)
	assert.Equal(t, 0, r.Arcs)
	assert.Equal(t, 1, r.RequiredVertices)
	assert.Equal(t, 1, r.RequiredEdges)
	assert.Equal(t, 0, r.RequiredArcs)
	assert.False(t, r.Directed)
	// vertex 4 is isolated
	assert.Equal(t, 0, r.MinDegree)
	assert.Equal(t, 2, r.MaxDegree)
	assert.InDelta(t, 0.5, r.Density, 1e-9)
	assert.Equal(t, int64(3), r.Diameter)
	assert.InDelta(t, 2.0, r.MeanPathLength, 1e-9)
	// only 1→3 detours through 2
	assert.Equal(t, []int{0, 0, 1, 0, 0}, r.Betweenness)
}

func TestBuildDirected(t *testing.T) {
	g := &instance.Graph{
		NumVertices:  3,
		Arcs:         []instance.Link{{From: 1, To: 2, Cost: 1, Demand: 1}},
		OptionalArcs: []instance.Link{{From: 2, To: 3, Cost: 1}, {From: 3, To: 1, Cost: 1}},
	}
	m, err := spf.FromGraph(g)
	require.NoError(t, err)

	r := Build(g, m)
	assert.True(t, r.Directed)
	assert.Equal(t, 3, r.Arcs)
	assert.Equal(t, 1, r.RequiredArcs)
	assert.Equal(t, 2, r.MinDegree)
	assert.Equal(t, 2, r.MaxDegree)
	assert.InDelta(t, 0.5, r.Density, 1e-9)
	assert.Equal(t, int64(2), r.Diameter)
	assert.InDelta(t, 1.5, r.MeanPathLength, 1e-9)
	// every unordered pair u<v routed u→v: 1→3 goes through 2
	assert.Equal(t, []int{0, 0, 1, 0}, r.Betweenness)
}

func TestBuildEmpty(t *testing.T) {
	g := &instance.Graph{}
	m, err := spf.FromGraph(g)
	require.NoError(t, err)

	r := Build(g, m)
	assert.Equal(t, Report{Betweenness: []int{0}}, r)
}
