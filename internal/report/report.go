// Package report derives descriptive statistics of a CARP graph.
package report

import (
	"carpnav/internal/instance"
	"carpnav/internal/spf"
)

// Report is a snapshot of graph statistics. Betweenness is indexed by
// vertex id (index 0 unused).
type Report struct {
	Vertices         int     `json:"vertices"`
	Edges            int     `json:"edges"`
	Arcs             int     `json:"arcs"`
	RequiredVertices int     `json:"requiredVertices"`
	RequiredEdges    int     `json:"requiredEdges"`
	RequiredArcs     int     `json:"requiredArcs"`
	MinDegree        int     `json:"minDegree"`
	MaxDegree        int     `json:"maxDegree"`
	Directed         bool    `json:"directed"`
	Density          float64 `json:"density"`
	Diameter         int64   `json:"diameter"`
	MeanPathLength   float64 `json:"meanPathLength"`
	Betweenness      []int   `json:"betweenness"`
}

// Build computes the report. m must have been computed over g.
func Build(g *instance.Graph, m *spf.Matrices) Report {
	n := g.NumVertices
	edges := g.TraversalEdges()
	arcs := g.TraversalArcs()
	r := Report{
		Vertices:         n,
		Edges:            len(edges),
		Arcs:             len(arcs),
		RequiredVertices: len(g.Nodes),
		RequiredEdges:    len(g.Edges),
		RequiredArcs:     len(g.Arcs),
		Directed:         len(arcs) > 0,
	}

	if n > 0 {
		degree := make([]int, n+1)
		for _, e := range edges {
			degree[e.From]++
			degree[e.To]++
		}
		for _, a := range arcs {
			degree[a.From]++
			degree[a.To]++
		}
		r.MinDegree, r.MaxDegree = degree[1], degree[1]
		for v := 2; v <= n; v++ {
			r.MinDegree = min(r.MinDegree, degree[v])
			r.MaxDegree = max(r.MaxDegree, degree[v])
		}
	}
	if n > 1 {
		r.Density = float64(2*len(edges)+len(arcs)) / float64(n*(n-1))
	}

	var sum, count int64
	m.Each(func(_, _ int, d int64) {
		r.Diameter = max(r.Diameter, d)
		sum += d
		count++
	})
	if count > 0 {
		r.MeanPathLength = float64(sum) / float64(count)
	}
	r.Betweenness = Betweenness(m)
	return r
}

// Betweenness counts, for every vertex, how many next-hop shortest paths
// between unordered pairs u < v pass through it as an intermediate vertex.
// The path from u to v is used for each pair.
func Betweenness(m *spf.Matrices) []int {
	n := m.Size()
	out := make([]int, n+1)
	for u := 1; u <= n; u++ {
		for v := u + 1; v <= n; v++ {
			p := m.NextHopPath(u, v)
			if len(p) < 3 {
				continue
			}
			for _, w := range p[1 : len(p)-1] {
				out[w]++
			}
		}
	}
	return out
}
