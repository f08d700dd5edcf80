// Package instance holds the in-memory model of a CARP instance and its
// text loader.
package instance

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidVertex is returned when a service, link or the depot
	// references a vertex outside [1, NumVertices].
	ErrInvalidVertex = errors.New("instance: vertex out of range")
	// ErrNegativeCost is returned for negative costs or demands.
	ErrNegativeCost = errors.New("instance: negative cost or demand")
	// ErrDegenerateCapacity is returned when the vehicle capacity is negative.
	ErrDegenerateCapacity = errors.New("instance: degenerate capacity")
	// ErrCostOverflow is returned for a cost above MaxLinkCost.
	ErrCostOverflow = errors.New("instance: cost too large")
	// ErrSyntax is returned by the loader for malformed rows.
	ErrSyntax = errors.New("instance: syntax error")
)

// MaxLinkCost is the largest link or service cost accepted on n vertices.
// A shortest path sums at most n-1 links and the relaxation adds two such
// sums, so no finite candidate can wrap int64.
func MaxLinkCost(n int) int64 {
	return math.MaxInt64 / int64(2*max(n, 1))
}

// DefaultDepot is used when the instance does not name a depot.
const DefaultDepot = 1

// NodeService is a required vertex.
type NodeService struct {
	Vertex      int   `json:"vertex"`
	Demand      int64 `json:"demand"`
	ServiceCost int64 `json:"serviceCost"`
}

// Link is an edge or an arc. Optional links carry only Cost.
type Link struct {
	From        int   `json:"from"`
	To          int   `json:"to"`
	Cost        int64 `json:"cost"`
	Demand      int64 `json:"demand,omitempty"`
	ServiceCost int64 `json:"serviceCost,omitempty"`
}

// Graph is a mixed CARP graph. It is built once by the loader (or decoded
// from JSON) and must not be mutated after Validate succeeds.
type Graph struct {
	Name          string        `json:"name"`
	OptimalValue  int64         `json:"optimalValue,omitempty"`
	Vehicles      int           `json:"vehicles,omitempty"`
	Capacity      int64         `json:"capacity"`
	Depot         int           `json:"depot,omitempty"`
	NumVertices   int           `json:"numVertices"`
	Nodes         []NodeService `json:"nodes,omitempty"`
	Edges         []Link        `json:"edges,omitempty"`
	Arcs          []Link        `json:"arcs,omitempty"`
	OptionalEdges []Link        `json:"optionalEdges,omitempty"`
	OptionalArcs  []Link        `json:"optionalArcs,omitempty"`
}

// DepotVertex returns the depot, falling back to DefaultDepot.
func (g *Graph) DepotVertex() int {
	if g.Depot <= 0 {
		return DefaultDepot
	}
	return g.Depot
}

// TraversalEdges returns every undirected link, required first, in declared order.
func (g *Graph) TraversalEdges() []Link {
	out := make([]Link, 0, len(g.Edges)+len(g.OptionalEdges))
	out = append(out, g.Edges...)
	return append(out, g.OptionalEdges...)
}

// TraversalArcs returns every directed link, required first, in declared order.
func (g *Graph) TraversalArcs() []Link {
	out := make([]Link, 0, len(g.Arcs)+len(g.OptionalArcs))
	out = append(out, g.Arcs...)
	return append(out, g.OptionalArcs...)
}

// RequiredCount is the number of required elements.
func (g *Graph) RequiredCount() int {
	return len(g.Nodes) + len(g.Edges) + len(g.Arcs)
}

// TotalDemand sums the demand of every required element.
func (g *Graph) TotalDemand() int64 {
	var total int64
	for _, n := range g.Nodes {
		total += n.Demand
	}
	for _, l := range g.Edges {
		total += l.Demand
	}
	for _, l := range g.Arcs {
		total += l.Demand
	}
	return total
}

// Validate checks vertex references and sign constraints. It does not judge
// feasibility; that belongs to route construction.
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("nil graph: %w", ErrInvalidVertex)
	}
	if g.NumVertices < 0 {
		return fmt.Errorf("vertex count %d: %w", g.NumVertices, ErrInvalidVertex)
	}
	if g.Capacity < 0 {
		return fmt.Errorf("capacity %d: %w", g.Capacity, ErrDegenerateCapacity)
	}
	if g.NumVertices > 0 || g.Depot != 0 {
		if err := g.checkVertex("depot", g.DepotVertex()); err != nil {
			return err
		}
	}
	limit := MaxLinkCost(g.NumVertices)
	for _, n := range g.Nodes {
		if err := g.checkVertex("required node", n.Vertex); err != nil {
			return err
		}
		if n.Demand < 0 || n.ServiceCost < 0 {
			return fmt.Errorf("required node %d: %w", n.Vertex, ErrNegativeCost)
		}
		if n.ServiceCost > limit {
			return fmt.Errorf("required node %d service cost %d above %d: %w", n.Vertex, n.ServiceCost, limit, ErrCostOverflow)
		}
	}
	groups := []struct {
		name  string
		links []Link
	}{
		{"required edge", g.Edges},
		{"required arc", g.Arcs},
		{"edge", g.OptionalEdges},
		{"arc", g.OptionalArcs},
	}
	for _, grp := range groups {
		for _, l := range grp.links {
			if err := g.checkVertex(grp.name, l.From); err != nil {
				return err
			}
			if err := g.checkVertex(grp.name, l.To); err != nil {
				return err
			}
			if l.Cost < 0 || l.Demand < 0 || l.ServiceCost < 0 {
				return fmt.Errorf("%s (%d,%d): %w", grp.name, l.From, l.To, ErrNegativeCost)
			}
			if l.Cost > limit || l.ServiceCost > limit {
				return fmt.Errorf("%s (%d,%d) cost above %d: %w", grp.name, l.From, l.To, limit, ErrCostOverflow)
			}
		}
	}
	return nil
}

func (g *Graph) checkVertex(what string, v int) error {
	if v < 1 || v > g.NumVertices {
		return fmt.Errorf("%s references vertex %d outside [1,%d]: %w", what, v, g.NumVertices, ErrInvalidVertex)
	}
	return nil
}
