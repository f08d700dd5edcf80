package pathscan

import (
	"errors"
	"fmt"

	"carpnav/internal/instance"
)

// ErrInvalidSolution is returned by Validate when an invariant is broken.
var ErrInvalidSolution = errors.New("pathscan: invalid solution")

// VisitKind tags a visit record.
type VisitKind string

const (
	VisitDepot   VisitKind = "D"
	VisitService VisitKind = "S"
)

// Visit is one entry of a route's visit log. Service visits carry the
// assigned id and the element's endpoints in declared order; for a node
// both endpoints equal the node.
type Visit struct {
	Kind        VisitKind     `json:"kind"`
	ServiceID   int           `json:"serviceId,omitempty"`
	ServiceKind instance.Kind `json:"serviceKind,omitempty"`
	From        int           `json:"from,omitempty"`
	To          int           `json:"to,omitempty"`
}

// Route is one vehicle tour from the depot back to the depot.
type Route struct {
	Vertices []int   `json:"vertices"`
	Services []int   `json:"services"`
	Visits   []Visit `json:"visits"`
	Demand   int64   `json:"demand"`
	Cost     int64   `json:"cost"`
}

// Solution is an ordered list of routes.
type Solution struct {
	Depot    int     `json:"depot"`
	Capacity int64   `json:"capacity"`
	Routes   []Route `json:"routes"`
}

// Len is the number of routes.
func (s *Solution) Len() int { return len(s.Routes) }

// TotalCost sums the route costs.
func (s *Solution) TotalCost() int64 {
	var total int64
	for _, r := range s.Routes {
		total += r.Cost
	}
	return total
}

// TotalDemand sums the route loads.
func (s *Solution) TotalDemand() int64 {
	var total int64
	for _, r := range s.Routes {
		total += r.Demand
	}
	return total
}

// Validate checks the structural invariants against g: every required
// element is served exactly once, no route exceeds capacity, route loads
// match their services, and every route and visit log is bracketed by the
// depot.
func (s *Solution) Validate(g *instance.Graph) error {
	services := g.Services()
	byID := make(map[int]instance.Service, len(services))
	for _, svc := range services {
		byID[svc.ID] = svc
	}
	depot := g.DepotVertex()
	seen := make(map[int]int, len(services))
	for ri, r := range s.Routes {
		if len(r.Vertices) == 0 || r.Vertices[0] != depot || r.Vertices[len(r.Vertices)-1] != depot {
			return fmt.Errorf("route %d does not start and end at depot %d: %w", ri+1, depot, ErrInvalidSolution)
		}
		if len(r.Visits) < 2 || r.Visits[0].Kind != VisitDepot || r.Visits[len(r.Visits)-1].Kind != VisitDepot {
			return fmt.Errorf("route %d visit log not bracketed by depot markers: %w", ri+1, ErrInvalidSolution)
		}
		if r.Demand > g.Capacity {
			return fmt.Errorf("route %d demand %d exceeds capacity %d: %w", ri+1, r.Demand, g.Capacity, ErrInvalidSolution)
		}
		var load int64
		for _, id := range r.Services {
			svc, ok := byID[id]
			if !ok {
				return fmt.Errorf("route %d serves unknown id %d: %w", ri+1, id, ErrInvalidSolution)
			}
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("service %d served by routes %d and %d: %w", id, prev, ri+1, ErrInvalidSolution)
			}
			seen[id] = ri + 1
			load += svc.Demand
		}
		if load != r.Demand {
			return fmt.Errorf("route %d reports demand %d, services sum to %d: %w", ri+1, r.Demand, load, ErrInvalidSolution)
		}
	}
	if len(seen) != len(services) {
		for _, svc := range services {
			if _, ok := seen[svc.ID]; !ok {
				return fmt.Errorf("service %s never served: %w", svc, ErrInvalidSolution)
			}
		}
	}
	return nil
}
