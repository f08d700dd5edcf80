// Package pathscan builds CARP routes with the path-scanning construction
// heuristic: each route repeatedly moves to the nearest pending service that
// still fits the vehicle, then returns to the depot.
package pathscan

import (
	"errors"
	"fmt"
	"sort"

	"carpnav/internal/instance"
	"carpnav/internal/spf"
)

var (
	// ErrDegenerateCapacity is returned for a negative capacity, or wrapped
	// together with ErrInfeasibleService when capacity is zero and some
	// service has positive demand.
	ErrDegenerateCapacity = instance.ErrDegenerateCapacity
	// ErrInfeasibleService is returned when a service's demand exceeds the
	// vehicle capacity.
	ErrInfeasibleService = errors.New("pathscan: service demand exceeds capacity")
	// ErrUnreachableDepot is returned when a service cannot be reached from
	// the depot or cannot return to it.
	ErrUnreachableDepot = errors.New("pathscan: service unreachable from depot")
	// ErrNoProgress is returned if a route closes without serving anything
	// while services remain pending.
	ErrNoProgress = errors.New("pathscan: route construction made no progress")
	// ErrMatrixMismatch is returned when the matrices were computed for a
	// different vertex count.
	ErrMatrixMismatch = errors.New("pathscan: distance matrix does not match graph")
)

// Build constructs a solution covering every required element of g using the
// precomputed shortest paths m. It never recomputes distances.
func Build(g *instance.Graph, m *spf.Matrices) (*Solution, error) {
	if m.Size() != g.NumVertices {
		return nil, fmt.Errorf("matrix size %d, graph has %d vertices: %w", m.Size(), g.NumVertices, ErrMatrixMismatch)
	}
	services := g.Services()
	depot := g.DepotVertex()
	if err := preflight(g, m, services); err != nil {
		return nil, err
	}

	p := newPool(services)
	sol := &Solution{Depot: depot, Capacity: g.Capacity}
	for p.len() > 0 {
		r, err := buildRoute(m, p, depot, g.Capacity)
		if err != nil {
			return nil, err
		}
		if len(r.Services) == 0 {
			return nil, fmt.Errorf("%d services pending after route %d: %w", p.len(), len(sol.Routes)+1, errors.Join(ErrNoProgress, ErrInfeasibleService))
		}
		sol.Routes = append(sol.Routes, r)
	}
	return sol, nil
}

// preflight rejects instances on which no route could ever carry some
// service, so that the construction loop always makes progress.
func preflight(g *instance.Graph, m *spf.Matrices, services []instance.Service) error {
	if g.Capacity < 0 {
		return fmt.Errorf("capacity %d: %w", g.Capacity, ErrDegenerateCapacity)
	}
	depot := g.DepotVertex()
	for _, s := range services {
		if s.Demand > g.Capacity {
			if g.Capacity == 0 {
				return fmt.Errorf("service %s demand %d, capacity 0: %w", s, s.Demand, errors.Join(ErrInfeasibleService, ErrDegenerateCapacity))
			}
			return fmt.Errorf("service %s demand %d, capacity %d: %w", s, s.Demand, g.Capacity, ErrInfeasibleService)
		}
		reachable := false
		for _, e := range s.Entries() {
			if m.Reachable(depot, e) && m.Reachable(s.Exit(e), depot) {
				reachable = true
				break
			}
		}
		if !reachable {
			return fmt.Errorf("service %s, depot %d: %w", s, depot, ErrUnreachableDepot)
		}
	}
	return nil
}

// pool holds pending services keyed by id, scanned in ascending id order.
type pool struct {
	byID map[int]instance.Service
	ids  []int
}

func newPool(services []instance.Service) *pool {
	p := &pool{byID: make(map[int]instance.Service, len(services)), ids: make([]int, 0, len(services))}
	for _, s := range services {
		p.byID[s.ID] = s
		p.ids = append(p.ids, s.ID)
	}
	sort.Ints(p.ids)
	return p
}

func (p *pool) len() int { return len(p.ids) }

func (p *pool) remove(id int) {
	delete(p.byID, id)
	i := sort.SearchInts(p.ids, id)
	if i < len(p.ids) && p.ids[i] == id {
		p.ids = append(p.ids[:i], p.ids[i+1:]...)
	}
}

type candidate struct {
	svc   instance.Service
	entry int
	dist  int64
}

// nearest picks the feasible pending service closest to pos. Ties go to the
// lowest id, and within one edge to its declared origin.
func (p *pool) nearest(m *spf.Matrices, pos int, room int64) (candidate, bool) {
	var best candidate
	found := false
	for _, id := range p.ids {
		s := p.byID[id]
		if s.Demand > room {
			continue
		}
		for _, e := range s.Entries() {
			d := m.Distance(pos, e)
			if d == spf.Infinity {
				continue
			}
			if !found || d < best.dist {
				best = candidate{svc: s, entry: e, dist: d}
				found = true
			}
		}
	}
	return best, found
}

func buildRoute(m *spf.Matrices, p *pool, depot int, capacity int64) (Route, error) {
	r := Route{
		Vertices: []int{depot},
		Visits:   []Visit{{Kind: VisitDepot}},
	}
	pos := depot
	for {
		c, ok := p.nearest(m, pos, capacity-r.Demand)
		if !ok {
			break
		}
		s := c.svc
		if c.entry != pos {
			path := m.Path(pos, c.entry)
			if len(path) == 0 {
				return Route{}, fmt.Errorf("no path %d→%d for service %s: %w", pos, c.entry, s, ErrUnreachableDepot)
			}
			r.Vertices = append(r.Vertices, path[1:]...)
			r.Cost += c.dist
		}
		exit := s.Exit(c.entry)
		if exit != c.entry {
			r.Vertices = append(r.Vertices, exit)
		}
		r.Cost += s.Charge()
		r.Demand += s.Demand
		r.Services = append(r.Services, s.ID)
		r.Visits = append(r.Visits, Visit{Kind: VisitService, ServiceID: s.ID, ServiceKind: s.Kind, From: s.From, To: s.To})
		pos = exit
		p.remove(s.ID)
	}
	if pos != depot {
		back := m.Path(pos, depot)
		if len(back) == 0 {
			return Route{}, fmt.Errorf("no path %d→%d back to depot: %w", pos, depot, ErrUnreachableDepot)
		}
		r.Vertices = append(r.Vertices, back[1:]...)
		r.Cost += m.Distance(pos, depot)
	}
	r.Visits = append(r.Visits, Visit{Kind: VisitDepot})
	return r, nil
}
