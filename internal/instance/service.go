package instance

import (
	"fmt"
	"sort"
)

// Kind tags the variant of a required element.
type Kind uint8

const (
	KindNode Kind = iota + 1
	KindEdge
	KindArc
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindEdge:
		return "edge"
	case KindArc:
		return "arc"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case KindNode, KindEdge, KindArc:
		return []byte(k.String()), nil
	}
	return nil, fmt.Errorf("instance: unknown service kind %d", uint8(k))
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "node":
		*k = KindNode
	case "edge":
		*k = KindEdge
	case "arc":
		*k = KindArc
	default:
		return fmt.Errorf("instance: unknown service kind %q", b)
	}
	return nil
}

// Service is a required element with its deterministic id. For a node
// service From == To == the vertex.
type Service struct {
	ID          int   `json:"id"`
	Kind        Kind  `json:"kind"`
	From        int   `json:"from"`
	To          int   `json:"to"`
	Cost        int64 `json:"cost"`
	Demand      int64 `json:"demand"`
	ServiceCost int64 `json:"serviceCost"`
}

// Entries lists the extremities the service may be entered from, in
// preference order. An edge may be entered at either end; an arc only at
// its origin, since it can be traversed From→To alone.
func (s Service) Entries() []int {
	switch s.Kind {
	case KindNode:
		return []int{s.From}
	case KindEdge:
		return []int{s.From, s.To}
	case KindArc:
		return []int{s.From}
	default:
		panic(fmt.Sprintf("instance: unknown service kind %d", s.Kind))
	}
}

// Exit returns the vertex a vehicle stands on after serving s from entry.
func (s Service) Exit(entry int) int {
	switch s.Kind {
	case KindNode:
		return s.From
	case KindEdge:
		if entry == s.From {
			return s.To
		}
		return s.From
	case KindArc:
		return s.To
	default:
		panic(fmt.Sprintf("instance: unknown service kind %d", s.Kind))
	}
}

// Charge is what serving s adds to a route beyond the approach movement:
// traversal of the element itself plus its service cost.
func (s Service) Charge() int64 {
	switch s.Kind {
	case KindNode:
		return s.ServiceCost
	case KindEdge, KindArc:
		return s.Cost + s.ServiceCost
	default:
		panic(fmt.Sprintf("instance: unknown service kind %d", s.Kind))
	}
}

func (s Service) String() string {
	if s.Kind == KindNode {
		return fmt.Sprintf("#%d node %d", s.ID, s.From)
	}
	return fmt.Sprintf("#%d %s (%d,%d)", s.ID, s.Kind, s.From, s.To)
}

// Services returns every required element with ids assigned nodes first,
// then edges by (min, max) endpoint, then arcs by (origin, destination).
// Ids start at 1.
func (g *Graph) Services() []Service {
	nodes := append([]NodeService(nil), g.Nodes...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].Vertex < nodes[j].Vertex })

	edges := append([]Link(nil), g.Edges...)
	sort.SliceStable(edges, func(i, j int) bool {
		ai, bi := minmax(edges[i].From, edges[i].To)
		aj, bj := minmax(edges[j].From, edges[j].To)
		if ai != aj {
			return ai < aj
		}
		return bi < bj
	})

	arcs := append([]Link(nil), g.Arcs...)
	sort.SliceStable(arcs, func(i, j int) bool {
		if arcs[i].From != arcs[j].From {
			return arcs[i].From < arcs[j].From
		}
		return arcs[i].To < arcs[j].To
	})

	out := make([]Service, 0, len(nodes)+len(edges)+len(arcs))
	id := 1
	for _, n := range nodes {
		out = append(out, Service{ID: id, Kind: KindNode, From: n.Vertex, To: n.Vertex, Demand: n.Demand, ServiceCost: n.ServiceCost})
		id++
	}
	for _, e := range edges {
		out = append(out, Service{ID: id, Kind: KindEdge, From: e.From, To: e.To, Cost: e.Cost, Demand: e.Demand, ServiceCost: e.ServiceCost})
		id++
	}
	for _, a := range arcs {
		out = append(out, Service{ID: id, Kind: KindArc, From: a.From, To: a.To, Cost: a.Cost, Demand: a.Demand, ServiceCost: a.ServiceCost})
		id++
	}
	return out
}

func minmax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}
