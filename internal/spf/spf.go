// Package spf computes all-pairs shortest paths over a mixed CARP graph and
// reconstructs the paths behind them.
//
// Distances are held in a flat row-major n×n buffer indexed i*n+j with
// 0-based vertex indices; every exported accessor takes 1-based vertex ids.
// Matrices are immutable once Compute returns and safe for concurrent reads.
package spf

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"carpnav/internal/instance"
)

// Infinity marks an unreachable pair. No finite path sum ever reaches it.
const Infinity int64 = math.MaxInt64

// NoVertex is the next-hop sentinel for unreachable pairs.
const NoVertex int32 = -1

var (
	// ErrInvalidVertex is returned when a link references a vertex outside [1, n].
	ErrInvalidVertex = errors.New("spf: vertex out of range")
	// ErrNegativeCost is returned when a link carries a negative cost.
	ErrNegativeCost = errors.New("spf: negative link cost")
	// ErrCostOverflow is returned when a link cost exceeds
	// instance.MaxLinkCost, above which path sums could wrap.
	ErrCostOverflow = errors.New("spf: link cost too large")
)

type link struct {
	to int32
	w  int64
}

// Matrices is the result of one all-pairs computation.
type Matrices struct {
	n     int
	dist  []int64
	next  []int32
	links [][]link // direct links per vertex, sorted by target
}

type config struct {
	workers int
}

// Option customizes Compute.
type Option func(*config)

// WithWorkers relaxes the rows of each pivot on up to w goroutines.
// w <= 1 keeps the computation on the calling goroutine.
func WithWorkers(w int) Option {
	return func(c *config) { c.workers = w }
}

// FromGraph computes the matrices over every edge and arc of g, required
// and optional.
func FromGraph(g *instance.Graph, opts ...Option) (*Matrices, error) {
	return Compute(g.NumVertices, g.TraversalEdges(), g.TraversalArcs(), opts...)
}

// Compute runs Floyd–Warshall over n vertices. Edges are usable in both
// directions, arcs only From→To. When several links join the same ordered
// pair the one written last wins: edges are applied before arcs, each in
// slice order. Self-loops never override the zero diagonal.
//
// Complexity: O(n³) time, O(n²) space.
func Compute(n int, edges, arcs []instance.Link, opts ...Option) (*Matrices, error) {
	if n < 0 {
		return nil, fmt.Errorf("vertex count %d: %w", n, ErrInvalidVertex)
	}
	cfg := config{workers: 1}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Matrices{
		n:    n,
		dist: make([]int64, n*n),
		next: make([]int32, n*n),
	}
	for i := range m.dist {
		m.dist[i] = Infinity
		m.next[i] = NoVertex
	}
	for i := 0; i < n; i++ {
		m.dist[i*n+i] = 0
		m.next[i*n+i] = int32(i)
	}

	direct := make([]map[int32]int64, n)
	set := func(u, v int, w int64) {
		if u == v {
			return
		}
		m.dist[u*n+v] = w
		m.next[u*n+v] = int32(v)
		if direct[u] == nil {
			direct[u] = map[int32]int64{}
		}
		direct[u][int32(v)] = w
	}
	for _, e := range edges {
		if err := checkLink(n, e); err != nil {
			return nil, err
		}
		set(e.From-1, e.To-1, e.Cost)
		set(e.To-1, e.From-1, e.Cost)
	}
	for _, a := range arcs {
		if err := checkLink(n, a); err != nil {
			return nil, err
		}
		set(a.From-1, a.To-1, a.Cost)
	}

	m.links = make([][]link, n)
	for u, adj := range direct {
		if len(adj) == 0 {
			continue
		}
		ls := make([]link, 0, len(adj))
		for v, w := range adj {
			ls = append(ls, link{to: v, w: w})
		}
		sort.Slice(ls, func(i, j int) bool { return ls[i].to < ls[j].to })
		m.links[u] = ls
	}

	if cfg.workers > 1 && n > 1 {
		if err := m.relaxParallel(cfg.workers); err != nil {
			return nil, err
		}
	} else {
		for k := 0; k < n; k++ {
			m.relaxRows(k, 0, n)
		}
	}
	return m, nil
}

func checkLink(n int, l instance.Link) error {
	if l.From < 1 || l.From > n || l.To < 1 || l.To > n {
		return fmt.Errorf("link (%d,%d) with %d vertices: %w", l.From, l.To, n, ErrInvalidVertex)
	}
	if l.Cost < 0 {
		return fmt.Errorf("link (%d,%d) cost %d: %w", l.From, l.To, l.Cost, ErrNegativeCost)
	}
	if limit := instance.MaxLinkCost(n); l.Cost > limit {
		return fmt.Errorf("link (%d,%d) cost %d above %d: %w", l.From, l.To, l.Cost, limit, ErrCostOverflow)
	}
	return nil
}

// relaxRows applies pivot k to rows [lo, hi). Row k and column k do not
// change while k is the pivot, so disjoint row ranges may run concurrently.
func (m *Matrices) relaxRows(k, lo, hi int) {
	n := m.n
	dist, next := m.dist, m.next
	baseK := k * n
	for i := lo; i < hi; i++ {
		baseI := i * n
		ik := dist[baseI+k]
		if ik == Infinity {
			continue
		}
		hop := next[baseI+k]
		for j := 0; j < n; j++ {
			kj := dist[baseK+j]
			if kj == Infinity {
				continue
			}
			if cand := ik + kj; cand < dist[baseI+j] {
				dist[baseI+j] = cand
				next[baseI+j] = hop
			}
		}
	}
}

func (m *Matrices) relaxParallel(workers int) error {
	n := m.n
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers
	for k := 0; k < n; k++ {
		var g errgroup.Group
		for lo := 0; lo < n; lo += chunk {
			lo, hi := lo, min(lo+chunk, n)
			pivot := k
			g.Go(func() error {
				m.relaxRows(pivot, lo, hi)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// Size is the number of vertices.
func (m *Matrices) Size() int { return m.n }

func (m *Matrices) valid(v int) bool { return v >= 1 && v <= m.n }

// Distance returns the shortest cost from vertex i to vertex j, or Infinity
// when j is unreachable or either id is out of range.
func (m *Matrices) Distance(i, j int) int64 {
	if !m.valid(i) || !m.valid(j) {
		return Infinity
	}
	return m.dist[(i-1)*m.n+j-1]
}

// Reachable reports whether a finite path leads from i to j.
func (m *Matrices) Reachable(i, j int) bool { return m.Distance(i, j) != Infinity }

// NextHop returns the vertex following i on a shortest path to j, i itself
// when i == j, or 0 when j is unreachable.
func (m *Matrices) NextHop(i, j int) int {
	if !m.valid(i) || !m.valid(j) {
		return 0
	}
	h := m.next[(i-1)*m.n+j-1]
	if h == NoVertex {
		return 0
	}
	return int(h) + 1
}

// Equal reports whether both results are bit-identical.
func (m *Matrices) Equal(o *Matrices) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.n != o.n {
		return false
	}
	for i := range m.dist {
		if m.dist[i] != o.dist[i] || m.next[i] != o.next[i] {
			return false
		}
	}
	return true
}

// Each calls fn for every ordered pair (i, j), i != j, with a finite
// distance, in row-major order.
func (m *Matrices) Each(fn func(i, j int, d int64)) {
	n := m.n
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if d := m.dist[i*n+j]; d != Infinity {
				fn(i+1, j+1, d)
			}
		}
	}
}
