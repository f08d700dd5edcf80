package spf

import "sort"

// Path returns one minimum-cost vertex sequence [o, ..., d]. Each step
// follows a direct link; among equally good successors the lowest vertex
// id is taken first. o == d yields [o]; an unreachable d yields nil.
func (m *Matrices) Path(o, d int) []int {
	ps := m.Paths(o, d, 1)
	if len(ps) == 0 {
		return nil
	}
	return ps[0]
}

// Paths enumerates up to limit distinct simple shortest paths from o to d in
// the same deterministic order Path uses. A vertex v extends the current
// path ending at cur when a direct link cur→v of weight w satisfies
// w + dist(v,d) == dist(cur,d). Dead ends, which only occur on zero-cost
// cycles, are backtracked.
//
// With limit 1 a vertex stays marked once left, so the search is a plain
// depth-first walk linear in the number of links. It still reaches d since
// every vertex with a finite distance has such a tight link toward d.
// Larger limits re-enter vertices from other branches and may take
// exponential time on zero-cost cliques.
func (m *Matrices) Paths(o, d, limit int) [][]int {
	if limit <= 0 || !m.valid(o) || !m.valid(d) {
		return nil
	}
	if o == d {
		return [][]int{{o}}
	}
	n := m.n
	target := int32(d - 1)
	if m.dist[(o-1)*n+int(target)] == Infinity {
		return nil
	}

	onPath := make([]bool, n)
	path := []int32{int32(o - 1)}
	cursor := []int{0}
	onPath[o-1] = true

	keepMarks := limit == 1
	var out [][]int
	for len(path) > 0 {
		top := len(path) - 1
		cur := path[top]
		if cur == target {
			out = append(out, toIDs(path))
			if len(out) >= limit {
				break
			}
			onPath[cur] = false
			path, cursor = path[:top], cursor[:top]
			continue
		}

		rem := m.dist[int(cur)*n+int(target)]
		links := m.links[cur]
		advanced := false
		for cursor[top] < len(links) {
			l := links[cursor[top]]
			cursor[top]++
			if onPath[l.to] {
				continue
			}
			rv := m.dist[int(l.to)*n+int(target)]
			if rv == Infinity || l.w+rv != rem {
				continue
			}
			onPath[l.to] = true
			path = append(path, l.to)
			cursor = append(cursor, 0)
			advanced = true
			break
		}
		if !advanced {
			if !keepMarks {
				onPath[cur] = false
			}
			path, cursor = path[:top], cursor[:top]
		}
	}
	return out
}

// NextHopPath walks the next-hop matrix from o to d.
func (m *Matrices) NextHopPath(o, d int) []int {
	if !m.valid(o) || !m.valid(d) {
		return nil
	}
	n := m.n
	cur, target := o-1, d-1
	if m.dist[cur*n+target] == Infinity {
		return nil
	}
	out := []int{o}
	for steps := 0; cur != target; steps++ {
		if steps >= n {
			// Only reachable if the matrix was corrupted.
			return nil
		}
		h := m.next[cur*n+target]
		if h == NoVertex {
			return nil
		}
		cur = int(h)
		out = append(out, cur+1)
	}
	return out
}

// LinkCost returns the weight of the direct link u→v used by the
// computation, if any.
func (m *Matrices) LinkCost(u, v int) (int64, bool) {
	if !m.valid(u) || !m.valid(v) {
		return 0, false
	}
	ls := m.links[u-1]
	t := int32(v - 1)
	i := sort.Search(len(ls), func(i int) bool { return ls[i].to >= t })
	if i < len(ls) && ls[i].to == t {
		return ls[i].w, true
	}
	return 0, false
}

// PathCost sums the direct link weights along path. It reports false if
// two consecutive vertices are not joined by a link.
func (m *Matrices) PathCost(path []int) (int64, bool) {
	var total int64
	for i := 1; i < len(path); i++ {
		w, ok := m.LinkCost(path[i-1], path[i])
		if !ok {
			return 0, false
		}
		total += w
	}
	return total, true
}

func toIDs(p []int32) []int {
	out := make([]int, len(p))
	for i, v := range p {
		out[i] = int(v) + 1
	}
	return out
}
