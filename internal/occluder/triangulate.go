// Package occluder builds the depth-only face surface that hides the parts
// of an accessory behind the real head.
package occluder

import (
	"slices"
	"sync"

	"github.com/ayusman/abhinaya/internal/detector"
)

// Arc fractions of the oval loop around the forehead and chin that are
// trimmed by a single vertex instead of a full ring.
const (
	ForeheadArc = 0.4
	ChinArc     = 0.3
)

// Triangulation is the fixed index buffer shared by every occluder mesh.
type Triangulation struct {
	// Indices is a triangle list.
	Indices []uint32
	// Surface is the number of leading triangles reconstructed from the
	// tessellation. The rest fill the eye and lip holes.
	Surface int
	// Excluded holds the trimmed border vertices. No surface triangle uses them.
	Excluded map[int]bool
}

// Triangles returns the number of triangles.
func (t *Triangulation) Triangles() int {
	return len(t.Indices) / 3
}

// Triangulate returns the occluder index buffer for topo.
func Triangulate(topo detector.Topology) []uint32 {
	return Build(topo).Indices
}

// Build reconstructs the face surface from the tessellation graph, trims it
// inside the face oval and fills the eye and lip holes.
func Build(topo detector.Topology) *Triangulation {
	adj := newAdjacency(topo.Tessellation)
	surface := adj.triangles(topo.Tessellation)

	excluded := exclusion(walkLoop(topo.Oval), adj, topo.Anchors)
	tri := &Triangulation{Excluded: excluded}
	for _, t := range surface {
		if excluded[t[0]] || excluded[t[1]] || excluded[t[2]] {
			continue
		}
		tri.Indices = append(tri.Indices, uint32(t[0]), uint32(t[1]), uint32(t[2]))
	}
	tri.Surface = tri.Triangles()

	for _, hole := range [][]detector.Edge{topo.LeftEye, topo.RightEye, topo.Lips} {
		loop := walkLoop(hole)
		for i := 1; i+1 < len(loop); i++ {
			tri.Indices = append(tri.Indices, uint32(loop[0]), uint32(loop[i]), uint32(loop[i+1]))
		}
	}
	return tri
}

type adjacency struct {
	sets   map[int]map[int]bool
	sorted map[int][]int
}

func newAdjacency(edges []detector.Edge) *adjacency {
	a := &adjacency{sets: make(map[int]map[int]bool)}
	link := func(u, v int) {
		if a.sets[u] == nil {
			a.sets[u] = make(map[int]bool)
		}
		a.sets[u][v] = true
	}
	for _, e := range edges {
		if e[0] == e[1] {
			continue
		}
		link(e[0], e[1])
		link(e[1], e[0])
	}
	a.sorted = make(map[int][]int, len(a.sets))
	for v, set := range a.sets {
		ns := make([]int, 0, len(set))
		for n := range set {
			ns = append(ns, n)
		}
		slices.Sort(ns)
		a.sorted[v] = ns
	}
	return a
}

// triangles finds every 3-clique, visiting edges in input order so the
// output order is stable.
func (a *adjacency) triangles(edges []detector.Edge) [][3]int {
	seen := make(map[[3]int]bool)
	var out [][3]int
	for _, e := range edges {
		u, v := e[0], e[1]
		if u == v {
			continue
		}
		for _, w := range a.sorted[u] {
			if w == v || !a.sets[v][w] {
				continue
			}
			key := [3]int{u, v, w}
			slices.Sort(key[:])
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, [3]int{u, v, w})
		}
	}
	return out
}

// walkLoop orders a closed loop given as an edge list, starting from the
// first edge's first vertex. It stops early on a broken loop.
func walkLoop(edges []detector.Edge) []int {
	if len(edges) == 0 {
		return nil
	}
	adj := newAdjacency(edges)
	start := edges[0][0]
	loop := []int{start}
	prev, cur := -1, start
	for len(loop) <= len(adj.sorted) {
		next := -1
		for _, n := range adj.sorted[cur] {
			if n != prev {
				next = n
				break
			}
		}
		if next < 0 || next == start {
			break
		}
		loop = append(loop, next)
		prev, cur = cur, next
	}
	return loop
}

// exclusion marks the oval and, outside the forehead and chin arcs, the
// ring of tessellation neighbors just inside it.
func exclusion(oval []int, adj *adjacency, anchors detector.Anchors) map[int]bool {
	protected := make(map[int]bool)
	for _, arc := range []struct {
		anchor int
		frac   float64
	}{
		{anchors.Forehead, ForeheadArc},
		{anchors.Chin, ChinArc},
	} {
		for _, v := range arcAround(oval, arc.anchor, arc.frac) {
			protected[v] = true
		}
	}

	excluded := make(map[int]bool)
	for _, v := range oval {
		excluded[v] = true
		if protected[v] {
			continue
		}
		for _, n := range adj.sorted[v] {
			excluded[n] = true
		}
	}
	return excluded
}

// arcAround returns the vertices within frac/2 of the loop length on either
// side of anchor. It is empty when anchor is not on the loop.
func arcAround(loop []int, anchor int, frac float64) []int {
	pos := slices.Index(loop, anchor)
	if pos < 0 {
		return nil
	}
	n := len(loop)
	half := int(float64(n) * frac / 2)
	arc := make([]int, 0, 2*half+1)
	for k := -half; k <= half; k++ {
		arc = append(arc, loop[((pos+k)%n+n)%n])
	}
	return arc
}

type cacheEntry struct {
	once sync.Once
	tri  *Triangulation
}

var cache sync.Map

// Cached returns the triangulation of topo, building it at most once per
// process for each distinct topology.
func Cached(topo detector.Topology) *Triangulation {
	e, _ := cache.LoadOrStore(topo.Fingerprint(), &cacheEntry{})
	entry := e.(*cacheEntry)
	entry.once.Do(func() {
		entry.tri = Build(topo)
	})
	return entry.tri
}
