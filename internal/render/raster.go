package render

import (
	"cmp"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/ayusman/abhinaya/internal/geom"
	"github.com/ayusman/abhinaya/internal/occluder"
	"github.com/ayusman/abhinaya/internal/overlay"
	"github.com/ayusman/abhinaya/internal/scene"
)

// Triangle is a screen-space triangle: X right and Y down in pixels, Z
// toward the viewer in the same units.
type Triangle struct {
	V     [3]r3.Vector
	Shade float64
}

// Centroid returns the mean of the three vertices.
func (t Triangle) Centroid() r3.Vector {
	return t.V[0].Add(t.V[1]).Add(t.V[2]).Mul(1.0 / 3)
}

// ToScreen maps a point from the canvas-centered, Y-up scene frame to pixel
// coordinates. Z is kept.
func ToScreen(v r3.Vector, w, h int) r3.Vector {
	return r3.Vector{X: v.X + float64(w)/2, Y: float64(h)/2 - v.Y, Z: v.Z}
}

// DepthBuffer stores the nearest occluder depth per pixel. Empty pixels hold
// negative infinity.
type DepthBuffer struct {
	W, H int
	z    []float64
}

// NewDepthBuffer returns a cleared w×h buffer.
func NewDepthBuffer(w, h int) *DepthBuffer {
	d := &DepthBuffer{}
	d.Resize(w, h)
	return d
}

// Resize reallocates the buffer when the size changes and clears it.
func (d *DepthBuffer) Resize(w, h int) {
	if w != d.W || h != d.H || d.z == nil {
		d.W, d.H = w, h
		d.z = make([]float64, max(w*h, 0))
	}
	d.Clear()
}

// Clear empties every pixel.
func (d *DepthBuffer) Clear() {
	for i := range d.z {
		d.z[i] = math.Inf(-1)
	}
}

// At returns the depth of the pixel containing (x, y).
func (d *DepthBuffer) At(x, y float64) float64 {
	ix, iy := int(math.Floor(x)), int(math.Floor(y))
	if ix < 0 || iy < 0 || ix >= d.W || iy >= d.H {
		return math.Inf(-1)
	}
	return d.z[iy*d.W+ix]
}

// Fill rasterizes a screen-space triangle, keeping the nearest depth at
// each covered pixel center.
func (d *DepthBuffer) Fill(a, b, c r3.Vector) {
	area := edge(a, b, c.X, c.Y)
	if area == 0 {
		return
	}
	x0 := max(int(math.Floor(min(a.X, b.X, c.X))), 0)
	x1 := min(int(math.Ceil(max(a.X, b.X, c.X))), d.W-1)
	y0 := max(int(math.Floor(min(a.Y, b.Y, c.Y))), 0)
	y1 := min(int(math.Ceil(max(a.Y, b.Y, c.Y))), d.H-1)

	for y := y0; y <= y1; y++ {
		py := float64(y) + 0.5
		for x := x0; x <= x1; x++ {
			px := float64(x) + 0.5
			wa := edge(b, c, px, py) / area
			wb := edge(c, a, px, py) / area
			wc := edge(a, b, px, py) / area
			if wa < 0 || wb < 0 || wc < 0 {
				continue
			}
			z := wa*a.Z + wb*b.Z + wc*c.Z
			if i := y*d.W + x; z > d.z[i] {
				d.z[i] = z
			}
		}
	}
}

// FillMesh rasterizes every triangle of m in a w×h canvas.
func (d *DepthBuffer) FillMesh(m *occluder.Mesh, w, h int) {
	for i := 0; i+2 < len(m.Indices); i += 3 {
		d.Fill(
			ToScreen(m.Positions[m.Indices[i]], w, h),
			ToScreen(m.Positions[m.Indices[i+1]], w, h),
			ToScreen(m.Positions[m.Indices[i+2]], w, h),
		)
	}
}

// Occludes reports whether the buffer hides t at its centroid.
func (d *DepthBuffer) Occludes(t Triangle) bool {
	c := t.Centroid()
	return d.At(c.X, c.Y) > c.Z
}

func edge(a, b r3.Vector, x, y float64) float64 {
	return (b.X-a.X)*(y-a.Y) - (b.Y-a.Y)*(x-a.X)
}

// Project collects the screen-space triangles of every visible draw whose
// centroid lies on the kept side of clip, sorted back to front.
func Project(draws []overlay.Draw, clip geom.Plane, w, h int) []Triangle {
	var tris []Triangle
	for _, d := range draws {
		if d.Instance == nil || !d.Instance.Visible() {
			continue
		}
		d.Instance.Node.Walk(func(n *scene.Node, world mgl64.Mat4) {
			m := n.Model
			if m == nil {
				return
			}
			for i := 0; i+2 < len(m.Indices); i += 3 {
				a := scene.Apply(world, m.Vertices[m.Indices[i]])
				b := scene.Apply(world, m.Vertices[m.Indices[i+1]])
				c := scene.Apply(world, m.Vertices[m.Indices[i+2]])
				if !clip.Keeps(a.Add(b).Add(c).Mul(1.0 / 3)) {
					continue
				}
				tris = append(tris, Triangle{
					V:     [3]r3.Vector{ToScreen(a, w, h), ToScreen(b, w, h), ToScreen(c, w, h)},
					Shade: shade(a, b, c),
				})
			}
		})
	}
	slices.SortStableFunc(tris, func(x, y Triangle) int {
		return cmp.Compare(x.Centroid().Z, y.Centroid().Z)
	})
	return tris
}

// shade is a headlight term in [0.35, 1] from the face normal.
func shade(a, b, c r3.Vector) float64 {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.Norm2() == 0 {
		return 0.35
	}
	return 0.35 + 0.65*math.Abs(n.Normalize().Z)
}
