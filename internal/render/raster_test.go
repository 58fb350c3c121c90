package render

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/ayusman/abhinaya/internal/geom"
	"github.com/ayusman/abhinaya/internal/occluder"
	"github.com/ayusman/abhinaya/internal/overlay"
	"github.com/ayusman/abhinaya/internal/scene"
)

// facing is a camera-facing triangle at depth z, in the scene frame.
func facing(name string, z float64) *scene.Model {
	return &scene.Model{
		Name: name,
		Vertices: []r3.Vector{
			{X: -10, Y: -10, Z: z},
			{X: 10, Y: -10, Z: z},
			{X: 0, Y: 10, Z: z},
		},
		Indices: []uint32{0, 1, 2},
	}
}

func draw(m *scene.Model) overlay.Draw {
	return overlay.Draw{Instance: &overlay.Instance{Node: scene.NewNode(m.Name, m)}}
}

func TestToScreen(t *testing.T) {
	test.That(t, ToScreen(r3.Vector{}, 640, 480), test.ShouldResemble, r3.Vector{X: 320, Y: 240})
	test.That(t, ToScreen(r3.Vector{X: 10, Y: 20, Z: 3}, 640, 480), test.ShouldResemble, r3.Vector{X: 330, Y: 220, Z: 3})
}

func TestDepthBuffer(t *testing.T) {
	a := r3.Vector{X: 0, Y: 0, Z: 5}
	b := r3.Vector{X: 10, Y: 0, Z: 5}
	c := r3.Vector{X: 0, Y: 10, Z: 5}

	t.Run("fills covered pixels only", func(t *testing.T) {
		d := NewDepthBuffer(16, 16)
		d.Fill(a, b, c)
		test.That(t, d.At(1, 1), test.ShouldEqual, 5.0)
		test.That(t, math.IsInf(d.At(9, 9), -1), test.ShouldBeTrue)
	})

	t.Run("either winding", func(t *testing.T) {
		d := NewDepthBuffer(16, 16)
		d.Fill(a, c, b)
		test.That(t, d.At(1, 1), test.ShouldEqual, 5.0)
	})

	t.Run("nearest wins", func(t *testing.T) {
		d := NewDepthBuffer(16, 16)
		d.Fill(a, b, c)
		d.Fill(a.Add(r3.Vector{Z: -2}), b.Add(r3.Vector{Z: -2}), c.Add(r3.Vector{Z: -2}))
		test.That(t, d.At(1, 1), test.ShouldEqual, 5.0)
		d.Fill(a.Add(r3.Vector{Z: 2}), b.Add(r3.Vector{Z: 2}), c.Add(r3.Vector{Z: 2}))
		test.That(t, d.At(1, 1), test.ShouldEqual, 7.0)
	})

	t.Run("interpolates depth", func(t *testing.T) {
		d := NewDepthBuffer(16, 16)
		d.Fill(r3.Vector{}, r3.Vector{X: 10, Z: 10}, r3.Vector{Y: 10})
		test.That(t, d.At(4, 0), test.ShouldAlmostEqual, 4.5, 1e-9)
	})

	t.Run("degenerate and out of range", func(t *testing.T) {
		d := NewDepthBuffer(16, 16)
		d.Fill(a, a, b)
		test.That(t, math.IsInf(d.At(1, 0), -1), test.ShouldBeTrue)
		test.That(t, math.IsInf(d.At(-1, 3), -1), test.ShouldBeTrue)
		test.That(t, math.IsInf(d.At(3, 16), -1), test.ShouldBeTrue)
	})

	t.Run("resize clears", func(t *testing.T) {
		d := NewDepthBuffer(16, 16)
		d.Fill(a, b, c)
		d.Resize(16, 16)
		test.That(t, math.IsInf(d.At(1, 1), -1), test.ShouldBeTrue)
		d.Resize(32, 8)
		test.That(t, d.W, test.ShouldEqual, 32)
		test.That(t, d.H, test.ShouldEqual, 8)
	})
}

func TestDepthBuffer_Occludes(t *testing.T) {
	mesh := &occluder.Mesh{
		Positions: facing("occ", 5).Vertices,
		Indices:   []uint32{0, 1, 2},
		Visible:   true,
	}
	d := NewDepthBuffer(64, 48)
	d.FillMesh(mesh, 64, 48)

	behind := Project([]overlay.Draw{draw(facing("behind", 0))}, geom.FarPlane, 64, 48)
	front := Project([]overlay.Draw{draw(facing("front", 9))}, geom.FarPlane, 64, 48)
	test.That(t, behind, test.ShouldHaveLength, 1)
	test.That(t, front, test.ShouldHaveLength, 1)
	test.That(t, d.Occludes(behind[0]), test.ShouldBeTrue)
	test.That(t, d.Occludes(front[0]), test.ShouldBeFalse)
}

func TestProject(t *testing.T) {
	t.Run("screen space", func(t *testing.T) {
		tris := Project([]overlay.Draw{draw(facing("a", 0))}, geom.FarPlane, 64, 48)
		test.That(t, tris, test.ShouldHaveLength, 1)
		test.That(t, tris[0].V[0], test.ShouldResemble, r3.Vector{X: 22, Y: 34})
		test.That(t, tris[0].V[2], test.ShouldResemble, r3.Vector{X: 32, Y: 14})
		test.That(t, tris[0].Shade, test.ShouldAlmostEqual, 1.0, 1e-9)
	})

	t.Run("clip plane drops geometry behind it", func(t *testing.T) {
		clip := geom.PlaneThrough(r3.Vector{Z: 1}, r3.Vector{Z: 1})
		test.That(t, Project([]overlay.Draw{draw(facing("a", 0))}, clip, 64, 48), test.ShouldBeEmpty)
		test.That(t, Project([]overlay.Draw{draw(facing("a", 2))}, clip, 64, 48), test.ShouldHaveLength, 1)
	})

	t.Run("hidden instances are skipped", func(t *testing.T) {
		d := draw(facing("a", 0))
		d.Instance.Node.Visible = false
		test.That(t, Project([]overlay.Draw{d}, geom.FarPlane, 64, 48), test.ShouldBeEmpty)
	})

	t.Run("back to front", func(t *testing.T) {
		tris := Project([]overlay.Draw{draw(facing("near", 4)), draw(facing("far", -4))}, geom.FarPlane, 64, 48)
		test.That(t, tris, test.ShouldHaveLength, 2)
		test.That(t, tris[0].Centroid().Z, test.ShouldEqual, -4.0)
		test.That(t, tris[1].Centroid().Z, test.ShouldEqual, 4.0)
	})

	t.Run("node transform applies", func(t *testing.T) {
		d := draw(facing("a", 0))
		d.Instance.Node.Position = r3.Vector{X: 5}
		d.Instance.Node.Scale = 2
		tris := Project([]overlay.Draw{d}, geom.FarPlane, 64, 48)
		test.That(t, tris[0].V[0].X, test.ShouldAlmostEqual, 32+5-20, 1e-9)
	})
}

func TestShade(t *testing.T) {
	edgeOn := shade(r3.Vector{}, r3.Vector{X: 1}, r3.Vector{Z: 1})
	test.That(t, edgeOn, test.ShouldAlmostEqual, 0.35, 1e-9)
	test.That(t, shade(r3.Vector{}, r3.Vector{}, r3.Vector{X: 1}), test.ShouldEqual, 0.35)
}
