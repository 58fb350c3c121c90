package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestMirrorRotation(t *testing.T) {
	t.Run("identity is unchanged", func(t *testing.T) {
		m := MirrorRotation(mgl64.Ident3())
		test.That(t, m.ApproxEqual(mgl64.Ident3()), test.ShouldBeTrue)
	})

	t.Run("yaw is reversed", func(t *testing.T) {
		m := MirrorRotation(mgl64.Rotate3DY(0.4))
		test.That(t, m.ApproxEqualThreshold(mgl64.Rotate3DY(-0.4), 1e-12), test.ShouldBeTrue)
	})

	t.Run("roll is reversed", func(t *testing.T) {
		m := MirrorRotation(mgl64.Rotate3DZ(0.3))
		test.That(t, m.ApproxEqualThreshold(mgl64.Rotate3DZ(-0.3), 1e-12), test.ShouldBeTrue)
	})

	t.Run("pitch is kept", func(t *testing.T) {
		m := MirrorRotation(mgl64.Rotate3DX(0.7))
		test.That(t, m.ApproxEqualThreshold(mgl64.Rotate3DX(0.7), 1e-12), test.ShouldBeTrue)
	})

	t.Run("stays a proper rotation", func(t *testing.T) {
		r := mgl64.Rotate3DX(0.2).Mul3(mgl64.Rotate3DY(-0.9)).Mul3(mgl64.Rotate3DZ(1.1))
		m := MirrorRotation(r)
		test.That(t, m.Det(), test.ShouldAlmostEqual, 1.0, 1e-12)
		test.That(t, m.Mul3(m.Transpose()).ApproxEqualThreshold(mgl64.Ident3(), 1e-12), test.ShouldBeTrue)
	})
}

func TestQuatFromMat3(t *testing.T) {
	r := mgl64.Rotate3DY(math.Pi / 2)
	q := QuatFromMat3(r)
	got := Rotate(q, r3.Vector{Z: 1})
	test.That(t, got.X, test.ShouldAlmostEqual, 1.0, 1e-9)
	test.That(t, got.Z, test.ShouldAlmostEqual, 0.0, 1e-9)
	test.That(t, q.Len(), test.ShouldAlmostEqual, 1.0, 1e-12)
}

func TestEulerXYZ(t *testing.T) {
	r := mgl64.Rotate3DX(0.1).Mul3(mgl64.Rotate3DY(0.2)).Mul3(mgl64.Rotate3DZ(0.3))
	e := EulerXYZ(r)
	test.That(t, e[0], test.ShouldAlmostEqual, 0.1, 1e-9)
	test.That(t, e[1], test.ShouldAlmostEqual, 0.2, 1e-9)
	test.That(t, e[2], test.ShouldAlmostEqual, 0.3, 1e-9)

	deg := EulerDegrees(mgl64.Rotate3DZ(math.Pi / 2))
	test.That(t, deg[2], test.ShouldAlmostEqual, 90.0, 1e-9)
}

func TestForward(t *testing.T) {
	f := Forward(mgl64.QuatIdent())
	test.That(t, f, test.ShouldResemble, r3.Vector{Z: 1})
}

func TestPlaneThrough(t *testing.T) {
	anchor := r3.Vector{X: 12, Y: -40, Z: 7}
	p := PlaneThrough(anchor, r3.Vector{X: 1, Y: 2, Z: 2})
	test.That(t, p.Distance(anchor), test.ShouldAlmostEqual, 0.0, 1e-12)
	test.That(t, p.Normal.Norm(), test.ShouldAlmostEqual, 1.0, 1e-12)
	test.That(t, p.Keeps(anchor.Add(p.Normal)), test.ShouldBeTrue)
	test.That(t, p.Keeps(anchor.Sub(p.Normal)), test.ShouldBeFalse)

	t.Run("zero normal gives far plane", func(t *testing.T) {
		test.That(t, PlaneThrough(anchor, r3.Vector{}).IsFar(), test.ShouldBeTrue)
	})
}

func TestBoxOf(t *testing.T) {
	pts := []r3.Vector{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 5, Z: 0}, {X: 0, Y: 0, Z: -1000}}
	b := BoxOf(pts, func(p r3.Vector) bool { return p.Z <= -1000 })
	test.That(t, b.Empty(), test.ShouldBeFalse)
	test.That(t, b.Min, test.ShouldResemble, r3.Vector{X: -1, Y: 2, Z: 0})
	test.That(t, b.Max, test.ShouldResemble, r3.Vector{X: 1, Y: 5, Z: 3})
	test.That(t, b.Center(), test.ShouldResemble, r3.Vector{X: 0, Y: 3.5, Z: 1.5})

	test.That(t, BoxOf(nil, nil).Empty(), test.ShouldBeTrue)
}
