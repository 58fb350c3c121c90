package geom

import (
	"github.com/golang/geo/r3"
)

// FarConstant is the plane constant of FarPlane. Any point within a canvas
// sized scene lies on the kept side of it.
const FarConstant = 1e9

// FarPlane clips nothing.
var FarPlane = Plane{Normal: r3.Vector{Z: 1}, Constant: FarConstant}

// Plane is the half-space dot(Normal, p) + Constant >= 0. Geometry on the
// negative side is discarded at draw time.
type Plane struct {
	Normal   r3.Vector `json:"normal"`
	Constant float64   `json:"constant"`
}

// PlaneThrough returns the plane with the given normal passing through anchor.
// A zero-length normal yields FarPlane.
func PlaneThrough(anchor, normal r3.Vector) Plane {
	if normal.Norm2() == 0 {
		return FarPlane
	}
	n := normal.Normalize()
	return Plane{Normal: n, Constant: -anchor.Dot(n)}
}

// Distance returns the signed distance of p from the plane.
func (p Plane) Distance(v r3.Vector) float64 {
	return p.Normal.Dot(v) + p.Constant
}

// Keeps reports whether v lies on the drawn side of the plane.
func (p Plane) Keeps(v r3.Vector) bool {
	return p.Distance(v) >= 0
}

// IsFar reports whether p is the no-op sentinel.
func (p Plane) IsFar() bool {
	return p.Constant >= FarConstant
}
