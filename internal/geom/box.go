package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// Box is an axis aligned bounding box. The zero value is empty.
type Box struct {
	Min   r3.Vector `json:"min"`
	Max   r3.Vector `json:"max"`
	valid bool
}

// BoxOf returns the bounds of pts, skipping any point for which skip returns true.
func BoxOf(pts []r3.Vector, skip func(r3.Vector) bool) Box {
	var b Box
	for _, p := range pts {
		if skip != nil && skip(p) {
			continue
		}
		b = b.Extend(p)
	}
	return b
}

// Extend grows the box to include p.
func (b Box) Extend(p r3.Vector) Box {
	if !b.valid {
		return Box{Min: p, Max: p, valid: true}
	}
	b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Empty reports whether no point has been added.
func (b Box) Empty() bool {
	return !b.valid
}

// Center returns the midpoint of the box.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent along each axis.
func (b Box) Size() r3.Vector {
	if !b.valid {
		return r3.Vector{}
	}
	return b.Max.Sub(b.Min)
}
