// Package scene holds the minimal scene graph used for overlay assets: an
// immutable triangle model and a tree of transformable, hideable nodes.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/tiendc/go-deepcopy"

	"github.com/ayusman/abhinaya/internal/geom"
)

// Model is triangle geometry in its own local frame.
type Model struct {
	Name     string      `json:"name"`
	Vertices []r3.Vector `json:"vertices"`
	Indices  []uint32    `json:"indices"`
}

// Bounds returns the axis-aligned bounds of the model's vertices.
func (m *Model) Bounds() geom.Box {
	return geom.BoxOf(m.Vertices, nil)
}

// Centered returns a copy of m translated so its bounding box is centered
// on the origin.
func (m *Model) Centered() *Model {
	c := m.Bounds().Center()
	out := &Model{
		Name:     m.Name,
		Vertices: make([]r3.Vector, len(m.Vertices)),
		Indices:  append([]uint32(nil), m.Indices...),
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = v.Sub(c)
	}
	return out
}

// Node is one element of the scene tree. A node draws its Model (if any)
// and its children under its transform: translate, then rotate, then scale.
type Node struct {
	Name     string     `json:"name"`
	Model    *Model     `json:"-"`
	Position r3.Vector  `json:"position"`
	Rotation mgl64.Quat `json:"-"`
	Scale    float64    `json:"scale"`
	Visible  bool       `json:"visible"`
	Children []*Node    `json:"children,omitempty"`
}

// NewNode returns a visible node with identity transform.
func NewNode(name string, model *Model) *Node {
	return &Node{
		Name:     name,
		Model:    model,
		Rotation: mgl64.QuatIdent(),
		Scale:    1,
		Visible:  true,
	}
}

// Add appends children to n and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Find returns the first node named name in the subtree rooted at n.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(name); found != nil {
			return found
		}
	}
	return nil
}

// Local is the node's transform relative to its parent.
func (n *Node) Local() mgl64.Mat4 {
	t := mgl64.Translate3D(n.Position.X, n.Position.Y, n.Position.Z)
	return t.Mul4(n.Rotation.Mat4()).Mul4(mgl64.Scale3D(n.Scale, n.Scale, n.Scale))
}

// Walk calls fn for every visible node under n with its transform relative
// to n's parent. Hidden nodes are skipped along with their subtrees.
func (n *Node) Walk(fn func(node *Node, world mgl64.Mat4)) {
	n.walk(mgl64.Ident4(), fn)
}

func (n *Node) walk(parent mgl64.Mat4, fn func(*Node, mgl64.Mat4)) {
	if !n.Visible {
		return
	}
	world := parent.Mul4(n.Local())
	fn(n, world)
	for _, c := range n.Children {
		c.walk(world, fn)
	}
}

// Bounds returns the bounds of every visible model under n, expressed in
// n's parent frame.
func (n *Node) Bounds() geom.Box {
	var box geom.Box
	n.Walk(func(node *Node, world mgl64.Mat4) {
		if node.Model == nil {
			return
		}
		for _, v := range node.Model.Vertices {
			box = box.Extend(Apply(world, v))
		}
	})
	return box
}

// Clone deep-copies the node tree. Models are immutable and stay shared
// between the original and the clone.
func (n *Node) Clone() (*Node, error) {
	var out Node
	if err := deepcopy.Copy(&out, *n); err != nil {
		return nil, errors.Wrapf(err, "clone node %q", n.Name)
	}
	shareModels(n, &out)
	return &out, nil
}

func shareModels(src, dst *Node) {
	dst.Model = src.Model
	for i := range src.Children {
		shareModels(src.Children[i], dst.Children[i])
	}
}

// Apply transforms point v by m.
func Apply(m mgl64.Mat4, v r3.Vector) r3.Vector {
	return geom.FromVec3(mgl64.TransformCoordinate(geom.ToVec3(v), m))
}
