package overlay

import (
	"github.com/samber/lo"

	"github.com/ayusman/abhinaya/internal/geom"
	"github.com/ayusman/abhinaya/internal/scene"
)

const pivotNode = "pivot"

// Asset is a loaded accessory template. Its scene tree is never drawn
// directly; instances are cloned from it.
type Asset struct {
	Name string
	// ReferenceWidth is the model's X extent after the base rotation.
	ReferenceWidth float64

	model    *scene.Model
	template *scene.Node
}

func newAsset(name string, model *scene.Model, params Params) *Asset {
	a := &Asset{Name: name, model: model}
	a.rebuild(params)
	return a
}

// rebuild re-derives the template and reference width from the base rotation.
func (a *Asset) rebuild(params Params) {
	pivot := scene.NewNode(pivotNode, a.model)
	pivot.Rotation = geom.BaseRotation(params.RotationDeg)
	a.template = scene.NewNode(a.Name, nil).Add(pivot)
	a.ReferenceWidth = a.template.Bounds().Size().X
}

// Model returns the shared, centered geometry.
func (a *Asset) Model() *scene.Model {
	return a.model
}

// Instance is one per-face clone of an asset.
type Instance struct {
	Node *scene.Node
	// Offset is the transition slide applied on top of placement, in pixels.
	Offset float64
}

// Visible reports whether the instance is currently drawn.
func (i *Instance) Visible() bool {
	return i.Node.Visible
}

func (i *Instance) hide() {
	i.Node.Visible = false
	i.Offset = 0
}

// pool holds the instances of one asset, indexed by face slot. It only grows.
type pool struct {
	instances []*Instance
}

// grow clones instances until the pool has n of them. It stops early and
// returns the clone error if cloning fails.
func (p *pool) grow(a *Asset, n int) error {
	for len(p.instances) < n {
		node, err := a.template.Clone()
		if err != nil {
			return err
		}
		node.Visible = false
		p.instances = append(p.instances, &Instance{Node: node})
	}
	return nil
}

// visible returns the currently drawn instances in slot order.
func (p *pool) visible() []*Instance {
	return lo.Filter(p.instances, func(inst *Instance, _ int) bool {
		return inst.Visible()
	})
}

func (p *pool) hideAll() {
	for _, inst := range p.instances {
		inst.hide()
	}
}
