// Package overlay places accessory instances on tracked faces, animates
// switches between accessories and computes the per-frame clip plane.
//
// A Placer is not safe for concurrent use. It is owned by the frame loop.
package overlay

import (
	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ayusman/abhinaya/internal/geom"
	"github.com/ayusman/abhinaya/internal/pose"
	"github.com/ayusman/abhinaya/internal/scene"
)

// ErrNoSuchAsset is returned when an asset index is out of range.
var ErrNoSuchAsset = errors.New("no such asset")

// DefaultMaxFaces caps instance pools when Config.MaxFaces is unset.
const DefaultMaxFaces = 2

// Config configures a Placer.
type Config struct {
	MaxFaces int
	Params   Params
}

// Draw is one placed instance in a rendered frame.
type Draw struct {
	Asset    int
	Slot     int
	Instance *Instance
}

// Output is the result of one Render call.
type Output struct {
	Draws []Draw
	Clip  geom.Plane
	// ClipAnchor is the point the clip plane was built through. It is only
	// meaningful when Clip is not the far plane.
	ClipAnchor    r3.Vector
	Transitioning bool
	Progress      float64
}

// Snapshot summarizes placer state for observers outside the frame loop.
type Snapshot struct {
	Assets        []string   `json:"assets"`
	Current       int        `json:"current"`
	Transitioning bool       `json:"transitioning"`
	Target        int        `json:"target"`
	Params        Params     `json:"params"`
	Clip          geom.Plane `json:"clip"`
}

// Placer maps face poses onto pooled accessory instances.
type Placer struct {
	logger   *zap.SugaredLogger
	clock    clock.Clock
	maxFaces int
	params   Params

	assets     []*Asset
	pools      []*pool
	current    int
	transition *Transition
	clip       geom.Plane
}

// NewPlacer returns a placer with no assets.
func NewPlacer(cfg Config, clk clock.Clock, logger *zap.SugaredLogger) *Placer {
	if cfg.MaxFaces <= 0 {
		cfg.MaxFaces = DefaultMaxFaces
	}
	return &Placer{
		logger:   logger,
		clock:    clk,
		maxFaces: cfg.MaxFaces,
		params:   cfg.Params,
		clip:     geom.FarPlane,
	}
}

// AddAsset registers a centered model and returns its index.
func (p *Placer) AddAsset(name string, model *scene.Model) int {
	p.assets = append(p.assets, newAsset(name, model, p.params))
	p.pools = append(p.pools, &pool{})
	p.logger.Infow("asset added", "name", name, "reference_width", p.assets[len(p.assets)-1].ReferenceWidth)
	return len(p.assets) - 1
}

// RemoveAsset drops the asset at index along with its instances. Any
// in-flight transition is finished first.
func (p *Placer) RemoveAsset(index int) error {
	if index < 0 || index >= len(p.assets) {
		return errors.Wrapf(ErrNoSuchAsset, "index %d", index)
	}
	p.finish()
	p.assets = append(p.assets[:index], p.assets[index+1:]...)
	p.pools = append(p.pools[:index], p.pools[index+1:]...)
	if p.current > index || p.current == len(p.assets) {
		p.current = max(p.current-1, 0)
	}
	return nil
}

// Assets returns the loaded assets in selection order.
func (p *Placer) Assets() []*Asset {
	return p.assets
}

// Current returns the index of the active asset.
func (p *Placer) Current() int {
	return p.current
}

// Transition returns the in-flight switch, or nil when idle.
func (p *Placer) Transition() *Transition {
	return p.transition
}

// Params returns the current placement parameters.
func (p *Placer) Params() Params {
	return p.params
}

// Clip returns the plane computed by the last Render.
func (p *Placer) Clip() geom.Plane {
	return p.clip
}

// SelectAsset starts a slide to the asset at index. A switch already in
// flight is finished immediately. Selecting the active asset while idle and
// selecting with no assets loaded do nothing.
func (p *Placer) SelectAsset(index int, dir Direction) error {
	if len(p.assets) == 0 {
		return nil
	}
	if index < 0 || index >= len(p.assets) {
		return errors.Wrapf(ErrNoSuchAsset, "index %d", index)
	}
	p.finish()
	if index == p.current {
		return nil
	}
	p.transition = &Transition{
		From:          p.current,
		To:            index,
		Direction:     dir,
		Start:         p.clock.Now(),
		FromInstances: p.pools[p.current].visible(),
	}
	p.logger.Debugw("asset switch", "from", p.current, "to", index, "direction", dir)
	return nil
}

// Jump makes the asset at index active immediately, without a transition.
func (p *Placer) Jump(index int) error {
	if index < 0 || index >= len(p.assets) {
		return errors.Wrapf(ErrNoSuchAsset, "index %d", index)
	}
	p.finish()
	if index != p.current {
		p.pools[p.current].hideAll()
		p.current = index
	}
	return nil
}

// Next selects the asset after the active (or incoming) one, wrapping.
func (p *Placer) Next() error {
	if len(p.assets) == 0 {
		return nil
	}
	return p.SelectAsset((p.target()+1)%len(p.assets), Next)
}

// Previous selects the asset before the active (or incoming) one, wrapping.
func (p *Placer) Previous() error {
	if len(p.assets) == 0 {
		return nil
	}
	n := len(p.assets)
	return p.SelectAsset((p.target()-1+n)%n, Previous)
}

func (p *Placer) target() int {
	if p.transition != nil {
		return p.transition.To
	}
	return p.current
}

// UpdateParams applies a partial parameter update. Changing the base
// rotation rebuilds every asset template and discards all pooled instances.
func (p *Placer) UpdateParams(patch ParamsPatch) error {
	next, rotated := p.params.Apply(patch)
	if err := next.Validate(); err != nil {
		return err
	}
	p.params = next
	if rotated {
		p.invalidate()
	}
	return nil
}

// SetClipDepth sets the clip plane distance behind the accessory, in eye
// distances. Zero disables clipping.
func (p *Placer) SetClipDepth(depth float64) error {
	return p.UpdateParams(ParamsPatch{ClipDepth: &depth})
}

func (p *Placer) invalidate() {
	if p.transition != nil {
		p.current = p.transition.To
		p.transition = nil
	}
	for i, a := range p.assets {
		a.rebuild(p.params)
		p.pools[i] = &pool{}
	}
	p.logger.Debugw("asset pools invalidated", "rotation_deg", p.params.RotationDeg)
}

// finish completes the in-flight transition: outgoing instances are hidden
// and the incoming asset becomes active.
func (p *Placer) finish() {
	tr := p.transition
	if tr == nil {
		return
	}
	for _, inst := range tr.FromInstances {
		inst.hide()
	}
	p.current = tr.To
	p.transition = nil
}

// Render places instances for this frame's poses, advancing any transition,
// and computes the clip plane from the first pose.
func (p *Placer) Render(poses []pose.FacePose, canvasW, canvasH float64) Output {
	if len(p.assets) == 0 {
		p.clip = geom.FarPlane
		return Output{Clip: p.clip}
	}
	if len(poses) > p.maxFaces {
		p.logger.Debugw("ignoring faces beyond the cap", "detected", len(poses), "max", p.maxFaces)
		poses = poses[:p.maxFaces]
	}

	var out Output
	if tr := p.transition; tr != nil {
		t := tr.Progress(p.clock.Now())
		if t >= 1 {
			p.finish()
		} else {
			outgoing, incoming := SlideOffsets(EaseInOutCubic(t), tr.Direction, canvasH)
			out.Draws = p.placeAll(out.Draws, tr.From, tr.FromInstances, poses, canvasW, canvasH, outgoing)
			tr.ToInstances = p.ensure(tr.To, len(poses))
			out.Draws = p.placeAll(out.Draws, tr.To, tr.ToInstances, poses, canvasW, canvasH, incoming)
			out.Transitioning = true
			out.Progress = t
		}
	}
	if p.transition == nil {
		out.Draws = p.placeAll(out.Draws, p.current, p.ensure(p.current, len(poses)), poses, canvasW, canvasH, 0)
	}

	p.clip, out.ClipAnchor = p.clipPlane(poses, canvasW, canvasH)
	out.Clip = p.clip
	return out
}

// ensure grows the asset's pool to n instances and returns the whole pool.
func (p *Placer) ensure(index, n int) []*Instance {
	pl := p.pools[index]
	if err := pl.grow(p.assets[index], min(n, p.maxFaces)); err != nil {
		p.logger.Errorw("failed to clone asset instance", "asset", p.assets[index].Name, "error", err)
	}
	return pl.instances
}

// placeAll puts instance i on poses[i] and hides instances with no pose.
func (p *Placer) placeAll(draws []Draw, asset int, instances []*Instance, poses []pose.FacePose, w, h, offset float64) []Draw {
	a := p.assets[asset]
	for i, inst := range instances {
		if i >= len(poses) {
			inst.hide()
			continue
		}
		p.place(inst, a, poses[i], w, h, offset)
		draws = append(draws, Draw{Asset: asset, Slot: i, Instance: inst})
	}
	return draws
}

func (p *Placer) place(inst *Instance, a *Asset, fp pose.FacePose, w, h, offset float64) {
	n := inst.Node
	n.Position = p.anchor(fp, w, h)
	n.Position.Y += offset
	n.Rotation = fp.Rotation
	if a.ReferenceWidth > 0 {
		n.Scale = fp.EyeDistance * p.params.Scale / a.ReferenceWidth
	}
	n.Visible = true
	inst.Offset = offset
}

// anchor is the placed position of an accessory on fp, in a frame centered
// on the canvas with Y up.
func (p *Placer) anchor(fp pose.FacePose, w, h float64) r3.Vector {
	pos := r3.Vector{X: fp.Center.X - w/2, Y: -(fp.Center.Y - h/2)}
	pos = pos.Add(geom.Forward(fp.Rotation).Mul(fp.EyeDistance * p.params.Depth))
	pos.Y += fp.EyeDistance * p.params.OffsetY
	return pos
}

func (p *Placer) clipPlane(poses []pose.FacePose, w, h float64) (geom.Plane, r3.Vector) {
	if len(poses) == 0 || p.params.ClipDepth <= 0 {
		return geom.FarPlane, r3.Vector{}
	}
	fp := poses[0]
	normal := geom.Forward(fp.Rotation)
	anchor := p.anchor(fp, w, h).Sub(normal.Mul(fp.EyeDistance * p.params.ClipDepth))
	return geom.PlaneThrough(anchor, normal), anchor
}

// LiveGenerations counts the assets that have at least one visible instance.
func (p *Placer) LiveGenerations() int {
	return lo.CountBy(p.pools, func(pl *pool) bool {
		return len(pl.visible()) > 0
	})
}

// Snapshot returns a copy of the observable state.
func (p *Placer) Snapshot() Snapshot {
	return Snapshot{
		Assets:        lo.Map(p.assets, func(a *Asset, _ int) string { return a.Name }),
		Current:       p.current,
		Transitioning: p.transition != nil,
		Target:        p.target(),
		Params:        p.params,
		Clip:          p.clip,
	}
}
