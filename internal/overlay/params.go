package overlay

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Params tune how an accessory sits on every face. Lengths are fractions of
// the face's eye distance.
type Params struct {
	// Scale is the accessory width in eye distances.
	Scale float64 `json:"scale" yaml:"scale"`
	// OffsetY moves the accessory up along screen Y.
	OffsetY float64 `json:"offset_y" yaml:"offset_y"`
	// Depth moves the accessory along the face's forward vector.
	Depth float64 `json:"depth" yaml:"depth"`
	// RotationDeg is the base rotation pivot applied to every model, XYZ degrees.
	RotationDeg mgl64.Vec3 `json:"rotation_deg" yaml:"rotation_deg"`
	// ClipDepth is how far behind the accessory the clip plane sits. Zero
	// disables clipping.
	ClipDepth float64 `json:"clip_depth" yaml:"clip_depth"`
}

// DefaultParams returns the stock placement.
func DefaultParams() Params {
	return Params{
		Scale:     2.0,
		ClipDepth: 0.6,
	}
}

// Validate rejects parameters that cannot produce a visible accessory.
func (p Params) Validate() error {
	if p.Scale <= 0 {
		return errors.Errorf("scale must be positive, got %v", p.Scale)
	}
	if p.ClipDepth < 0 {
		return errors.Errorf("clip depth must not be negative, got %v", p.ClipDepth)
	}
	return nil
}

// ParamsPatch is a partial Params update. Nil fields are left unchanged.
type ParamsPatch struct {
	Scale       *float64    `json:"scale,omitempty"`
	OffsetY     *float64    `json:"offset_y,omitempty"`
	Depth       *float64    `json:"depth,omitempty"`
	RotationDeg *mgl64.Vec3 `json:"rotation_deg,omitempty"`
	ClipDepth   *float64    `json:"clip_depth,omitempty"`
}

// Apply returns p with the patch applied, and whether the base rotation changed.
func (p Params) Apply(patch ParamsPatch) (Params, bool) {
	rotated := false
	if patch.Scale != nil {
		p.Scale = *patch.Scale
	}
	if patch.OffsetY != nil {
		p.OffsetY = *patch.OffsetY
	}
	if patch.Depth != nil {
		p.Depth = *patch.Depth
	}
	if patch.RotationDeg != nil && *patch.RotationDeg != p.RotationDeg {
		p.RotationDeg = *patch.RotationDeg
		rotated = true
	}
	if patch.ClipDepth != nil {
		p.ClipDepth = *patch.ClipDepth
	}
	return p, rotated
}

// Patch returns a patch that sets every field to p's value.
func (p Params) Patch() ParamsPatch {
	return ParamsPatch{
		Scale:       &p.Scale,
		OffsetY:     &p.OffsetY,
		Depth:       &p.Depth,
		RotationDeg: &p.RotationDeg,
		ClipDepth:   &p.ClipDepth,
	}
}
