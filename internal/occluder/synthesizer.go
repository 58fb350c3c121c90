package occluder

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/ayusman/abhinaya/internal/detector"
	"github.com/ayusman/abhinaya/internal/geom"
	"github.com/ayusman/abhinaya/internal/pose"
)

const (
	// DepthBias pushes the occluder just behind the accessory to avoid z-fighting.
	DepthBias = 2.0
	// DisabledDepth is the depth of vertices dropped by the front-side cutoff.
	DisabledDepth = -1000.0
	// YawThreshold is the |yaw| below which no vertices are cut.
	YawThreshold = 0.05
	// YawGain scales |yaw| into the cutoff fraction before capping at 1.
	YawGain = 3.0
	// MaxCutoff is the largest fraction of the temple span that is cut.
	MaxCutoff = 0.3
)

// Mesh is the occluder surface of one face slot.
type Mesh struct {
	Positions []r3.Vector
	// Indices is shared by every mesh and must not be modified.
	Indices []uint32
	Visible bool
	Bounds  geom.Box
	Yaw     float64
	Cutoff  float64
}

// Synthesizer keeps one occluder mesh per face slot in step with the poses.
// It is owned by the frame loop and is not safe for concurrent use.
type Synthesizer struct {
	logger       *zap.SugaredLogger
	anchors      detector.Anchors
	numLandmarks int
	maxFaces     int
	maxCutoff    float64
	tri          *Triangulation
	meshes       []*Mesh
}

// NewSynthesizer returns a synthesizer for faces of the given topology.
func NewSynthesizer(topo detector.Topology, maxFaces int, logger *zap.SugaredLogger) *Synthesizer {
	return &Synthesizer{
		logger:       logger,
		anchors:      topo.Anchors,
		numLandmarks: topo.NumLandmarks,
		maxFaces:     max(maxFaces, 1),
		maxCutoff:    MaxCutoff,
		tri:          Cached(topo),
	}
}

// Triangulation returns the shared index buffer.
func (s *Synthesizer) Triangulation() *Triangulation {
	return s.tri
}

// Meshes returns every pooled mesh, visible or not, in slot order.
func (s *Synthesizer) Meshes() []*Mesh {
	return s.meshes
}

// Visible returns the meshes drawn this frame.
func (s *Synthesizer) Visible() []*Mesh {
	return lo.Filter(s.meshes, func(m *Mesh, _ int) bool { return m.Visible })
}

// Update rewrites slot i from poses[i] in a canvasW×canvasH frame centered on
// the canvas with Y up. Slots without a usable pose are hidden and keep
// their previous vertices.
func (s *Synthesizer) Update(poses []pose.FacePose, canvasW, canvasH float64) {
	if len(poses) > s.maxFaces {
		s.logger.Debugw("ignoring faces beyond the cap", "detected", len(poses), "max", s.maxFaces)
		poses = poses[:s.maxFaces]
	}
	for len(s.meshes) < len(poses) {
		s.meshes = append(s.meshes, &Mesh{
			Positions: make([]r3.Vector, s.numLandmarks),
			Indices:   s.tri.Indices,
		})
	}

	for i, m := range s.meshes {
		if i >= len(poses) || len(poses[i].AllLandmarks) < s.numLandmarks || s.numLandmarks == 0 {
			m.Visible = false
			continue
		}
		s.deform(m, poses[i].AllLandmarks[:s.numLandmarks], canvasW, canvasH)
		m.Visible = true
	}
}

func (s *Synthesizer) deform(m *Mesh, lm []r3.Vector, w, h float64) {
	nose := lm[s.anchors.NoseBridge]
	left := lm[s.anchors.LeftTemple]
	right := lm[s.anchors.RightTemple]

	m.Yaw = Yaw(nose.X, left.X, right.X)
	m.Cutoff = CutoffFraction(m.Yaw, s.maxCutoff)
	span := right.X - left.X

	for i, p := range lm {
		depth := -(p.Z - nose.Z) - DepthBias
		if m.Cutoff > 0 && span != 0 {
			t := (p.X - left.X) / span
			if (m.Yaw > 0 && t < m.Cutoff) || (m.Yaw < 0 && t > 1-m.Cutoff) {
				depth = DisabledDepth
			}
		}
		m.Positions[i] = r3.Vector{X: p.X - w/2, Y: -(p.Y - h/2), Z: depth}
	}
	m.Bounds = geom.BoxOf(m.Positions, func(v r3.Vector) bool { return v.Z == DisabledDepth })
}

// Yaw estimates head yaw in [-1, 1] from the horizontal distances between
// the nose bridge and each temple. Positive means the left temple side faces
// the camera. Zero total distance yields zero.
func Yaw(noseX, leftX, rightX float64) float64 {
	distLeft := math.Abs(noseX - leftX)
	distRight := math.Abs(noseX - rightX)
	total := distLeft + distRight
	if total == 0 {
		return 0
	}
	return (distLeft - distRight) / total
}

// CutoffFraction is the fraction of the temple span cut from the
// camera-facing edge at the given yaw.
func CutoffFraction(yaw, maxCutoff float64) float64 {
	a := math.Abs(yaw)
	if a <= YawThreshold {
		return 0
	}
	return min(a*YawGain, 1) * maxCutoff
}
