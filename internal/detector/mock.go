package detector

import (
	"context"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu          sync.Mutex
	topology    Topology
	faces       []Face
	err         error
	initialized bool
	timestamps  []int64
}

// NewMockDetector creates a new MockDetector reporting the grid face topology.
func NewMockDetector() *MockDetector {
	return &MockDetector{topology: GridTopology()}
}

// SetTopology replaces the topology reported by Init.
func (m *MockDetector) SetTopology(t Topology) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topology = t
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []Face) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Init marks the mock ready and returns its topology.
func (m *MockDetector) Init(ctx context.Context) (Topology, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return m.topology, nil
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat, timestampMs int64) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return Result{}, ErrNotInitialized
	}
	if n := len(m.timestamps); n > 0 && timestampMs <= m.timestamps[n-1] {
		return Result{}, ErrTimestampOrder
	}
	m.timestamps = append(m.timestamps, timestampMs)

	if m.err != nil {
		return Result{}, m.err
	}
	return Result{Faces: m.faces, TimestampMs: timestampMs}, nil
}

// Timestamps returns every timestamp Detect accepted, in call order.
func (m *MockDetector) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.timestamps...)
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	return nil
}

// Grid face layout. The synthetic face is a GridCols × GridRows lattice
// triangulated with one diagonal per cell, with single-vertex holes punched
// for the eyes and the mouth. Like a real camera image, the subject's left
// side lies at larger normalized X.
const (
	GridCols = 9
	GridRows = 11

	gridEyeRow   = 3
	gridLipRow   = 8
	gridMidCol   = GridCols / 2
	gridMidRow   = GridRows / 2
	gridLeftEye  = GridCols - 3
	gridRightEye = 2
)

// GridIndex returns the landmark index of lattice cell (row, col).
func GridIndex(row, col int) int {
	return row*GridCols + col
}

// GridTopology returns the synthetic face topology used by the mock detector
// and by tests.
func GridTopology() Topology {
	holes := map[int]bool{
		GridIndex(gridEyeRow, gridLeftEye):  true,
		GridIndex(gridEyeRow, gridRightEye): true,
		GridIndex(gridLipRow, gridMidCol):   true,
	}

	var tess []Edge
	add := func(a, b int) {
		if holes[a] || holes[b] {
			return
		}
		tess = append(tess, Edge{a, b})
	}
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			if c+1 < GridCols {
				add(GridIndex(r, c), GridIndex(r, c+1))
			}
			if r+1 < GridRows {
				add(GridIndex(r, c), GridIndex(r+1, c))
			}
			if c+1 < GridCols && r+1 < GridRows {
				add(GridIndex(r, c), GridIndex(r+1, c+1))
			}
		}
	}

	return Topology{
		NumLandmarks: GridCols * GridRows,
		Tessellation: tess,
		LeftEye:      holeRing(gridEyeRow, gridLeftEye),
		RightEye:     holeRing(gridEyeRow, gridRightEye),
		Lips:         holeRing(gridLipRow, gridMidCol),
		Oval:         gridBoundary(),
		Anchors: Anchors{
			NoseBridge:    GridIndex(gridEyeRow, gridMidCol),
			LeftEyeOuter:  GridIndex(gridEyeRow, GridCols-2),
			RightEyeOuter: GridIndex(gridEyeRow, 1),
			Forehead:      GridIndex(0, gridMidCol),
			Chin:          GridIndex(GridRows-1, gridMidCol),
			LeftTemple:    GridIndex(gridMidRow, GridCols-1),
			RightTemple:   GridIndex(gridMidRow, 0),
		},
	}
}

// holeRing is the closed loop of the six lattice neighbors around (row, col).
func holeRing(row, col int) []Edge {
	ring := []int{
		GridIndex(row, col+1),
		GridIndex(row+1, col+1),
		GridIndex(row+1, col),
		GridIndex(row, col-1),
		GridIndex(row-1, col-1),
		GridIndex(row-1, col),
	}
	return loopEdges(ring)
}

func gridBoundary() []Edge {
	var loop []int
	for c := 0; c < GridCols; c++ {
		loop = append(loop, GridIndex(0, c))
	}
	for r := 1; r < GridRows; r++ {
		loop = append(loop, GridIndex(r, GridCols-1))
	}
	for c := GridCols - 2; c >= 0; c-- {
		loop = append(loop, GridIndex(GridRows-1, c))
	}
	for r := GridRows - 2; r > 0; r-- {
		loop = append(loop, GridIndex(r, 0))
	}
	return loopEdges(loop)
}

func loopEdges(loop []int) []Edge {
	edges := make([]Edge, len(loop))
	for i := range loop {
		edges[i] = Edge{loop[i], loop[(i+1)%len(loop)]}
	}
	return edges
}

// GridFace returns a frontal synthetic face centered at (cx, cy) in
// normalized image space, width units wide, with a rounded depth profile.
// yaw rotates the lattice about the vertical axis through its center
// (radians, positive brings the subject's left side toward the camera).
func GridFace(cx, cy, width, yaw float64) Face {
	height := width * 1.3
	rot := mgl64.Rotate3DY(yaw)

	points := make([]Point3D, GridCols*GridRows)
	for r := 0; r < GridRows; r++ {
		for c := 0; c < GridCols; c++ {
			u := 2*float64(c)/float64(GridCols-1) - 1
			v := 2*float64(r)/float64(GridRows-1) - 1
			bulge := (1 - u*u) * (1 - 0.5*v*v)
			local := mgl64.Vec3{u * width / 2, v * height / 2, -0.4 * width * bulge}
			p := rot.Mul3x1(local)
			points[GridIndex(r, c)] = Point3D{X: cx + p[0], Y: cy + p[1], Z: p[2]}
		}
	}

	m := rot.Mat4()
	return Face{Points: points, Matrix: &m}
}

// FrontalGridFace is GridFace with no rotation.
func FrontalGridFace() Face {
	return GridFace(0.5, 0.5, 0.3, 0)
}

// RotateFaceInPlane rotates every landmark of f by angle radians about the
// image-plane centroid. aspect is the width/height ratio of the image the
// landmarks will be drawn into, so the rotation is rigid in pixel space.
func RotateFaceInPlane(f Face, angle, aspect float64) Face {
	var cx, cy float64
	for _, p := range f.Points {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(f.Points))
	cx /= n
	cy /= n

	sin, cos := math.Sincos(angle)
	out := Face{Points: make([]Point3D, len(f.Points)), Matrix: f.Matrix}
	for i, p := range f.Points {
		dx := (p.X - cx) * aspect
		dy := p.Y - cy
		out.Points[i] = Point3D{
			X: cx + (dx*cos-dy*sin)/aspect,
			Y: cy + dx*sin + dy*cos,
			Z: p.Z,
		}
	}
	return out
}

// FlipHorizontal mirrors every landmark as if the source video were flipped.
func FlipHorizontal(f Face) Face {
	out := Face{Points: make([]Point3D, len(f.Points)), Matrix: f.Matrix}
	for i, p := range f.Points {
		out.Points[i] = Point3D{X: 1 - p.X, Y: p.Y, Z: p.Z}
	}
	return out
}
