package pose

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.viam.com/test"

	"github.com/ayusman/abhinaya/internal/detector"
)

const (
	canvasW = 640.0
	canvasH = 480.0
)

var fullCanvas = DrawRect{Width: canvasW, Height: canvasH}

// pixelFace builds a face whose seven anchor landmarks land on the given
// mirrored pixel positions inside fullCanvas.
func pixelFace(px [7][2]float64) (detector.Face, detector.Anchors) {
	anchors := detector.Anchors{
		NoseBridge: 0, LeftEyeOuter: 1, RightEyeOuter: 2,
		Forehead: 3, Chin: 4, LeftTemple: 5, RightTemple: 6,
	}
	points := make([]detector.Point3D, len(px))
	for i, p := range px {
		points[i] = detector.Point3D{X: 1 - p[0]/canvasW, Y: p[1] / canvasH}
	}
	return detector.Face{Points: points}, anchors
}

func gridEstimator() *Estimator {
	return NewEstimator(detector.GridTopology().Anchors, 2)
}

func TestCompute_EyeScenario(t *testing.T) {
	face, anchors := pixelFace([7][2]float64{
		{160, 200}, {100, 200}, {220, 200},
		{160, 100}, {160, 340}, {60, 260}, {260, 260},
	})
	e := NewEstimator(anchors, 1)

	pose, ok := e.Compute(face, fullCanvas)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, pose.EyeDistance, test.ShouldAlmostEqual, 120.0, 1e-9)
	test.That(t, pose.Roll, test.ShouldAlmostEqual, 0.0, 1e-12)
	test.That(t, pose.FaceHeight, test.ShouldAlmostEqual, 240.0, 1e-9)
	test.That(t, pose.FaceWidth, test.ShouldAlmostEqual, 200.0, 1e-9)
	test.That(t, pose.Center.X, test.ShouldAlmostEqual, 160.0, 1e-9)
	test.That(t, pose.Center.Y, test.ShouldAlmostEqual, 200.0, 1e-9)
	test.That(t, pose.FaceCenter.Y, test.ShouldAlmostEqual, 220.0, 1e-9)
	test.That(t, pose.Landmarks[LeftEyeOuter].X, test.ShouldAlmostEqual, 100.0, 1e-9)
}

func TestCompute_Mirroring(t *testing.T) {
	e := gridEstimator()
	face := detector.GridFace(0.42, 0.5, 0.3, 0)

	orig, ok := e.Compute(face, fullCanvas)
	test.That(t, ok, test.ShouldBeTrue)

	t.Run("landmark X is mirrored", func(t *testing.T) {
		nose := face.Points[detector.GridTopology().Anchors.NoseBridge]
		test.That(t, orig.Center.X, test.ShouldAlmostEqual, (1-nose.X)*canvasW, 1e-9)
	})

	t.Run("single flip reflects about the canvas center", func(t *testing.T) {
		flipped, _ := e.Compute(detector.FlipHorizontal(face), fullCanvas)
		test.That(t, flipped.Center.X, test.ShouldAlmostEqual, canvasW-orig.Center.X, 1e-9)
	})

	t.Run("double flip is the identity", func(t *testing.T) {
		twice, _ := e.Compute(detector.FlipHorizontal(detector.FlipHorizontal(face)), fullCanvas)
		test.That(t, twice.Center.X, test.ShouldAlmostEqual, orig.Center.X, 1e-9)
	})
}

func TestCompute_DistanceInvariance(t *testing.T) {
	e := gridEstimator()
	base, _ := e.Compute(detector.FrontalGridFace(), fullCanvas)

	t.Run("in-plane rotation", func(t *testing.T) {
		for _, angle := range []float64{0.1, 0.4, -0.7, math.Pi / 2} {
			rotated := detector.RotateFaceInPlane(detector.FrontalGridFace(), angle, canvasW/canvasH)
			p, ok := e.Compute(rotated, fullCanvas)
			test.That(t, ok, test.ShouldBeTrue)
			test.That(t, p.EyeDistance, test.ShouldAlmostEqual, base.EyeDistance, 1e-6)
			test.That(t, p.FaceHeight, test.ShouldAlmostEqual, base.FaceHeight, 1e-6)
			test.That(t, p.FaceWidth, test.ShouldAlmostEqual, base.FaceWidth, 1e-6)
			test.That(t, p.Roll, test.ShouldAlmostEqual, -angle, 1e-9)
		}
	})

	t.Run("yaw keeps 3D distances through depth", func(t *testing.T) {
		for _, yaw := range []float64{0.2, -0.5, 0.9} {
			p, _ := e.Compute(detector.GridFace(0.5, 0.5, 0.3, yaw), fullCanvas)
			test.That(t, p.EyeDistance, test.ShouldAlmostEqual, base.EyeDistance, 1e-6)
			test.That(t, p.FaceHeight, test.ShouldAlmostEqual, base.FaceHeight, 1e-6)
			test.That(t, p.FaceWidth, test.ShouldAlmostEqual, base.FaceWidth, 1e-6)
		}
	})
}

func TestCompute_Rotation(t *testing.T) {
	e := gridEstimator()

	t.Run("identity without a matrix", func(t *testing.T) {
		face := detector.FrontalGridFace()
		face.Matrix = nil
		p, _ := e.Compute(face, fullCanvas)
		test.That(t, p.RotationMatrix, test.ShouldResemble, mgl64.Ident3())
		test.That(t, p.Rotation.ApproxEqual(mgl64.QuatIdent()), test.ShouldBeTrue)
	})

	t.Run("mirrored matrix reverses yaw", func(t *testing.T) {
		face := detector.FrontalGridFace()
		m := mgl64.Rotate3DY(0.3).Mat4()
		m[12] = 5 // translation is ignored
		face.Matrix = &m

		p, _ := e.Compute(face, fullCanvas)
		test.That(t, p.RotationMatrix.ApproxEqualThreshold(mgl64.Rotate3DY(-0.3), 1e-12), test.ShouldBeTrue)
		test.That(t, p.Euler.Y(), test.ShouldAlmostEqual, mgl64.RadToDeg(-0.3), 1e-9)
	})
}

func TestComputeAll(t *testing.T) {
	e := gridEstimator()

	t.Run("empty result is not an error", func(t *testing.T) {
		test.That(t, e.ComputeAll(detector.Result{}, fullCanvas), test.ShouldBeEmpty)
	})

	t.Run("short faces are skipped", func(t *testing.T) {
		short := detector.Face{Points: make([]detector.Point3D, 3)}
		res := detector.Result{Faces: []detector.Face{short, detector.FrontalGridFace()}}
		test.That(t, len(e.ComputeAll(res, fullCanvas)), test.ShouldEqual, 1)
	})

	t.Run("extra faces beyond the cap are dropped", func(t *testing.T) {
		res := detector.Result{Faces: []detector.Face{
			detector.GridFace(0.2, 0.5, 0.2, 0),
			detector.GridFace(0.5, 0.5, 0.2, 0),
			detector.GridFace(0.8, 0.5, 0.2, 0),
		}}
		poses := e.ComputeAll(res, fullCanvas)
		test.That(t, len(poses), test.ShouldEqual, 2)
		test.That(t, poses[0].Center.X, test.ShouldBeGreaterThan, poses[1].Center.X)
	})
}

func TestCover(t *testing.T) {
	tests := []struct {
		name               string
		srcW, srcH, dW, dH float64
		want               DrawRect
	}{
		{name: "same size", srcW: 640, srcH: 480, dW: 640, dH: 480, want: DrawRect{Width: 640, Height: 480}},
		{name: "upscale", srcW: 320, srcH: 240, dW: 640, dH: 480, want: DrawRect{Width: 640, Height: 480}},
		{name: "square canvas crops sides", srcW: 640, srcH: 480, dW: 480, dH: 480,
			want: DrawRect{Width: 640, Height: 480, OffsetX: -80}},
		{name: "tall video crops top and bottom", srcW: 480, srcH: 640, dW: 640, dH: 480,
			want: DrawRect{Width: 640, Height: 640 * 640.0 / 480, OffsetY: (480 - 640*640.0/480) / 2}},
		{name: "degenerate source", srcW: 0, srcH: 0, dW: 100, dH: 50, want: DrawRect{Width: 100, Height: 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cover(tt.srcW, tt.srcH, tt.dW, tt.dH)
			test.That(t, got.Width, test.ShouldAlmostEqual, tt.want.Width, 1e-9)
			test.That(t, got.Height, test.ShouldAlmostEqual, tt.want.Height, 1e-9)
			test.That(t, got.OffsetX, test.ShouldAlmostEqual, tt.want.OffsetX, 1e-9)
			test.That(t, got.OffsetY, test.ShouldAlmostEqual, tt.want.OffsetY, 1e-9)
		})
	}
}
