package detector

import (
	"context"
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestGridTopology(t *testing.T) {
	topo := GridTopology()

	t.Run("is valid", func(t *testing.T) {
		test.That(t, topo.Validate(), test.ShouldBeNil)
	})

	t.Run("lattice edges minus the three holes", func(t *testing.T) {
		// 88 horizontal + 90 vertical + 80 diagonal, six edges removed per hole
		test.That(t, len(topo.Tessellation), test.ShouldEqual, 240)
	})

	t.Run("loops are closed", func(t *testing.T) {
		for _, loop := range [][]Edge{topo.LeftEye, topo.RightEye, topo.Lips, topo.Oval} {
			test.That(t, loop[len(loop)-1][1], test.ShouldEqual, loop[0][0])
		}
		test.That(t, len(topo.Oval), test.ShouldEqual, 2*(GridCols-1)+2*(GridRows-1))
		test.That(t, len(topo.LeftEye), test.ShouldEqual, 6)
	})

	t.Run("fingerprint is stable", func(t *testing.T) {
		test.That(t, topo.Fingerprint(), test.ShouldEqual, GridTopology().Fingerprint())
		other := GridTopology()
		other.Anchors.Chin = 0
		test.That(t, other.Fingerprint(), test.ShouldNotEqual, topo.Fingerprint())
	})
}

func TestTopology_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Topology)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Topology) {}},
		{name: "no landmarks", mutate: func(t *Topology) { t.NumLandmarks = 0 }, wantErr: true},
		{name: "edge out of range", mutate: func(t *Topology) { t.Tessellation = append(t.Tessellation, Edge{0, 999}) }, wantErr: true},
		{name: "negative oval index", mutate: func(t *Topology) { t.Oval[0] = Edge{-1, 2} }, wantErr: true},
		{name: "anchor out of range", mutate: func(t *Topology) { t.Anchors.NoseBridge = 10000 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := GridTopology()
			tt.mutate(&topo)
			err := topo.Validate()
			if tt.wantErr {
				test.That(t, err, test.ShouldNotBeNil)
			} else {
				test.That(t, err, test.ShouldBeNil)
			}
		})
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("detect before init is a usage error", func(t *testing.T) {
		mock := NewMockDetector()
		_, err := mock.Detect(nil, 1)
		test.That(t, errors.Is(err, ErrNotInitialized), test.ShouldBeTrue)
	})

	t.Run("returns empty result by default", func(t *testing.T) {
		mock := NewMockDetector()
		topo, err := mock.Init(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, topo.NumLandmarks, test.ShouldEqual, GridCols*GridRows)

		res, err := mock.Detect(nil, 1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Faces, test.ShouldBeEmpty)
		test.That(t, res.TimestampMs, test.ShouldEqual, int64(1))
	})

	t.Run("returns configured faces", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Init(context.Background())
		mock.SetFaces([]Face{FrontalGridFace(), GridFace(0.3, 0.5, 0.2, 0.3)})

		res, err := mock.Detect(nil, 5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, len(res.Faces), test.ShouldEqual, 2)
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Init(context.Background())
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		_, err := mock.Detect(nil, 1)
		test.That(t, err, test.ShouldEqual, expectedErr)
	})

	t.Run("rejects non increasing timestamps", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Init(context.Background())
		_, err := mock.Detect(nil, 10)
		test.That(t, err, test.ShouldBeNil)
		_, err = mock.Detect(nil, 10)
		test.That(t, errors.Is(err, ErrTimestampOrder), test.ShouldBeTrue)
		test.That(t, mock.Timestamps(), test.ShouldResemble, []int64{10})
	})

	t.Run("close resets readiness", func(t *testing.T) {
		mock := NewMockDetector()
		mock.Init(context.Background())
		test.That(t, mock.Close(), test.ShouldBeNil)
		_, err := mock.Detect(nil, 1)
		test.That(t, errors.Is(err, ErrNotInitialized), test.ShouldBeTrue)
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestGridFace(t *testing.T) {
	face := FrontalGridFace()
	topo := GridTopology()

	test.That(t, len(face.Points), test.ShouldEqual, topo.NumLandmarks)

	nose := face.Points[topo.Anchors.NoseBridge]
	left := face.Points[topo.Anchors.LeftTemple]
	right := face.Points[topo.Anchors.RightTemple]

	t.Run("nose is closer to the camera than the temples", func(t *testing.T) {
		test.That(t, nose.Z, test.ShouldBeLessThan, left.Z)
		test.That(t, nose.Z, test.ShouldBeLessThan, right.Z)
	})

	t.Run("forehead is above the chin", func(t *testing.T) {
		test.That(t, face.Points[topo.Anchors.Forehead].Y, test.ShouldBeLessThan, face.Points[topo.Anchors.Chin].Y)
	})

	t.Run("frontal face carries an identity matrix", func(t *testing.T) {
		test.That(t, face.Matrix, test.ShouldNotBeNil)
		test.That(t, face.Matrix.At(0, 0), test.ShouldAlmostEqual, 1.0)
	})

	t.Run("flip twice is identity", func(t *testing.T) {
		twice := FlipHorizontal(FlipHorizontal(face))
		for i := range face.Points {
			test.That(t, twice.Points[i].X, test.ShouldAlmostEqual, face.Points[i].X, 1e-12)
		}
	})
}

func TestJSONFace_ToFace(t *testing.T) {
	points := make([]Point3D, 5)

	t.Run("short landmark list is rejected", func(t *testing.T) {
		_, ok := jsonFace{Points: points[:3]}.toFace(5)
		test.That(t, ok, test.ShouldBeFalse)
	})

	t.Run("matrix is carried when complete", func(t *testing.T) {
		m := make([]float64, 16)
		m[0], m[5], m[10], m[15] = 1, 1, 1, 1
		m[12] = 7 // column-major translation x
		face, ok := jsonFace{Points: points, Matrix: m}.toFace(5)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, face.Matrix, test.ShouldNotBeNil)
		test.That(t, face.Matrix.At(0, 3), test.ShouldEqual, 7.0)
	})

	t.Run("partial matrix is dropped", func(t *testing.T) {
		face, ok := jsonFace{Points: points, Matrix: []float64{1, 2, 3}}.toFace(5)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, face.Matrix, test.ShouldBeNil)
	})
}
