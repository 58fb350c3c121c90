// Package pose converts detected face landmarks into per-face poses in the
// mirrored canvas pixel space shared by the overlay and occluder stages.
package pose

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/ayusman/abhinaya/internal/detector"
	"github.com/ayusman/abhinaya/internal/geom"
)

// Landmark names used in FacePose.Landmarks.
const (
	NoseBridge    = "nose_bridge"
	LeftEyeOuter  = "left_eye_outer"
	RightEyeOuter = "right_eye_outer"
	Forehead      = "forehead"
	Chin          = "chin"
	LeftTemple    = "left_temple"
	RightTemple   = "right_temple"
)

// FacePose holds the measurements of one face for one frame.
//
// All points are in canvas pixels with X mirrored. Z carries the landmark
// depth scaled by the draw width, so 3D norms mix axes in a single unit.
type FacePose struct {
	Center      r3.Vector `json:"center"`
	FaceCenter  r3.Vector `json:"face_center"`
	EyeDistance float64   `json:"eye_distance"`
	FaceHeight  float64   `json:"face_height"`
	FaceWidth   float64   `json:"face_width"`
	Roll        float64   `json:"roll"`

	// Rotation is the head orientation corrected for the mirrored display.
	Rotation       mgl64.Quat `json:"-"`
	RotationMatrix mgl64.Mat3 `json:"-"`
	// Euler is Rotation as XYZ angles in degrees, for display only.
	Euler mgl64.Vec3 `json:"euler"`

	Landmarks    map[string]r3.Vector `json:"landmarks"`
	AllLandmarks []r3.Vector          `json:"-"`
}

// Estimator computes FacePoses from detector output.
type Estimator struct {
	anchors  detector.Anchors
	maxFaces int
	minLen   int
}

// NewEstimator returns an estimator measuring from the given anchors. At most
// maxFaces poses are produced per frame; maxFaces <= 0 means no limit.
func NewEstimator(anchors detector.Anchors, maxFaces int) *Estimator {
	minLen := 0
	for _, i := range anchors.Indices() {
		minLen = max(minLen, i+1)
	}
	return &Estimator{anchors: anchors, maxFaces: maxFaces, minLen: minLen}
}

// MaxFaces returns the per-frame pose cap.
func (e *Estimator) MaxFaces() int {
	return e.maxFaces
}

// ComputeAll returns one pose per usable face in res, in detection order.
// Faces without enough landmarks are skipped, and faces past the cap are dropped.
func (e *Estimator) ComputeAll(res detector.Result, rect DrawRect) []FacePose {
	poses := make([]FacePose, 0, len(res.Faces))
	for _, face := range res.Faces {
		if e.maxFaces > 0 && len(poses) == e.maxFaces {
			break
		}
		if p, ok := e.Compute(face, rect); ok {
			poses = append(poses, p)
		}
	}
	return poses
}

// Compute returns the pose of a single face. ok is false when the face has
// too few landmarks to measure.
func (e *Estimator) Compute(face detector.Face, rect DrawRect) (FacePose, bool) {
	if len(face.Points) == 0 || len(face.Points) < e.minLen {
		return FacePose{}, false
	}

	all := make([]r3.Vector, len(face.Points))
	for i, p := range face.Points {
		all[i] = ToPixel(p, rect)
	}

	a := e.anchors
	nose := all[a.NoseBridge]
	leftEye, rightEye := all[a.LeftEyeOuter], all[a.RightEyeOuter]
	forehead, chin := all[a.Forehead], all[a.Chin]
	leftTemple, rightTemple := all[a.LeftTemple], all[a.RightTemple]

	rot := mgl64.Ident3()
	if face.Matrix != nil {
		rot = geom.MirrorRotation(geom.RotationBlock(*face.Matrix))
	}

	eyes := rightEye.Sub(leftEye)
	return FacePose{
		Center:         flat(nose),
		FaceCenter:     flat(forehead.Add(chin).Mul(0.5)),
		EyeDistance:    eyes.Norm(),
		FaceHeight:     chin.Sub(forehead).Norm(),
		FaceWidth:      rightTemple.Sub(leftTemple).Norm(),
		Roll:           math.Atan2(eyes.Y, eyes.X),
		Rotation:       geom.QuatFromMat3(rot),
		RotationMatrix: rot,
		Euler:          geom.EulerDegrees(rot),
		Landmarks: map[string]r3.Vector{
			NoseBridge:    nose,
			LeftEyeOuter:  leftEye,
			RightEyeOuter: rightEye,
			Forehead:      forehead,
			Chin:          chin,
			LeftTemple:    leftTemple,
			RightTemple:   rightTemple,
		},
		AllLandmarks: all,
	}, true
}

// ToPixel maps a normalized landmark into mirrored canvas pixels.
func ToPixel(p detector.Point3D, rect DrawRect) r3.Vector {
	return r3.Vector{
		X: (1-p.X)*rect.Width + rect.OffsetX,
		Y: p.Y*rect.Height + rect.OffsetY,
		Z: p.Z * rect.Width,
	}
}

func flat(v r3.Vector) r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y}
}
