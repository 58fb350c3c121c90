// Package geom holds the small amount of 3D math shared by the pose,
// overlay and occluder stages. Positions are r3 vectors; rotations are
// mgl64 matrices and quaternions.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
)

// MirrorX is the reflection S = diag(-1, 1, 1) used to carry a rotation into
// the X-mirrored display frame.
var MirrorX = mgl64.Diag3(mgl64.Vec3{-1, 1, 1})

// RotationBlock extracts the upper-left 3×3 rotation of a column-major 4×4 matrix.
func RotationBlock(m mgl64.Mat4) mgl64.Mat3 {
	return m.Mat3()
}

// MirrorRotation returns S·R·S. Conjugating by the reflection keeps R'
// orthonormal with det +1, so it is still a proper rotation, but expressed in
// the frame whose X axis has been negated.
func MirrorRotation(r mgl64.Mat3) mgl64.Mat3 {
	return MirrorX.Mul3(r).Mul3(MirrorX)
}

// QuatFromMat3 converts a rotation matrix to a unit quaternion.
func QuatFromMat3(r mgl64.Mat3) mgl64.Quat {
	return mgl64.Mat4ToQuat(r.Mat4()).Normalize()
}

// EulerXYZ decomposes a rotation matrix into intrinsic XYZ Euler angles in
// radians. Only used for display.
func EulerXYZ(r mgl64.Mat3) mgl64.Vec3 {
	m13 := clamp(r.At(0, 2), -1, 1)
	y := math.Asin(m13)

	var x, z float64
	if math.Abs(m13) < 0.9999999 {
		x = math.Atan2(-r.At(1, 2), r.At(2, 2))
		z = math.Atan2(-r.At(0, 1), r.At(0, 0))
	} else {
		x = math.Atan2(r.At(2, 1), r.At(1, 1))
	}
	return mgl64.Vec3{x, y, z}
}

// EulerDegrees is EulerXYZ converted to degrees.
func EulerDegrees(r mgl64.Mat3) mgl64.Vec3 {
	e := EulerXYZ(r)
	return mgl64.Vec3{mgl64.RadToDeg(e[0]), mgl64.RadToDeg(e[1]), mgl64.RadToDeg(e[2])}
}

// BaseRotation builds the fixed pivot rotation from XYZ angles in degrees.
func BaseRotation(deg mgl64.Vec3) mgl64.Quat {
	return mgl64.AnglesToQuat(
		mgl64.DegToRad(deg[0]),
		mgl64.DegToRad(deg[1]),
		mgl64.DegToRad(deg[2]),
		mgl64.XYZ,
	)
}

// Rotate applies q to an r3 vector.
func Rotate(q mgl64.Quat, v r3.Vector) r3.Vector {
	return FromVec3(q.Rotate(ToVec3(v)))
}

// Forward is the local +Z axis rotated by q: the direction the face points.
func Forward(q mgl64.Quat) r3.Vector {
	return Rotate(q, r3.Vector{Z: 1})
}

// ToVec3 converts an r3 vector to mgl64.
func ToVec3(v r3.Vector) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// FromVec3 converts an mgl64 vector to r3.
func FromVec3(v mgl64.Vec3) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
