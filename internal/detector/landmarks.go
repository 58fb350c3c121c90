// Package detector provides the face landmark source: landmark types, the
// fixed landmark topology, and detector implementations.
package detector

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// Point3D is one normalized landmark: X and Y in [0,1] image space, Z depth
// in the same unit as X (negative is closer to the camera).
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Face is one detected face: the ordered landmark list and, when the model
// provides it, the column-major 4×4 facial transformation matrix.
type Face struct {
	Points []Point3D   `json:"points"`
	Matrix *mgl64.Mat4 `json:"matrix,omitempty"`
}

// Result is the output of one detection call. Zero faces is not an error.
type Result struct {
	Faces       []Face `json:"faces"`
	TimestampMs int64  `json:"timestamp_ms"`
}

// Edge is an undirected connection between two landmark indices.
type Edge [2]int

// Anchors names the landmark indices the pose stage measures from.
type Anchors struct {
	NoseBridge    int `json:"nose_bridge"`
	LeftEyeOuter  int `json:"left_eye_outer"`
	RightEyeOuter int `json:"right_eye_outer"`
	Forehead      int `json:"forehead"`
	Chin          int `json:"chin"`
	LeftTemple    int `json:"left_temple"`
	RightTemple   int `json:"right_temple"`
}

// MediaPipeAnchors are the anchor indices of the MediaPipe 468/478 point face mesh.
var MediaPipeAnchors = Anchors{
	NoseBridge:    168,
	LeftEyeOuter:  263,
	RightEyeOuter: 33,
	Forehead:      10,
	Chin:          152,
	LeftTemple:    454,
	RightTemple:   234,
}

// Indices returns the anchors as a slice, in declaration order.
func (a Anchors) Indices() []int {
	return []int{a.NoseBridge, a.LeftEyeOuter, a.RightEyeOuter, a.Forehead, a.Chin, a.LeftTemple, a.RightTemple}
}

// Topology is the landmark topology shared by every face and every frame:
// the surface wireframe plus the closed loops for eyes, lips and the face oval.
type Topology struct {
	NumLandmarks int     `json:"num_landmarks"`
	Tessellation []Edge  `json:"tessellation"`
	LeftEye      []Edge  `json:"left_eye"`
	RightEye     []Edge  `json:"right_eye"`
	Lips         []Edge  `json:"lips"`
	Oval         []Edge  `json:"oval"`
	Anchors      Anchors `json:"anchors"`
}

// Validate checks that every edge and anchor refers to an existing landmark.
func (t Topology) Validate() error {
	if t.NumLandmarks <= 0 {
		return errors.New("topology has no landmarks")
	}
	sets := map[string][]Edge{
		"tessellation": t.Tessellation,
		"left_eye":     t.LeftEye,
		"right_eye":    t.RightEye,
		"lips":         t.Lips,
		"oval":         t.Oval,
	}
	for name, edges := range sets {
		for _, e := range edges {
			if !t.inRange(e[0]) || !t.inRange(e[1]) {
				return errors.Errorf("%s edge %v out of range [0,%d)", name, e, t.NumLandmarks)
			}
		}
	}
	for _, idx := range t.Anchors.Indices() {
		if !t.inRange(idx) {
			return errors.Errorf("anchor %d out of range [0,%d)", idx, t.NumLandmarks)
		}
	}
	return nil
}

// Fingerprint identifies the topology contents. Equal topologies share a fingerprint.
func (t Topology) Fingerprint() string {
	data, err := json.Marshal(t)
	if err != nil {
		return ""
	}
	h := fnv.New64a()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

func (t Topology) inRange(i int) bool {
	return i >= 0 && i < t.NumLandmarks
}
