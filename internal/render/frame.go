// Package render composites the mirrored camera image, the occluder depth
// and the placed accessories into preview frames.
package render

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/abhinaya/internal/geom"
	"github.com/ayusman/abhinaya/internal/occluder"
	"github.com/ayusman/abhinaya/internal/overlay"
	"github.com/ayusman/abhinaya/internal/pose"
)

// Frame is everything the frame loop hands to a renderer for one tick.
// Draws and Occluders point into state owned by the frame loop and are only
// valid for the duration of Submit.
type Frame struct {
	Sequence  uint64
	Timestamp time.Time
	CanvasW   int
	CanvasH   int
	Rect      pose.DrawRect
	Draws     []overlay.Draw
	Clip      geom.Plane
	Occluders []*occluder.Mesh
}

// Renderer consumes composed frames.
type Renderer interface {
	// Submit draws frame over video. video may be nil, in which case the
	// accessories are drawn over a black canvas.
	Submit(frame *Frame, video *gocv.Mat) error
	Close() error
}

// Discard is a Renderer that drops every frame.
type Discard struct{}

// Submit does nothing.
func (Discard) Submit(*Frame, *gocv.Mat) error { return nil }

// Close does nothing.
func (Discard) Close() error { return nil }
