package overlay

import (
	"math"
	"time"

	"github.com/samber/lo"
)

// TransitionDuration is how long an asset switch slides.
const TransitionDuration = 400 * time.Millisecond

// Direction picks which edge the incoming asset slides in from.
type Direction int

const (
	// Next slides the incoming asset down from the top edge.
	Next Direction = 1
	// Previous slides the incoming asset up from the bottom edge.
	Previous Direction = -1
)

// Transition is an in-flight asset switch.
type Transition struct {
	From      int
	To        int
	Direction Direction
	Start     time.Time
	// FromInstances are the instances that were visible when the switch began.
	FromInstances []*Instance
	// ToInstances fill in on render, one per detected face.
	ToInstances []*Instance
}

// Progress is the linear completion in [0, 1] at now.
func (t *Transition) Progress(now time.Time) float64 {
	return lo.Clamp(float64(now.Sub(t.Start))/float64(TransitionDuration), 0, 1)
}

// EaseInOutCubic eases t in [0, 1].
func EaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// SlideOffsets returns the vertical offsets, Y up, of the outgoing and
// incoming instance sets at eased progress e on a canvas canvasH pixels tall.
func SlideOffsets(e float64, dir Direction, canvasH float64) (outgoing, incoming float64) {
	d := float64(dir)
	return -e * canvasH * d, (1 - e) * canvasH * d
}
