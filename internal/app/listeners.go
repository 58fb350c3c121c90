package app

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"github.com/ayusman/abhinaya/internal/occluder"
	"github.com/ayusman/abhinaya/internal/overlay"
	"github.com/ayusman/abhinaya/internal/pose"
	"github.com/ayusman/abhinaya/internal/render"
)

// FaceSummary is the per-face part of an Update.
type FaceSummary struct {
	Center      r3.Vector  `json:"center"`
	EyeDistance float64    `json:"eye_distance"`
	Roll        float64    `json:"roll"`
	EulerDeg    mgl64.Vec3 `json:"euler_deg"`
	Yaw         float64    `json:"yaw"`
	Cutoff      float64    `json:"cutoff"`
}

// Update is published to listeners after every frame.
type Update struct {
	Sequence    uint64           `json:"sequence"`
	TimestampMs int64            `json:"timestamp_ms"`
	Faces       []FaceSummary    `json:"faces"`
	State       overlay.Snapshot `json:"state"`
}

// Subscribe registers a listener for per-frame updates. Slow listeners miss
// updates rather than stall the frame loop. Call the returned function to
// unsubscribe.
func (a *App) Subscribe() (<-chan Update, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++
	ch := make(chan Update, 1)
	a.listeners[id] = ch

	return ch, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, ok := a.listeners[id]; ok {
			delete(a.listeners, id)
			close(ch)
		}
	}
}

// publish must be called with state held.
func (a *App) publish(frame render.Frame, poses []pose.FacePose) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.listeners) == 0 {
		return
	}

	var meshes []*occluder.Mesh
	if a.synth != nil {
		meshes = a.synth.Meshes()
	}
	u := Update{
		Sequence:    frame.Sequence,
		TimestampMs: a.lastTs,
		State:       a.snapshot,
		Faces: lo.Map(poses, func(fp pose.FacePose, i int) FaceSummary {
			s := FaceSummary{
				Center:      fp.Center,
				EyeDistance: fp.EyeDistance,
				Roll:        fp.Roll,
				EulerDeg:    fp.Euler,
			}
			if i < len(meshes) && meshes[i].Visible {
				s.Yaw, s.Cutoff = meshes[i].Yaw, meshes[i].Cutoff
			}
			return s
		}),
	}
	for _, ch := range a.listeners {
		select {
		case ch <- u:
		default:
		}
	}
}
