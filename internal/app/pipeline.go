package app

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/abhinaya/internal/detector"
	"github.com/ayusman/abhinaya/internal/occluder"
	"github.com/ayusman/abhinaya/internal/pose"
	"github.com/ayusman/abhinaya/internal/render"
)

// run is the frame loop. Each tick reads one frame and carries it through
// detection, pose estimation, placement, occluder deformation and
// rendering. Commands are applied between frames.
func (a *App) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := a.clock.Ticker(time.Second / time.Duration(a.cfg.FPS))
	defer ticker.Stop()
	a.logger.Infow("frame loop started", "fps", a.cfg.FPS, "canvas", []int{a.cfg.CanvasW, a.cfg.CanvasH})

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.commands:
			a.state.Lock()
			cmd.reply <- a.apply(cmd.fn)
			a.state.Unlock()
		case <-ticker.C:
			if err := a.Step(); err != nil {
				a.logger.Debugw("frame skipped", "error", err)
			}
		}
	}
}

// Step processes one camera frame. It is what the frame loop runs on every
// tick and can be called directly while the loop is not running.
func (a *App) Step() error {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		return errors.Wrap(err, "read frame")
	}
	defer frame.Close()

	a.state.Lock()
	defer a.state.Unlock()

	a.rect = pose.Cover(float64(frame.Cols()), float64(frame.Rows()), float64(a.cfg.CanvasW), float64(a.cfg.CanvasH))

	var poses []pose.FacePose
	if a.IsEnabled() {
		poses, err = a.track(frame)
		if err != nil {
			a.logger.Warnw("face tracking failed", "error", err)
		}
	}

	out := a.renderFrame(poses)
	if err := a.renderer.Submit(&out, frame); err != nil {
		a.logger.Warnw("render failed", "error", err)
	}
	a.refreshSnapshot()
	a.publish(out, poses)
	return nil
}

// track runs detection and pose estimation. A failed detection yields no
// poses, which hides every accessory and occluder for the frame.
func (a *App) track(frame *gocv.Mat) ([]pose.FacePose, error) {
	if a.estimator == nil {
		return nil, detector.ErrNotInitialized
	}
	res, err := a.detector.Detect(frame, a.nextTimestamp())
	if err != nil {
		return nil, errors.Wrap(err, "detect")
	}
	return a.computePoses(res)
}

// nextTimestamp returns the current time in milliseconds, bumped so that it
// strictly increases across calls.
func (a *App) nextTimestamp() int64 {
	ts := max(a.lastTs+1, a.clock.Now().UnixMilli())
	a.lastTs = ts
	return ts
}

// ComputePoses converts one detection result into face poses for the
// current canvas. It fails with detector.ErrNotInitialized before Init.
func (a *App) ComputePoses(res detector.Result) ([]pose.FacePose, error) {
	a.state.Lock()
	defer a.state.Unlock()
	return a.computePoses(res)
}

func (a *App) computePoses(res detector.Result) ([]pose.FacePose, error) {
	if a.estimator == nil {
		return nil, detector.ErrNotInitialized
	}
	if n := len(res.Faces); n > a.cfg.MaxFaces {
		a.logger.Debugw("ignoring faces beyond the cap", "detected", n, "max", a.cfg.MaxFaces)
	}
	return a.estimator.ComputeAll(res, a.rect), nil
}

// RenderFrame places accessories and occluders for poses and returns the
// frame a renderer would draw. It does not submit the frame.
func (a *App) RenderFrame(poses []pose.FacePose) render.Frame {
	a.state.Lock()
	defer a.state.Unlock()
	out := a.renderFrame(poses)
	a.refreshSnapshot()
	return out
}

func (a *App) renderFrame(poses []pose.FacePose) render.Frame {
	w, h := float64(a.cfg.CanvasW), float64(a.cfg.CanvasH)
	placed := a.placer.Render(poses, w, h)

	var occluders []*occluder.Mesh
	if a.synth != nil {
		a.synth.Update(poses, w, h)
		occluders = a.synth.Visible()
	}

	a.seq++
	return render.Frame{
		Sequence:  a.seq,
		Timestamp: a.clock.Now(),
		CanvasW:   a.cfg.CanvasW,
		CanvasH:   a.cfg.CanvasH,
		Rect:      a.rect,
		Draws:     placed.Draws,
		Clip:      placed.Clip,
		Occluders: occluders,
	}
}
