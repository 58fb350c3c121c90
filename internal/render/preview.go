package render

import (
	"image"
	"image/color"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is used when Options.JPEGQuality is unset.
const DefaultJPEGQuality = 80

// Options configures a Preview.
type Options struct {
	// Wireframe draws the occluder triangles over the image.
	Wireframe   bool `yaml:"wireframe"`
	JPEGQuality int  `yaml:"jpeg_quality"`
}

var (
	accessoryColor = color.RGBA{R: 212, G: 175, B: 55, A: 255}
	wireColor      = color.RGBA{G: 200, B: 255, A: 255}
)

// Preview is a software compositor. It keeps the last composed frame as a
// JPEG for the MJPEG stream. Submit is called from the frame loop; LastJPEG
// and Updates are safe from any goroutine.
type Preview struct {
	logger *zap.SugaredLogger
	opts   Options

	canvas gocv.Mat
	depth  *DepthBuffer

	mu      sync.RWMutex
	jpeg    []byte
	seq     uint64
	updated chan struct{}
}

// NewPreview returns a preview compositor.
func NewPreview(opts Options, logger *zap.SugaredLogger) *Preview {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	return &Preview{
		logger:  logger,
		opts:    opts,
		canvas:  gocv.NewMat(),
		depth:   &DepthBuffer{},
		updated: make(chan struct{}),
	}
}

// Submit composes frame over video and publishes the result.
func (p *Preview) Submit(frame *Frame, video *gocv.Mat) error {
	w, h := frame.CanvasW, frame.CanvasH
	if w <= 0 || h <= 0 {
		return errors.Errorf("invalid canvas %dx%d", w, h)
	}
	p.ensureCanvas(w, h)

	if video != nil && !video.Empty() {
		if err := p.blitVideo(video, frame); err != nil {
			return err
		}
	}

	p.depth.Resize(w, h)
	for _, m := range frame.Occluders {
		if !m.Visible {
			continue
		}
		p.depth.FillMesh(m, w, h)
		if p.opts.Wireframe {
			p.drawWireframe(m.Indices, func(i uint32) image.Point {
				v := ToScreen(m.Positions[i], w, h)
				return image.Pt(int(v.X), int(v.Y))
			})
		}
	}

	for _, t := range Project(frame.Draws, frame.Clip, w, h) {
		if !p.depth.Occludes(t) {
			p.fillTriangle(t)
		}
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, p.canvas, []int{gocv.IMWriteJpegQuality, p.opts.JPEGQuality})
	if err != nil {
		return errors.Wrap(err, "encode preview")
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	p.publish(data)
	return nil
}

func (p *Preview) ensureCanvas(w, h int) {
	if p.canvas.Cols() != w || p.canvas.Rows() != h {
		p.canvas.Close()
		p.canvas = gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
		p.logger.Debugw("preview canvas allocated", "width", w, "height", h)
	}
	p.canvas.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

// blitVideo scales the camera image by the cover rect, mirrors it and
// copies the visible part onto the canvas.
func (p *Preview) blitVideo(video *gocv.Mat, frame *Frame) error {
	r := frame.Rect
	rw, rh := int(r.Width+0.5), int(r.Height+0.5)
	ox, oy := int(r.OffsetX), int(r.OffsetY)
	if rw <= 0 || rh <= 0 {
		return nil
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Resize(*video, &scaled, image.Pt(rw, rh), 0, 0, gocv.InterpolationLinear)
	mirrored := gocv.NewMat()
	defer mirrored.Close()
	gocv.Flip(scaled, &mirrored, 1)
	if mirrored.Empty() {
		return errors.New("mirror video: empty result")
	}

	dst := image.Rect(ox, oy, ox+rw, oy+rh).Intersect(image.Rect(0, 0, frame.CanvasW, frame.CanvasH))
	if dst.Empty() {
		return nil
	}
	src := dst.Sub(image.Pt(ox, oy))

	from := mirrored.Region(src)
	defer from.Close()
	to := p.canvas.Region(dst)
	defer to.Close()
	from.CopyTo(&to)
	return nil
}

func (p *Preview) drawWireframe(indices []uint32, pt func(uint32) image.Point) {
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := pt(indices[i]), pt(indices[i+1]), pt(indices[i+2])
		gocv.Line(&p.canvas, a, b, wireColor, 1)
		gocv.Line(&p.canvas, b, c, wireColor, 1)
		gocv.Line(&p.canvas, c, a, wireColor, 1)
	}
}

func (p *Preview) fillTriangle(t Triangle) {
	pts := make([]image.Point, 3)
	for i, v := range t.V {
		pts[i] = image.Pt(int(v.X), int(v.Y))
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
	defer pv.Close()

	c := color.RGBA{
		R: uint8(float64(accessoryColor.R) * t.Shade),
		G: uint8(float64(accessoryColor.G) * t.Shade),
		B: uint8(float64(accessoryColor.B) * t.Shade),
		A: 255,
	}
	gocv.FillPoly(&p.canvas, pv, c)
}

func (p *Preview) publish(data []byte) {
	p.mu.Lock()
	p.jpeg = data
	p.seq++
	close(p.updated)
	p.updated = make(chan struct{})
	p.mu.Unlock()
}

// LastJPEG returns the most recent composed frame and its sequence number.
// The sequence is zero until the first frame is published.
func (p *Preview) LastJPEG() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq
}

// Updates returns a channel that is closed when the next frame is published.
func (p *Preview) Updates() <-chan struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updated
}

// Close releases the canvas.
func (p *Preview) Close() error {
	return p.canvas.Close()
}
