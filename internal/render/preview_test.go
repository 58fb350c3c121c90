package render

import (
	"testing"

	"go.viam.com/test"
	"gocv.io/x/gocv"

	"github.com/ayusman/abhinaya/internal/geom"
	"github.com/ayusman/abhinaya/internal/logging"
	"github.com/ayusman/abhinaya/internal/occluder"
	"github.com/ayusman/abhinaya/internal/overlay"
	"github.com/ayusman/abhinaya/internal/pose"
)

func decode(t *testing.T, data []byte) gocv.Mat {
	t.Helper()
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { img.Close() })
	return img
}

// brightness sums the BGR channels of the pixel at (x, y).
func brightness(img gocv.Mat, x, y int) int {
	v := img.GetVecbAt(y, x)
	return int(v[0]) + int(v[1]) + int(v[2])
}

func newFrame(draws []overlay.Draw, occluders []*occluder.Mesh) *Frame {
	return &Frame{
		CanvasW:   64,
		CanvasH:   48,
		Rect:      pose.Cover(32, 24, 64, 48),
		Draws:     draws,
		Clip:      geom.FarPlane,
		Occluders: occluders,
	}
}

func TestPreview_Submit(t *testing.T) {
	t.Run("rejects empty canvas", func(t *testing.T) {
		p := NewPreview(Options{}, logging.NewNop())
		defer p.Close()
		err := p.Submit(&Frame{}, nil)
		test.That(t, err, test.ShouldNotBeNil)
		_, seq := p.LastJPEG()
		test.That(t, seq, test.ShouldEqual, uint64(0))
	})

	t.Run("draws accessory over black", func(t *testing.T) {
		p := NewPreview(Options{}, logging.NewNop())
		defer p.Close()
		updates := p.Updates()

		err := p.Submit(newFrame([]overlay.Draw{draw(facing("a", 0))}, nil), nil)
		test.That(t, err, test.ShouldBeNil)

		select {
		case <-updates:
		default:
			t.Fatal("update channel not closed after submit")
		}
		data, seq := p.LastJPEG()
		test.That(t, seq, test.ShouldEqual, uint64(1))
		img := decode(t, data)
		test.That(t, img.Cols(), test.ShouldEqual, 64)
		test.That(t, img.Rows(), test.ShouldEqual, 48)
		test.That(t, brightness(img, 32, 28), test.ShouldBeGreaterThan, 200)
		test.That(t, brightness(img, 2, 2), test.ShouldBeLessThan, 40)
	})

	t.Run("occluder hides accessory behind it", func(t *testing.T) {
		p := NewPreview(Options{}, logging.NewNop())
		defer p.Close()
		mesh := &occluder.Mesh{Positions: facing("occ", 5).Vertices, Indices: []uint32{0, 1, 2}, Visible: true}

		err := p.Submit(newFrame([]overlay.Draw{draw(facing("a", 0))}, []*occluder.Mesh{mesh}), nil)
		test.That(t, err, test.ShouldBeNil)
		data, _ := p.LastJPEG()
		test.That(t, brightness(decode(t, data), 32, 28), test.ShouldBeLessThan, 40)
	})

	t.Run("hidden occluder does not occlude", func(t *testing.T) {
		p := NewPreview(Options{}, logging.NewNop())
		defer p.Close()
		mesh := &occluder.Mesh{Positions: facing("occ", 5).Vertices, Indices: []uint32{0, 1, 2}}

		err := p.Submit(newFrame([]overlay.Draw{draw(facing("a", 0))}, []*occluder.Mesh{mesh}), nil)
		test.That(t, err, test.ShouldBeNil)
		data, _ := p.LastJPEG()
		test.That(t, brightness(decode(t, data), 32, 28), test.ShouldBeGreaterThan, 200)
	})

	t.Run("video is scaled to cover the canvas", func(t *testing.T) {
		p := NewPreview(Options{JPEGQuality: 95}, logging.NewNop())
		defer p.Close()
		video := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 255, 0), 24, 32, gocv.MatTypeCV8UC3)
		defer video.Close()

		err := p.Submit(newFrame(nil, nil), &video)
		test.That(t, err, test.ShouldBeNil)
		data, _ := p.LastJPEG()
		img := decode(t, data)
		for _, pt := range [][2]int{{1, 1}, {62, 46}, {32, 24}} {
			v := img.GetVecbAt(pt[1], pt[0])
			test.That(t, int(v[2]), test.ShouldBeGreaterThan, 200)
			test.That(t, int(v[0]), test.ShouldBeLessThan, 40)
		}
	})

	t.Run("canvas follows frame size", func(t *testing.T) {
		p := NewPreview(Options{Wireframe: true}, logging.NewNop())
		defer p.Close()
		test.That(t, p.Submit(newFrame(nil, nil), nil), test.ShouldBeNil)
		f := newFrame(nil, nil)
		f.CanvasW, f.CanvasH = 40, 30
		test.That(t, p.Submit(f, nil), test.ShouldBeNil)

		data, seq := p.LastJPEG()
		test.That(t, seq, test.ShouldEqual, uint64(2))
		test.That(t, decode(t, data).Cols(), test.ShouldEqual, 40)
	})
}

func TestDiscard(t *testing.T) {
	var r Renderer = Discard{}
	test.That(t, r.Submit(&Frame{}, nil), test.ShouldBeNil)
	test.That(t, r.Close(), test.ShouldBeNil)
	var _ Renderer = (*Preview)(nil)
}
