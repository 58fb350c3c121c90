package pose

// DrawRect describes where the source video lands on the canvas after the
// cover transform. Offsets are negative on the axis that overflows.
type DrawRect struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Cover scales a srcW×srcH video to fill a dstW×dstH canvas while keeping its
// aspect ratio, centering it and cropping whatever overflows.
func Cover(srcW, srcH, dstW, dstH float64) DrawRect {
	if srcW <= 0 || srcH <= 0 {
		return DrawRect{Width: dstW, Height: dstH}
	}
	scale := max(dstW/srcW, dstH/srcH)
	w, h := srcW*scale, srcH*scale
	return DrawRect{
		Width:   w,
		Height:  h,
		OffsetX: (dstW - w) / 2,
		OffsetY: (dstH - h) / 2,
	}
}
