package engine

import (
	iface "FrameAnnotator/interface"
	"fmt"
	"image/color"
)

// DrawRects outlines each rect on an RGBA frame. A rect covers the
// pixels from (X, Y) to (X+Width, Y+Height) inclusive; thickness grows
// the outline inwards. Anything outside the frame is clipped.
func DrawRects(dst *iface.Frame, rects []iface.Rect, c color.RGBA, thickness int) error {
	if dst == nil || dst.Layout != iface.LayoutRGBA {
		return fmt.Errorf("outlines can only be drawn on RGBA frames")
	}
	if err := dst.Validate(); err != nil {
		return err
	}
	if thickness < 1 {
		thickness = 1
	}
	for _, r := range rects {
		x0, y0 := r.X, r.Y
		x1, y1 := r.X+r.Width, r.Y+r.Height
		for k := 0; k < thickness; k++ {
			hline(dst, x0, x1, y0+k, c)
			hline(dst, x0, x1, y1-k, c)
			vline(dst, x0+k, y0, y1, c)
			vline(dst, x1-k, y0, y1, c)
		}
	}
	return nil
}

func hline(f *iface.Frame, x0, x1, y int, c color.RGBA) {
	if y < 0 || y >= f.Height {
		return
	}
	x0, x1 = max(x0, 0), min(x1, f.Width-1)
	for x := x0; x <= x1; x++ {
		setRGBA(f, x, y, c)
	}
}

func vline(f *iface.Frame, x, y0, y1 int, c color.RGBA) {
	if x < 0 || x >= f.Width {
		return
	}
	y0, y1 = max(y0, 0), min(y1, f.Height-1)
	for y := y0; y <= y1; y++ {
		setRGBA(f, x, y, c)
	}
}

func setRGBA(f *iface.Frame, x, y int, c color.RGBA) {
	i := y*f.Stride() + x*4
	f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = c.R, c.G, c.B, c.A
}
