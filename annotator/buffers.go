package annotator

import iface "FrameAnnotator/interface"

// Buffers holds the per-node working frames. They are sized on the first
// frame and only reallocated when the incoming geometry changes.
type Buffers struct {
	Source iface.Frame
	RGBA   iface.Frame
	Gray   iface.Frame
}

// Ensure makes the buffers fit width x height with a source buffer in
// srcLayout. It reports whether anything was (re)allocated.
func (b *Buffers) Ensure(width, height int, srcLayout iface.Layout) bool {
	if b.fits(width, height, srcLayout) {
		return false
	}
	b.Source = iface.NewFrame(width, height, srcLayout)
	b.RGBA = iface.NewFrame(width, height, iface.LayoutRGBA)
	b.Gray = iface.NewFrame(width, height, iface.LayoutGray)
	return true
}

func (b *Buffers) fits(width, height int, srcLayout iface.Layout) bool {
	return b.Allocated() &&
		b.RGBA.Width == width && b.RGBA.Height == height &&
		b.Source.Layout == srcLayout
}

func (b *Buffers) Allocated() bool {
	return b.RGBA.Pix != nil
}

// Release drops the buffers so the next Ensure allocates fresh ones.
func (b *Buffers) Release() {
	*b = Buffers{}
}
