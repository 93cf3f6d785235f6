package engine

import (
	iface "FrameAnnotator/interface"
	"fmt"
	"image/color"
)

// Convert writes src into dst converting between pixel layouts.
// Supported: YUYV->RGBA, BGR->RGBA, Gray->RGBA, RGBA->Gray and same-layout copies.
func Convert(dst *iface.Frame, src iface.Frame) error {
	if dst == nil {
		return fmt.Errorf("nil destination frame")
	}
	if err := src.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if dst.Width != src.Width || dst.Height != src.Height {
		return fmt.Errorf("size mismatch: %dx%d -> %dx%d", src.Width, src.Height, dst.Width, dst.Height)
	}

	switch {
	case src.Layout == dst.Layout:
		copy(dst.Pix, src.Pix)
	case src.Layout == iface.LayoutYUYV && dst.Layout == iface.LayoutRGBA:
		yuyvToRGBA(dst, src)
	case src.Layout == iface.LayoutBGR && dst.Layout == iface.LayoutRGBA:
		for i, j := 0, 0; i < len(src.Pix); i, j = i+3, j+4 {
			dst.Pix[j], dst.Pix[j+1], dst.Pix[j+2], dst.Pix[j+3] = src.Pix[i+2], src.Pix[i+1], src.Pix[i], 0xff
		}
	case src.Layout == iface.LayoutGray && dst.Layout == iface.LayoutRGBA:
		for i, v := range src.Pix {
			j := i * 4
			dst.Pix[j], dst.Pix[j+1], dst.Pix[j+2], dst.Pix[j+3] = v, v, v, 0xff
		}
	case src.Layout == iface.LayoutRGBA && dst.Layout == iface.LayoutGray:
		for i := range dst.Pix {
			j := i * 4
			dst.Pix[i] = grayOf(src.Pix[j], src.Pix[j+1], src.Pix[j+2])
		}
	default:
		return fmt.Errorf("unsupported conversion %s -> %s", src.Layout, dst.Layout)
	}
	return nil
}

// grayOf uses BT.601 weights in 14-bit fixed point.
func grayOf(r, g, b uint8) uint8 {
	return uint8((uint32(r)*4899 + uint32(g)*9617 + uint32(b)*1868 + 8192) >> 14)
}

func yuyvToRGBA(dst *iface.Frame, src iface.Frame) {
	w := src.Width
	sStride, dStride := src.Stride(), dst.Stride()
	for y := 0; y < src.Height; y++ {
		s := src.Pix[y*sStride : (y+1)*sStride]
		d := dst.Pix[y*dStride : (y+1)*dStride]
		for x := 0; x < w; x += 2 {
			y0, u, v := s[2*x], s[2*x+1], uint8(128)
			if x+1 < w {
				v = s[2*x+3]
			}
			r, g, b := color.YCbCrToRGB(y0, u, v)
			d[4*x], d[4*x+1], d[4*x+2], d[4*x+3] = r, g, b, 0xff
			if x+1 < w {
				r, g, b = color.YCbCrToRGB(s[2*x+2], u, v)
				d[4*x+4], d[4*x+5], d[4*x+6], d[4*x+7] = r, g, b, 0xff
			}
		}
	}
}
