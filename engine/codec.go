package engine

import (
	iface "FrameAnnotator/interface"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// JPEGCodec decodes JPEG into packed YUYV frames and encodes RGBA/Gray
// frames back to JPEG.
type JPEGCodec struct{}

func NewJPEGCodec() *JPEGCodec {
	return &JPEGCodec{}
}

func (c *JPEGCodec) Decode(data []byte) (iface.Frame, error) {
	if len(data) == 0 {
		return iface.Frame{}, fmt.Errorf("empty jpeg buffer")
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return iface.Frame{}, err
	}
	return PackYUYV(img), nil
}

func (c *JPEGCodec) Encode(frame iface.Frame, quality int) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}
	rect := image.Rect(0, 0, frame.Width, frame.Height)
	var img image.Image
	switch frame.Layout {
	case iface.LayoutRGBA:
		img = &image.RGBA{Pix: frame.Pix, Stride: frame.Stride(), Rect: rect}
	case iface.LayoutGray:
		img = &image.Gray{Pix: frame.Pix, Stride: frame.Stride(), Rect: rect}
	default:
		return nil, fmt.Errorf("cannot encode %s frame", frame.Layout)
	}
	var buf bytes.Buffer
	buf.Grow(frame.Width * frame.Height / 4)
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackYUYV interleaves img as Y0 U Y1 V. Chroma of each pair is taken from
// its even pixel; a trailing odd pixel keeps only Y and U.
func PackYUYV(img image.Image) iface.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	f := iface.NewFrame(w, h, iface.LayoutYUYV)
	at := ycbcrSampler(img)
	stride := f.Stride()
	for y := 0; y < h; y++ {
		row := f.Pix[y*stride : (y+1)*stride]
		for x := 0; x < w; x += 2 {
			y0, cb, cr := at(b.Min.X+x, b.Min.Y+y)
			row[2*x] = y0
			row[2*x+1] = cb
			if x+1 < w {
				y1, _, _ := at(b.Min.X+x+1, b.Min.Y+y)
				row[2*x+2] = y1
				row[2*x+3] = cr
			}
		}
	}
	return f
}

func ycbcrSampler(img image.Image) func(x, y int) (uint8, uint8, uint8) {
	switch m := img.(type) {
	case *image.YCbCr:
		return func(x, y int) (uint8, uint8, uint8) {
			yi, ci := m.YOffset(x, y), m.COffset(x, y)
			return m.Y[yi], m.Cb[ci], m.Cr[ci]
		}
	case *image.Gray:
		return func(x, y int) (uint8, uint8, uint8) {
			return m.GrayAt(x, y).Y, 128, 128
		}
	}
	return func(x, y int) (uint8, uint8, uint8) {
		r, g, b, _ := img.At(x, y).RGBA()
		return color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
	}
}
