package iface

import (
	"fmt"
	"image/color"
)

// Layout tags the pixel arrangement of a Frame.
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutYUYV           // packed 4:2:2, Y0 U Y1 V
	LayoutBGR
	LayoutRGBA
	LayoutGray
)

func (l Layout) Channels() int {
	switch l {
	case LayoutYUYV:
		return 2
	case LayoutBGR:
		return 3
	case LayoutRGBA:
		return 4
	case LayoutGray:
		return 1
	}
	return 0
}

func (l Layout) String() string {
	switch l {
	case LayoutYUYV:
		return "YUYV"
	case LayoutBGR:
		return "BGR"
	case LayoutRGBA:
		return "RGBA"
	case LayoutGray:
		return "Gray"
	}
	return "Unknown"
}

// Frame is a raw interleaved pixel buffer.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	Layout Layout
}

// NewFrame allocates a zeroed frame of the given size and layout.
func NewFrame(width, height int, layout Layout) Frame {
	return Frame{
		Pix:    make([]byte, width*height*layout.Channels()),
		Width:  width,
		Height: height,
		Layout: layout,
	}
}

// Stride is the number of bytes per row.
func (f Frame) Stride() int {
	return f.Width * f.Layout.Channels()
}

func (f Frame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) == 0
}

// Validate checks that the pixel slice matches the declared geometry.
func (f Frame) Validate() error {
	if f.Layout.Channels() == 0 {
		return fmt.Errorf("unknown pixel layout %d", f.Layout)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if want := f.Width * f.Height * f.Layout.Channels(); len(f.Pix) != want {
		return fmt.Errorf("%s frame %dx%d needs %d bytes, got %d", f.Layout, f.Width, f.Height, want, len(f.Pix))
	}
	return nil
}

// Rect is an axis-aligned rectangle in pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Message is the envelope exchanged with the flow runtime.
type Message struct {
	ID      string `json:"_msgid,omitempty"`
	Topic   string `json:"topic,omitempty"`
	Payload any    `json:"payload"`
}

// Codec converts between compressed images and raw frames.
type Codec interface {
	Decode(data []byte) (Frame, error)
	Encode(frame Frame, quality int) ([]byte, error)
}

// Vision is the set of image operations the annotator needs from a
// computer-vision backend.
type Vision interface {
	// Convert writes src into dst, converting from src.Layout to dst.Layout.
	// dst must already be allocated with the same size as src.
	Convert(dst *Frame, src Frame) error
	// PyrDown blurs and halves src, returning ((w+1)/2, (h+1)/2).
	PyrDown(src Frame) (Frame, error)
	// Detect returns the regions found in a gray frame.
	Detect(gray Frame) ([]Rect, error)
	// DrawRects outlines every rect on dst in place.
	DrawRects(dst *Frame, rects []Rect, c color.RGBA, thickness int) error
	Close() error
}
