//go:build opencv

package opencv

import (
	iface "FrameAnnotator/interface"
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

func matType(l iface.Layout) (gocv.MatType, error) {
	switch l {
	case iface.LayoutGray:
		return gocv.MatTypeCV8UC1, nil
	case iface.LayoutYUYV:
		return gocv.MatTypeCV8UC2, nil
	case iface.LayoutBGR:
		return gocv.MatTypeCV8UC3, nil
	case iface.LayoutRGBA:
		return gocv.MatTypeCV8UC4, nil
	}
	return 0, fmt.Errorf("no mat type for %s", l)
}

func toMat(f iface.Frame) (gocv.Mat, error) {
	if err := f.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	mt, err := matType(f.Layout)
	if err != nil {
		return gocv.NewMat(), err
	}
	return gocv.NewMatFromBytes(f.Height, f.Width, mt, f.Pix)
}

// copyBack copies the pixels of m into f, which must have the same geometry.
func copyBack(f *iface.Frame, m gocv.Mat) error {
	data := m.ToBytes()
	if len(data) != len(f.Pix) {
		return fmt.Errorf("mat holds %d bytes, frame expects %d", len(data), len(f.Pix))
	}
	copy(f.Pix, data)
	return nil
}

// Codec decodes with cv::imdecode into BGR frames and encodes RGBA frames as JPEG.
type Codec struct{}

func NewCodec() *Codec {
	return &Codec{}
}

func (c *Codec) Decode(data []byte) (iface.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return iface.Frame{}, err
	}
	defer mat.Close()
	if mat.Empty() {
		return iface.Frame{}, errors.New("decoded image is empty or unsupported format")
	}
	return iface.Frame{
		Pix:    mat.ToBytes(),
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Layout: iface.LayoutBGR,
	}, nil
}

func (c *Codec) Encode(frame iface.Frame, quality int) ([]byte, error) {
	src, err := toMat(frame)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	switch frame.Layout {
	case iface.LayoutRGBA:
		err = gocv.CvtColor(src, &bgr, gocv.ColorRGBAToBGR)
	case iface.LayoutGray, iface.LayoutBGR:
		src.CopyTo(&bgr)
	default:
		err = fmt.Errorf("cannot encode %s frame", frame.Layout)
	}
	if err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, bgr, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Vision runs colour conversion, pyramids, drawing and a Haar cascade through OpenCV.
type Vision struct {
	classifier gocv.CascadeClassifier
	loaded     bool
}

// NewVision loads the cascade at path once; it is read-only afterwards.
func NewVision(path string) (*Vision, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return nil, fmt.Errorf("error reading cascade file: %s", path)
	}
	return &Vision{classifier: classifier, loaded: true}, nil
}

func conversionCode(from, to iface.Layout) (gocv.ColorConversionCode, error) {
	switch {
	case from == iface.LayoutYUYV && to == iface.LayoutRGBA:
		return gocv.ColorYUVToRGBAYUY2, nil
	case from == iface.LayoutBGR && to == iface.LayoutRGBA:
		return gocv.ColorBGRToRGBA, nil
	case from == iface.LayoutGray && to == iface.LayoutRGBA:
		return gocv.ColorGrayToRGBA, nil
	case from == iface.LayoutRGBA && to == iface.LayoutGray:
		return gocv.ColorRGBAToGray, nil
	}
	return 0, fmt.Errorf("unsupported conversion %s -> %s", from, to)
}

func (v *Vision) Convert(dst *iface.Frame, src iface.Frame) error {
	if dst.Width != src.Width || dst.Height != src.Height {
		return fmt.Errorf("size mismatch: %dx%d -> %dx%d", src.Width, src.Height, dst.Width, dst.Height)
	}
	if src.Layout == dst.Layout {
		copy(dst.Pix, src.Pix)
		return nil
	}
	code, err := conversionCode(src.Layout, dst.Layout)
	if err != nil {
		return err
	}
	in, err := toMat(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.CvtColor(in, &out, code); err != nil {
		return err
	}
	return copyBack(dst, out)
}

func (v *Vision) PyrDown(src iface.Frame) (iface.Frame, error) {
	in, err := toMat(src)
	if err != nil {
		return iface.Frame{}, err
	}
	defer in.Close()
	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.PyrDown(in, &out, image.Point{}, gocv.BorderDefault); err != nil {
		return iface.Frame{}, err
	}
	return iface.Frame{
		Pix:    out.ToBytes(),
		Width:  out.Cols(),
		Height: out.Rows(),
		Layout: src.Layout,
	}, nil
}

func (v *Vision) Detect(gray iface.Frame) ([]iface.Rect, error) {
	if !v.loaded {
		return nil, errors.New("cascade not loaded")
	}
	if gray.Layout != iface.LayoutGray {
		return nil, fmt.Errorf("detection needs a Gray frame, got %s", gray.Layout)
	}
	in, err := toMat(gray)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	found := v.classifier.DetectMultiScale(in)
	rects := make([]iface.Rect, len(found))
	for i, r := range found {
		rects[i] = iface.Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
	}
	return rects, nil
}

func (v *Vision) DrawRects(dst *iface.Frame, rects []iface.Rect, c color.RGBA, thickness int) error {
	if len(rects) == 0 {
		return nil
	}
	mat, err := toMat(*dst)
	if err != nil {
		return err
	}
	defer mat.Close()
	// gocv hands the colour to OpenCV as B,G,R,A; swap so channel 0 of an RGBA mat gets R.
	if dst.Layout == iface.LayoutRGBA {
		c = scalarOrder(c)
	}
	for _, r := range rects {
		rect := image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
		if err := gocv.Rectangle(&mat, rect, c, thickness); err != nil {
			return fmt.Errorf("failed to draw rectangle: %v", err)
		}
	}
	return copyBack(dst, mat)
}

func scalarOrder(c color.RGBA) color.RGBA {
	return color.RGBA{R: c.B, G: c.G, B: c.R, A: c.A}
}

func (v *Vision) Close() error {
	if !v.loaded {
		return nil
	}
	v.loaded = false
	return v.classifier.Close()
}
