package engine

import (
	iface "FrameAnnotator/interface"
	"errors"
	"fmt"
	"image/color"
	"os"

	pigo "github.com/esimov/pigo/core"
)

// PigoConfig tunes the pure-Go cascade.
type PigoConfig struct {
	MinSize      int     `yaml:"minSize"`
	MaxSize      int     `yaml:"maxSize"` // 0 means the smaller frame side
	ShiftFactor  float64 `yaml:"shiftFactor"`
	ScaleFactor  float64 `yaml:"scaleFactor"`
	IoUThreshold float64 `yaml:"iouThreshold"`
	MinQuality   float32 `yaml:"minQuality"`
	Angle        float64 `yaml:"angle"`
}

func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:      20,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// PigoVision is a Vision backend that needs no native libraries.
type PigoVision struct {
	cfg        PigoConfig
	classifier *pigo.Pigo
}

// LoadPigoVision reads a pigo cascade (e.g. "facefinder") from path.
func LoadPigoVision(path string, cfg PigoConfig) (*PigoVision, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cascade: %w", err)
	}
	return NewPigoVision(cascade, cfg)
}

func NewPigoVision(cascade []byte, cfg PigoConfig) (v *PigoVision, err error) {
	if len(cascade) == 0 {
		return nil, errors.New("empty cascade")
	}
	// Unpack indexes into the packet without bounds checks.
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("malformed cascade: %v", r)
		}
	}()
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade: %w", err)
	}
	return &PigoVision{cfg: cfg, classifier: classifier}, nil
}

func (v *PigoVision) Convert(dst *iface.Frame, src iface.Frame) error {
	return Convert(dst, src)
}

func (v *PigoVision) PyrDown(src iface.Frame) (iface.Frame, error) {
	return PyrDown(src)
}

func (v *PigoVision) DrawRects(dst *iface.Frame, rects []iface.Rect, c color.RGBA, thickness int) error {
	return DrawRects(dst, rects, c, thickness)
}

func (v *PigoVision) Detect(gray iface.Frame) ([]iface.Rect, error) {
	if v.classifier == nil {
		return nil, errors.New("cascade not loaded")
	}
	if gray.Layout != iface.LayoutGray {
		return nil, fmt.Errorf("detection needs a Gray frame, got %s", gray.Layout)
	}
	if err := gray.Validate(); err != nil {
		return nil, err
	}
	maxSize := min(gray.Width, gray.Height)
	if v.cfg.MaxSize > 0 && v.cfg.MaxSize < maxSize {
		maxSize = v.cfg.MaxSize
	}
	params := pigo.CascadeParams{
		MinSize:     v.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: v.cfg.ShiftFactor,
		ScaleFactor: v.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   gray.Height,
			Cols:   gray.Width,
			Dim:    gray.Width,
		},
	}
	dets := v.classifier.RunCascade(params, v.cfg.Angle)
	dets = v.classifier.ClusterDetections(dets, v.cfg.IoUThreshold)

	rects := make([]iface.Rect, 0, len(dets))
	for _, d := range dets {
		if d.Q < v.cfg.MinQuality {
			continue
		}
		rects = append(rects, detectionRect(d.Row, d.Col, d.Scale, gray.Width, gray.Height))
	}
	return rects, nil
}

// detectionRect converts pigo's centre/scale form into a clipped rect.
func detectionRect(row, col, scale, w, h int) iface.Rect {
	x0, y0 := max(col-scale/2, 0), max(row-scale/2, 0)
	x1, y1 := min(col-scale/2+scale, w), min(row-scale/2+scale, h)
	return iface.Rect{X: x0, Y: y0, Width: max(x1-x0, 0), Height: max(y1-y0, 0)}
}

func (v *PigoVision) Close() error {
	v.classifier = nil
	return nil
}
