package annotator

import (
	iface "FrameAnnotator/interface"
	"FrameAnnotator/logger"
	"fmt"
	"image/color"
	"math"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const (
	DefaultQuality     = 50
	DefaultDetectWidth = 320
)

// Red is the outline colour used for detected faces.
var Red = color.RGBA{R: 255, G: 0, B: 0, A: 255}

type Options struct {
	// Quality is the JPEG quality used when the final frame is emitted.
	Quality int
	// DetectWidth is the source width above which a second pyramid level is taken.
	DetectWidth int
	Color       color.RGBA
	Thickness   int
	Logger      *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		Quality:     DefaultQuality,
		DetectWidth: DefaultDetectWidth,
		Color:       Red,
		Thickness:   1,
	}
}

// Result describes the outcome of one OnFrame call.
type Result struct {
	Dropped      bool         `json:"dropped"`
	Width        int          `json:"width,omitempty"`
	Height       int          `json:"height,omitempty"`
	DetectWidth  int          `json:"detectWidth,omitempty"`
	DetectHeight int          `json:"detectHeight,omitempty"`
	Reallocated  bool         `json:"reallocated,omitempty"`
	Faces        []iface.Rect `json:"faces"`
}

// Annotator decodes frames, finds faces at reduced resolution and draws
// them onto the full-resolution RGBA buffer. At most one frame is in
// flight; frames arriving meanwhile are dropped.
type Annotator struct {
	codec  iface.Codec
	vision iface.Vision
	opts   Options
	log    *zap.Logger

	busy   atomic.Bool
	mu     sync.Mutex
	bufs   Buffers
	closed bool
}

func New(codec iface.Codec, vision iface.Vision, opts Options) *Annotator {
	def := DefaultOptions()
	if opts.Quality <= 0 {
		opts.Quality = def.Quality
	}
	if opts.DetectWidth <= 0 {
		opts.DetectWidth = def.DetectWidth
	}
	if opts.Color == (color.RGBA{}) {
		opts.Color = def.Color
	}
	if opts.Thickness <= 0 {
		opts.Thickness = def.Thickness
	}
	l := opts.Logger
	if l == nil {
		l = logger.Log()
	}
	return &Annotator{codec: codec, vision: vision, opts: opts, log: l}
}

func (a *Annotator) Options() Options {
	return a.opts
}

// Busy reports whether a frame is being processed right now.
func (a *Annotator) Busy() bool {
	return a.busy.Load()
}

// OnFrame runs the detection pipeline on one compressed frame.
func (a *Annotator) OnFrame(payload any) (Result, error) {
	if !a.busy.CompareAndSwap(false, true) {
		return Result{Dropped: true}, nil
	}
	defer a.busy.Store(false)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Result{}, ErrClosed
	}
	return a.process(payload)
}

func (a *Annotator) process(payload any) (res Result, err error) {
	kind := ErrDecode
	defer func() {
		if r := recover(); r != nil {
			err = stageErr(kind, "panic", fmt.Errorf("%v", r))
		}
	}()

	data, err := CoercePayload(payload)
	if err != nil {
		return res, stageErr(ErrDecode, "payload", err)
	}
	raw, err := a.codec.Decode(data)
	if err != nil {
		return res, stageErr(ErrDecode, "jpeg", err)
	}
	if err := raw.Validate(); err != nil {
		return res, stageErr(ErrDecode, "jpeg", err)
	}

	kind = ErrConversion
	res.Width, res.Height = raw.Width, raw.Height
	res.Reallocated = a.bufs.Ensure(raw.Width, raw.Height, raw.Layout)
	if res.Reallocated {
		a.log.Debug("Allocated frame buffers",
			zap.Int("width", raw.Width), zap.Int("height", raw.Height), zap.Stringer("layout", raw.Layout))
	}
	copy(a.bufs.Source.Pix, raw.Pix)
	if err := a.vision.Convert(&a.bufs.RGBA, a.bufs.Source); err != nil {
		return res, stageErr(ErrConversion, a.bufs.Source.Layout.String()+"->RGBA", err)
	}
	if err := a.vision.Convert(&a.bufs.Gray, a.bufs.RGBA); err != nil {
		return res, stageErr(ErrConversion, "RGBA->Gray", err)
	}

	scaled, err := a.downscale(a.bufs.Gray)
	if err != nil {
		return res, stageErr(ErrConversion, "pyrDown", err)
	}
	res.DetectWidth, res.DetectHeight = scaled.Width, scaled.Height

	kind = ErrDetection
	found, err := a.vision.Detect(scaled)
	if err != nil {
		return res, stageErr(ErrDetection, "cascade", err)
	}

	res.Faces = make([]iface.Rect, 0, len(found))
	for i, r := range found {
		full := Rescale(r, raw.Width, raw.Height, scaled.Width, scaled.Height)
		res.Faces = append(res.Faces, full)
		a.log.Info("Face detected",
			zap.Int("index", i),
			zap.Int("x", full.X), zap.Int("y", full.Y),
			zap.Int("w", full.Width), zap.Int("h", full.Height))
	}
	if len(res.Faces) > 0 {
		kind = ErrConversion
		if err := a.vision.DrawRects(&a.bufs.RGBA, res.Faces, a.opts.Color, a.opts.Thickness); err != nil {
			return res, stageErr(ErrConversion, "draw", err)
		}
	}
	return res, nil
}

// downscale halves gray once, and once more when the source is wider than DetectWidth.
func (a *Annotator) downscale(gray iface.Frame) (iface.Frame, error) {
	scaled, err := a.vision.PyrDown(gray)
	if err != nil {
		return iface.Frame{}, err
	}
	if gray.Width > a.opts.DetectWidth {
		scaled, err = a.vision.PyrDown(scaled)
		if err != nil {
			return iface.Frame{}, err
		}
	}
	if scaled.Empty() {
		return iface.Frame{}, fmt.Errorf("pyramid produced an empty %dx%d frame", scaled.Width, scaled.Height)
	}
	return scaled, nil
}

// Rescale maps r from a scaledW x scaledH frame onto a fullW x fullH frame
// and clamps the result to the full frame.
func Rescale(r iface.Rect, fullW, fullH, scaledW, scaledH int) iface.Rect {
	xRatio := float64(fullW) / float64(scaledW)
	yRatio := float64(fullH) / float64(scaledH)

	x := clamp(int(math.Round(float64(r.X)*xRatio)), 0, fullW)
	y := clamp(int(math.Round(float64(r.Y)*yRatio)), 0, fullH)
	w := clamp(int(math.Round(float64(r.Width)*xRatio)), 0, fullW-x)
	h := clamp(int(math.Round(float64(r.Height)*yRatio)), 0, fullH-y)
	return iface.Rect{X: x, Y: y, Width: w, Height: h}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Snapshot encodes the current annotated frame without releasing it.
func (a *Annotator) Snapshot(quality int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	if !a.bufs.Allocated() {
		return nil, ErrNoFrame
	}
	return a.encode(quality)
}

// OnShutdown encodes the last annotated frame at the configured quality
// and releases the working buffers. It waits for an in-flight frame.
func (a *Annotator) OnShutdown() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	a.closed = true
	defer a.bufs.Release()
	if !a.bufs.Allocated() {
		return nil, ErrNoFrame
	}
	return a.encode(a.opts.Quality)
}

func (a *Annotator) encode(quality int) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = stageErr(ErrEncode, "panic", fmt.Errorf("%v", r))
		}
	}()
	out, err = a.codec.Encode(a.bufs.RGBA, quality)
	if err != nil {
		return nil, stageErr(ErrEncode, "jpeg", err)
	}
	return out, nil
}
