package engine

import (
	iface "FrameAnnotator/interface"
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestJPEGCodec(t *testing.T) {
	codec := NewJPEGCodec()

	t.Run("Decode packs YUYV", func(t *testing.T) {
		frame, err := codec.Decode(solidJPEG(t, 64, 48, color.RGBA{R: 200, G: 200, B: 200, A: 255}))
		require.NoError(t, err)
		assert.Equal(t, iface.LayoutYUYV, frame.Layout)
		assert.Equal(t, 64, frame.Width)
		assert.Equal(t, 48, frame.Height)
		assert.Len(t, frame.Pix, 64*48*2)
		assert.InDelta(t, 200, int(frame.Pix[0]), 3)
		assert.InDelta(t, 128, int(frame.Pix[1]), 3)
	})

	t.Run("Decode rejects garbage", func(t *testing.T) {
		_, err := codec.Decode([]byte("not a jpeg"))
		assert.Error(t, err)
		_, err = codec.Decode(nil)
		assert.Error(t, err)
	})

	t.Run("Encode round trip", func(t *testing.T) {
		frame := iface.NewFrame(33, 17, iface.LayoutRGBA)
		out, err := codec.Encode(frame, 50)
		require.NoError(t, err)
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 33, cfg.Width)
		assert.Equal(t, 17, cfg.Height)
	})

	t.Run("Encode rejects YUYV", func(t *testing.T) {
		_, err := codec.Encode(iface.NewFrame(4, 4, iface.LayoutYUYV), 50)
		assert.Error(t, err)
	})
}

func TestPackYUYV_OddWidth(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 3, 1))
	img.Pix = []byte{10, 20, 30}
	frame := PackYUYV(img)
	assert.Equal(t, []byte{10, 128, 20, 128, 30, 128}, frame.Pix)
}

func TestConvert(t *testing.T) {
	t.Run("YUYV to RGBA to Gray", func(t *testing.T) {
		src := iface.Frame{Pix: []byte{128, 128, 128, 128}, Width: 2, Height: 1, Layout: iface.LayoutYUYV}
		rgba := iface.NewFrame(2, 1, iface.LayoutRGBA)
		require.NoError(t, Convert(&rgba, src))
		assert.Equal(t, []byte{128, 128, 128, 255, 128, 128, 128, 255}, rgba.Pix)

		gray := iface.NewFrame(2, 1, iface.LayoutGray)
		require.NoError(t, Convert(&gray, rgba))
		assert.Equal(t, []byte{128, 128}, gray.Pix)
	})

	t.Run("gray weights", func(t *testing.T) {
		rgba := iface.Frame{Pix: []byte{255, 0, 0, 255, 0, 255, 0, 255, 0, 0, 255, 255}, Width: 3, Height: 1, Layout: iface.LayoutRGBA}
		gray := iface.NewFrame(3, 1, iface.LayoutGray)
		require.NoError(t, Convert(&gray, rgba))
		assert.Equal(t, []byte{76, 150, 29}, gray.Pix)
	})

	t.Run("BGR to RGBA", func(t *testing.T) {
		bgr := iface.Frame{Pix: []byte{1, 2, 3}, Width: 1, Height: 1, Layout: iface.LayoutBGR}
		rgba := iface.NewFrame(1, 1, iface.LayoutRGBA)
		require.NoError(t, Convert(&rgba, bgr))
		assert.Equal(t, []byte{3, 2, 1, 255}, rgba.Pix)
	})

	t.Run("errors", func(t *testing.T) {
		gray := iface.NewFrame(2, 2, iface.LayoutGray)
		yuyv := iface.NewFrame(2, 2, iface.LayoutYUYV)
		assert.Error(t, Convert(&yuyv, gray), "unsupported direction")

		small := iface.NewFrame(1, 1, iface.LayoutRGBA)
		assert.Error(t, Convert(&small, gray), "size mismatch")

		broken := iface.Frame{Pix: []byte{1}, Width: 2, Height: 2, Layout: iface.LayoutGray}
		rgba := iface.NewFrame(2, 2, iface.LayoutRGBA)
		assert.Error(t, Convert(&rgba, broken))
	})
}

func TestPyrDown(t *testing.T) {
	sizes := []struct{ w, h, dw, dh int }{
		{640, 480, 320, 240},
		{320, 240, 160, 120},
		{161, 121, 81, 61},
		{1, 1, 1, 1},
	}
	for _, s := range sizes {
		src := iface.NewFrame(s.w, s.h, iface.LayoutGray)
		for i := range src.Pix {
			src.Pix[i] = 77
		}
		dst, err := PyrDown(src)
		require.NoError(t, err)
		assert.Equal(t, s.dw, dst.Width)
		assert.Equal(t, s.dh, dst.Height)
		assert.Equal(t, iface.LayoutGray, dst.Layout)
		for _, v := range dst.Pix {
			if v != 77 {
				t.Fatalf("constant image changed under blur: got %d", v)
			}
		}
	}

	_, err := PyrDown(iface.Frame{})
	assert.Error(t, err)
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 2, reflect101(-2, 5))
	assert.Equal(t, 1, reflect101(-1, 5))
	assert.Equal(t, 3, reflect101(5, 5))
	assert.Equal(t, 2, reflect101(6, 5))
	assert.Equal(t, 0, reflect101(-2, 1))
	assert.Equal(t, 1, reflect101(-1, 2))
}

func TestDrawRects(t *testing.T) {
	frame := iface.NewFrame(10, 10, iface.LayoutRGBA)
	red := color.RGBA{R: 255, A: 255}
	require.NoError(t, DrawRects(&frame, []iface.Rect{{X: 2, Y: 2, Width: 4, Height: 4}, {X: 8, Y: 8, Width: 10, Height: 10}}, red, 1))

	px := func(x, y int) []byte {
		i := y*frame.Stride() + x*4
		return frame.Pix[i : i+4]
	}
	assert.Equal(t, []byte{255, 0, 0, 255}, px(2, 2))
	assert.Equal(t, []byte{255, 0, 0, 255}, px(6, 6))
	assert.Equal(t, []byte{255, 0, 0, 255}, px(4, 2))
	assert.Equal(t, []byte{0, 0, 0, 0}, px(4, 4), "inside stays untouched")
	assert.Equal(t, []byte{255, 0, 0, 255}, px(9, 8), "clipped rect still draws its visible edges")

	gray := iface.NewFrame(4, 4, iface.LayoutGray)
	assert.Error(t, DrawRects(&gray, nil, red, 1))
}

func TestPigoVision(t *testing.T) {
	_, err := NewPigoVision(nil, DefaultPigoConfig())
	assert.Error(t, err)

	_, err = LoadPigoVision("testdata/does-not-exist", DefaultPigoConfig())
	assert.Error(t, err)

	v := &PigoVision{cfg: DefaultPigoConfig()}
	_, err = v.Detect(iface.NewFrame(8, 8, iface.LayoutGray))
	assert.Error(t, err, "no classifier loaded")

	assert.Equal(t, iface.Rect{X: 0, Y: 0, Width: 15, Height: 15}, detectionRect(5, 5, 20, 100, 100))
	assert.Equal(t, iface.Rect{X: 40, Y: 30, Width: 20, Height: 20}, detectionRect(40, 50, 20, 100, 100))
	assert.Equal(t, iface.Rect{X: 90, Y: 90, Width: 10, Height: 10}, detectionRect(100, 100, 20, 100, 100))
}

func TestPigoVision_FindsFace(t *testing.T) {
	v, err := LoadPigoVision("../classifiers/facefinder", DefaultPigoConfig())
	require.NoError(t, err)
	defer v.Close()

	data, err := os.ReadFile("testdata/sample.jpg")
	require.NoError(t, err)
	src, err := NewJPEGCodec().Decode(data)
	require.NoError(t, err)

	rgba := iface.NewFrame(src.Width, src.Height, iface.LayoutRGBA)
	require.NoError(t, v.Convert(&rgba, src))
	gray := iface.NewFrame(src.Width, src.Height, iface.LayoutGray)
	require.NoError(t, v.Convert(&gray, rgba))

	scaled := gray
	for i := 0; i < 2; i++ {
		scaled, err = v.PyrDown(scaled)
		require.NoError(t, err)
	}

	for _, frame := range []iface.Frame{gray, scaled} {
		faces, err := v.Detect(frame)
		require.NoError(t, err)
		require.NotEmpty(t, faces, "%dx%d", frame.Width, frame.Height)
		for _, r := range faces {
			assert.GreaterOrEqual(t, r.X, 0)
			assert.GreaterOrEqual(t, r.Y, 0)
			assert.Positive(t, r.Width)
			assert.Positive(t, r.Height)
			assert.LessOrEqual(t, r.X+r.Width, frame.Width)
			assert.LessOrEqual(t, r.Y+r.Height, frame.Height)
		}
	}
}
