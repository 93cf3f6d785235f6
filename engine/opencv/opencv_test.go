//go:build opencv

package opencv

import (
	iface "FrameAnnotator/interface"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestCodec(t *testing.T) {
	codec := NewCodec()

	src := iface.NewFrame(64, 48, iface.LayoutRGBA)
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+1], src.Pix[i+2], src.Pix[i+3] = 10, 200, 30, 255
	}
	data, err := codec.Encode(src, 90)
	require.NoError(t, err)

	frame, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, iface.LayoutBGR, frame.Layout)
	assert.Equal(t, 64, frame.Width)
	assert.Equal(t, 48, frame.Height)
	assert.InDelta(t, 30, int(frame.Pix[0]), 6)
	assert.InDelta(t, 200, int(frame.Pix[1]), 6)

	_, err = codec.Decode([]byte("nope"))
	assert.Error(t, err)
}

func TestVision_WithoutCascade(t *testing.T) {
	v := &Vision{classifier: gocv.NewCascadeClassifier()}
	defer v.classifier.Close()

	t.Run("Convert", func(t *testing.T) {
		bgr := iface.Frame{Pix: []byte{1, 2, 3, 4, 5, 6}, Width: 2, Height: 1, Layout: iface.LayoutBGR}
		rgba := iface.NewFrame(2, 1, iface.LayoutRGBA)
		require.NoError(t, v.Convert(&rgba, bgr))
		assert.Equal(t, []byte{3, 2, 1, 255, 6, 5, 4, 255}, rgba.Pix)

		yuyv := iface.NewFrame(2, 1, iface.LayoutYUYV)
		assert.Error(t, v.Convert(&yuyv, rgba))
	})

	t.Run("PyrDown", func(t *testing.T) {
		out, err := v.PyrDown(iface.NewFrame(640, 480, iface.LayoutGray))
		require.NoError(t, err)
		assert.Equal(t, 320, out.Width)
		assert.Equal(t, 240, out.Height)
		assert.Len(t, out.Pix, 320*240)
	})

	t.Run("DrawRects", func(t *testing.T) {
		f := iface.NewFrame(20, 20, iface.LayoutRGBA)
		require.NoError(t, v.DrawRects(&f, []iface.Rect{{X: 2, Y: 2, Width: 10, Height: 10}}, color.RGBA{R: 255, A: 255}, 1))
		for _, p := range [][2]int{{2, 2}, {11, 2}, {2, 11}, {6, 2}} {
			i := p[1]*f.Stride() + p[0]*4
			assert.Equal(t, []byte{255, 0, 0, 255}, f.Pix[i:i+4], "pixel %v", p)
		}
		inside := 6*f.Stride() + 6*4
		assert.Equal(t, []byte{0, 0, 0, 0}, f.Pix[inside:inside+4])
	})

	t.Run("Detect", func(t *testing.T) {
		_, err := v.Detect(iface.NewFrame(8, 8, iface.LayoutGray))
		assert.Error(t, err)
	})
}

func TestNewVision_MissingCascade(t *testing.T) {
	_, err := NewVision("testdata/missing.xml")
	assert.Error(t, err)
}
