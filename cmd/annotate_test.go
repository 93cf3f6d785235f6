package cmd

import (
	"FrameAnnotator/annotator"
	"FrameAnnotator/config"
	"FrameAnnotator/engine"
	iface "FrameAnnotator/interface"
	"FrameAnnotator/node"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedVision struct{}

func (fixedVision) Convert(dst *iface.Frame, src iface.Frame) error { return engine.Convert(dst, src) }
func (fixedVision) PyrDown(src iface.Frame) (iface.Frame, error)  { return engine.PyrDown(src) }
func (fixedVision) Detect(iface.Frame) ([]iface.Rect, error) {
	return []iface.Rect{{X: 1, Y: 1, Width: 3, Height: 3}}, nil
}
func (fixedVision) DrawRects(dst *iface.Frame, rects []iface.Rect, c color.RGBA, thickness int) error {
	return engine.DrawRects(dst, rects, c, thickness)
}
func (fixedVision) Close() error { return nil }

func writeJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testNode() *node.Node {
	opts := annotator.DefaultOptions()
	opts.Logger = zap.NewNop()
	return node.New(node.Config{}, annotator.New(engine.NewJPEGCodec(), fixedVision{}, opts), node.WithLogger(zap.NewNop()))
}

func TestAnnotateFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeJPEG(t, dir, "a.jpg", 32, 24),
		filepath.Join(dir, "missing.jpg"),
		writeJPEG(t, dir, "b.jpg", 40, 30),
	}
	out := filepath.Join(dir, "out.jpg")

	require.NoError(t, annotateFiles(context.Background(), testNode(), files, out))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width, "the last decodable frame is written")
	assert.Equal(t, 30, cfg.Height)
}

func TestAnnotateFiles_NothingDecodable(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))

	err := annotateFiles(context.Background(), testNode(), []string{bad}, filepath.Join(dir, "out.jpg"))
	assert.ErrorIs(t, err, annotator.ErrNoFrame)
	assert.NoFileExists(t, filepath.Join(dir, "out.jpg"))
}

func TestAnnotateFiles_Cancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := annotateFiles(ctx, testNode(), []string{writeJPEG(t, dir, "a.jpg", 8, 8)}, filepath.Join(dir, "out.jpg"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildAnnotator_MissingClassifier(t *testing.T) {
	c := config.Default()
	c.Node.Classifier = filepath.Join(t.TempDir(), "facefinder")
	_, _, err := buildAnnotator(c)
	assert.ErrorContains(t, err, "failed to load classifier")
}

func TestBuildSinks(t *testing.T) {
	cfg = config.Default()
	t.Cleanup(func() { cfg = nil })
	cfg.Output.WebhookURL = "http://127.0.0.1:1/hook"

	sinks := buildSinks()
	require.Len(t, sinks, 2)
	assert.Equal(t, "file", sinks[0].Name())
	assert.Equal(t, "webhook", sinks[1].Name())
}
