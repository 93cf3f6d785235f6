package cmd

import (
	"FrameAnnotator/annotator"
	"FrameAnnotator/config"
	"FrameAnnotator/engine"
	iface "FrameAnnotator/interface"
	"FrameAnnotator/logger"
	"fmt"

	"go.uber.org/zap"
)

// buildAnnotator loads the configured backend. The returned Vision owns
// the classifier and must be closed by the caller.
func buildAnnotator(c *config.Config) (*annotator.Annotator, iface.Vision, error) {
	var (
		codec  iface.Codec
		vision iface.Vision
		err    error
	)
	switch c.Node.Backend {
	case config.BackendOpenCV:
		codec, vision, err = openCVBackend(c.Node.Classifier)
	case config.BackendPigo:
		codec = engine.NewJPEGCodec()
		vision, err = engine.LoadPigoVision(c.Node.Classifier, c.Pigo)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.Node.Backend)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load classifier: %w", err)
	}
	logger.Log().Info("Classifier loaded",
		zap.String("backend", c.Node.Backend), zap.String("path", c.Node.Classifier))

	opts := annotator.DefaultOptions()
	opts.Quality = c.Node.Quality
	opts.DetectWidth = c.Node.DetectWidth
	opts.Thickness = c.Node.Thickness
	return annotator.New(codec, vision, opts), vision, nil
}
