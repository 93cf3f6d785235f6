//go:build !opencv

package cmd

import (
	"FrameAnnotator/config"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildAnnotator_OpenCVNotCompiledIn(t *testing.T) {
	c := config.Default()
	c.Node.Backend = config.BackendOpenCV
	c.Node.Classifier = config.DefaultOpenCVCascade

	a, vision, err := buildAnnotator(c)
	assert.ErrorIs(t, err, ErrOpenCVUnavailable)
	assert.Nil(t, a)
	assert.Nil(t, vision)
}
