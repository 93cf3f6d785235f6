//go:build !opencv

package cmd

import (
	iface "FrameAnnotator/interface"
	"errors"
)

// ErrOpenCVUnavailable is returned for backend: opencv in builds without the opencv tag.
var ErrOpenCVUnavailable = errors.New("opencv backend not compiled in, rebuild with -tags opencv")

func openCVBackend(string) (iface.Codec, iface.Vision, error) {
	return nil, nil, ErrOpenCVUnavailable
}
