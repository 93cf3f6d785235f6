//go:build opencv

package cmd

import (
	"FrameAnnotator/engine/opencv"
	iface "FrameAnnotator/interface"
)

func openCVBackend(classifier string) (iface.Codec, iface.Vision, error) {
	vision, err := opencv.NewVision(classifier)
	if err != nil {
		return nil, nil, err
	}
	return opencv.NewCodec(), vision, nil
}
