// Package opencv implements the codec and vision capabilities on top of
// gocv. It links against OpenCV through cgo and is only built with the
// opencv build tag:
//
//	go build -tags opencv ./...
package opencv
