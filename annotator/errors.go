package annotator

import (
	"errors"
	"fmt"
)

var (
	ErrDecode     = errors.New("decode error")
	ErrConversion = errors.New("conversion error")
	ErrDetection  = errors.New("detection error")
	ErrEncode     = errors.New("encode error")

	// ErrNoFrame is returned by OnShutdown and Snapshot when no frame was ever processed.
	ErrNoFrame = errors.New("no annotated frame available")
	ErrClosed  = errors.New("annotator is shut down")
)

// StageError reports which pipeline stage failed.
type StageError struct {
	Kind error // one of ErrDecode, ErrConversion, ErrDetection, ErrEncode
	Op   string
	Err  error
}

func (e *StageError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stageErr(kind error, op string, err error) error {
	return &StageError{Kind: kind, Op: op, Err: err}
}

// Stage returns a short label for the failed stage, or "" when err is not a StageError.
func Stage(err error) string {
	var se *StageError
	if !errors.As(err, &se) {
		return ""
	}
	switch se.Kind {
	case ErrDecode:
		return "decode"
	case ErrConversion:
		return "convert"
	case ErrDetection:
		return "detect"
	case ErrEncode:
		return "encode"
	}
	return "unknown"
}
