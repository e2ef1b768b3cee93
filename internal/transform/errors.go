package transform

import "fmt"

// DecodeError signals that a source payload was not valid base64 or that the
// decoded bytes are not a recognizable raster image. It is never retried.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode image: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ResolutionError is returned when resolution verification is requested and
// the source exceeds MaxResolution. The displayed limit keeps the original
// 10e6 divisor even though the guard divides by 1e6-scale pixels.
type ResolutionError struct {
	Width  int
	Height int
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf(
		"image size excessive, uploaded images must be smaller than %v million pixels",
		float64(MaxResolution)/10e6,
	)
}
