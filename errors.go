package yolostream

import (
	"github.com/pkg/errors"
)

var (
	// ErrSourceUnavailable is returned when a camera device or video file
	// cannot be opened.  It is reported once when a stream starts and is
	// never retried
	ErrSourceUnavailable = errors.New("frame source unavailable")

	// ErrEndOfStream signals that a frame source has no more frames.  It is a
	// normal termination signal rather than a failure
	ErrEndOfStream = errors.New("end of stream")

	// ErrDecode is returned when uploaded bytes are not a decodable image
	ErrDecode = errors.New("image decode failed")

	// ErrFrameProcessing is returned when inference, annotation or encoding
	// of a frame fails mid-stream.  The stream is aborted rather than the
	// frame skipped
	ErrFrameProcessing = errors.New("frame processing failed")
)
