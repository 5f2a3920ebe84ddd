// Package source provides the frame sources a detection stream reads from,
// a live camera device or a video file on disk.
package source

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"gocv.io/x/gocv"
)

// ErrFrameRead is returned by a VideoFile when a frame cannot be read before
// the end of the file the container reports, ie: a corrupt frame or a file
// truncated mid-read.  Unlike yolostream.ErrEndOfStream it is a failure
var ErrFrameRead = errors.New("frame read failed before end of file")

// FrameSource yields decoded BGR frames in order.  Next blocks until the next
// frame is available and returns yolostream.ErrEndOfStream once there are no
// more.  The caller owns the returned Mat and must Close it.  Close releases
// the device or file handle and is safe to call more than once
type FrameSource interface {
	Next() (gocv.Mat, error)
	Close() error
}

// Opener acquires a FrameSource.  It returns an error wrapping
// yolostream.ErrSourceUnavailable when the device or file cannot be opened
type Opener func() (FrameSource, error)

// capture is the subset of *gocv.VideoCapture used by the sources
type capture interface {
	IsOpened() bool
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

// unavailable wraps ErrSourceUnavailable with the cause
func unavailable(err error, format string, args ...interface{}) error {

	if err != nil {
		return errors.Wrapf(yolostream.ErrSourceUnavailable, format+": %v", append(args, err)...)
	}

	return errors.Wrapf(yolostream.ErrSourceUnavailable, format, args...)
}

// readFrame reads the next frame from c.  An empty frame counts as a failed
// read
func readFrame(c capture) (gocv.Mat, bool) {

	img := gocv.NewMat()

	if ok := c.Read(&img); !ok || img.Empty() {
		img.Close()
		return gocv.Mat{}, false
	}

	return img, true
}
