package source

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"gocv.io/x/gocv"
	"os"
	"sync"
)

// VideoFile is a FrameSource reading a video file from start to finish
type VideoFile struct {
	path string
	cap  capture
	// frames is the frame count reported by the container, zero if unknown
	frames int
	// read is the number of frames returned so far
	read int
	once sync.Once
	err  error
}

// VideoFileOpener returns an Opener for the video file
func VideoFileOpener(path string) Opener {
	return func() (FrameSource, error) {
		return OpenVideoFile(path)
	}
}

// OpenVideoFile opens the video file for reading
func OpenVideoFile(path string) (*VideoFile, error) {
	return openVideoFile(path, func(p string) (capture, error) {
		return gocv.VideoCaptureFile(p)
	})
}

func openVideoFile(path string, open func(string) (capture, error)) (*VideoFile, error) {

	if _, err := os.Stat(path); err != nil {
		return nil, unavailable(err, "video file %s", path)
	}

	c, err := open(path)

	if err != nil {
		return nil, unavailable(err, "error opening video file %s", path)
	}

	if !c.IsOpened() {
		c.Close()
		return nil, unavailable(nil, "video file %s could not be opened", path)
	}

	frames := int(c.Get(gocv.VideoCaptureFrameCount))

	if frames < 0 {
		frames = 0
	}

	return &VideoFile{
		path:   path,
		cap:    c,
		frames: frames,
	}, nil
}

// Path returns the file the source reads
func (v *VideoFile) Path() string {
	return v.path
}

// Frames returns the frame count reported by the container, zero when the
// container does not report one
func (v *VideoFile) Frames() int {
	return v.frames
}

// Next returns the next frame of the file.  A read failure after the last
// reported frame, or when no count is reported, is the end of the stream.
// A failure before it returns ErrFrameRead
func (v *VideoFile) Next() (gocv.Mat, error) {

	img, ok := readFrame(v.cap)

	if !ok {
		if v.frames > 0 && v.read < v.frames {
			return gocv.Mat{}, errors.Wrapf(ErrFrameRead, "%s frame %d of %d",
				v.path, v.read+1, v.frames)
		}

		return gocv.Mat{}, errors.Wrapf(yolostream.ErrEndOfStream,
			"%s after %d frames", v.path, v.read)
	}

	v.read++

	return img, nil
}

// Close releases the file handle
func (v *VideoFile) Close() error {

	v.once.Do(func() {
		v.err = v.cap.Close()
	})

	return v.err
}
