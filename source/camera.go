package source

import (
	"github.com/pkg/errors"
	"github.com/yolostream/yolostream"
	"gocv.io/x/gocv"
	"sync"
)

// Camera is a FrameSource bound to a local capture device.  Its frame
// sequence only ends when the device stops delivering frames
type Camera struct {
	// device is the capture device index
	device int
	cap    capture
	claims *Claims
	once   sync.Once
	err    error
}

// CameraOpener returns an Opener for the capture device
func CameraOpener(device int) Opener {
	return func() (FrameSource, error) {
		return OpenCamera(device)
	}
}

// OpenCamera claims and opens the capture device.  There is no retry, a busy
// or missing device fails with yolostream.ErrSourceUnavailable
func OpenCamera(device int) (*Camera, error) {
	return openCamera(device, DefaultClaims, func(id int) (capture, error) {
		return gocv.OpenVideoCapture(id)
	})
}

func openCamera(device int, claims *Claims,
	open func(int) (capture, error)) (*Camera, error) {

	if !claims.Acquire(device) {
		return nil, unavailable(nil, "camera %d is in use by another stream", device)
	}

	c, err := open(device)

	if err != nil {
		claims.Release(device)
		return nil, unavailable(err, "error opening camera %d", device)
	}

	if !c.IsOpened() {
		c.Close()
		claims.Release(device)
		return nil, unavailable(nil, "camera %d could not be opened", device)
	}

	return &Camera{
		device: device,
		cap:    c,
		claims: claims,
	}, nil
}

// Device returns the capture device index
func (c *Camera) Device() int {
	return c.device
}

// Next blocks until the device delivers the next frame.  A failed capture
// ends the stream
func (c *Camera) Next() (gocv.Mat, error) {

	img, ok := readFrame(c.cap)

	if !ok {
		return gocv.Mat{}, errors.Wrapf(yolostream.ErrEndOfStream,
			"frame capture failed on camera %d", c.device)
	}

	return img, nil
}

// Close releases the device and its claim
func (c *Camera) Close() error {

	c.once.Do(func() {
		c.err = c.cap.Close()
		c.claims.Release(c.device)
	})

	return c.err
}
